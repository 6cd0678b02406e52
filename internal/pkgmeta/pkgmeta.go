// Package pkgmeta reads the package.json fields copied into the manifest.
package pkgmeta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/mod/semver"
)

// ErrInvalidPackage indicates package.json could not be parsed
var ErrInvalidPackage = errors.New("invalid package metadata")

// Package holds the raw JSON values of the metadata fields. A nil field was
// absent from package.json.
type Package struct {
	Name        json.RawMessage `json:"name"`
	Version     json.RawMessage `json:"version"`
	Description json.RawMessage `json:"description"`
	Author      json.RawMessage `json:"author"`
	Homepage    json.RawMessage `json:"homepage"`
}

// New builds a Package from plain strings, mostly for tests and callers
// that do not read package.json.
func New(name, version, description, author, homepage string) *Package {
	return &Package{
		Name:        quote(name),
		Version:     quote(version),
		Description: quote(description),
		Author:      quote(author),
		Homepage:    quote(homepage),
	}
}

// Load reads and parses the package.json at path.
func Load(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package metadata: %w", err)
	}
	return Parse(data)
}

// Parse decodes package.json content. A leading UTF-8 byte order mark is
// ignored.
func Parse(data []byte) (*Package, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPackage, err)
	}

	if v := pkg.VersionString(); v != "" && !semver.IsValid("v"+v) {
		log.Warn().Str("version", v).Msg("package version is not semver")
	}

	return &pkg, nil
}

// NameString returns the name when it is a JSON string.
func (p *Package) NameString() string {
	return str(p.Name)
}

// VersionString returns the version when it is a JSON string.
func (p *Package) VersionString() string {
	return str(p.Version)
}

// Fields returns the metadata in manifest key order, keyed by the manifest
// field each value is written to.
func (p *Package) Fields() []Field {
	return []Field{
		{Key: "name", Value: p.Name},
		{Key: "version", Value: p.Version},
		{Key: "description", Value: p.Description},
		{Key: "author", Value: p.Author},
		{Key: "homepage_url", Value: p.Homepage},
	}
}

// Field is one manifest key and the package value it receives.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Present reports whether the package defined the field.
func (f Field) Present() bool {
	return len(bytes.TrimSpace(f.Value)) > 0
}

func str(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
