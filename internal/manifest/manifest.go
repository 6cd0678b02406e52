// Package manifest rewrites the extension manifest template with package
// metadata.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfeidau/extpack/internal/pkgmeta"
)

// ErrInvalidManifest indicates the manifest template is not a JSON object
var ErrInvalidManifest = errors.New("invalid manifest")

type options struct {
	prefix string
	indent string
}

// Option configures Transform output.
type Option func(*options)

// WithIndent pretty prints the output like json.Indent.
func WithIndent(prefix, indent string) Option {
	return func(o *options) {
		o.prefix = prefix
		o.indent = indent
	}
}

// Transform sets name, version, description, author and homepage_url from
// pkg and returns the re-encoded manifest. Other members keep their order
// and values. A field missing from pkg removes the manifest key.
func Transform(input []byte, pkg *pkgmeta.Package, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	obj, err := decodeObject(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if pkg != nil {
		for _, f := range pkg.Fields() {
			if !f.Present() {
				obj.delete(f.Key)
				continue
			}
			obj.set(f.Key, f.Value)
		}
	}

	out, err := obj.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if o.indent == "" && o.prefix == "" {
		return out, nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, out, o.prefix, o.indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Version extracts the version member of a manifest, used to name packages.
func Version(data []byte) (string, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	raw, ok := obj.get("version")
	if !ok {
		return "", nil
	}

	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: version is not a string", ErrInvalidManifest)
	}
	return v, nil
}
