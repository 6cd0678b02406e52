// Package config loads the optional extpack.yaml project file and .env
// files, and merges them with command line settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/extpack/internal/assets"
)

// FileName is the project file looked up in the project root.
const FileName = "extpack.yaml"

// ErrInvalidConfig indicates the project file could not be used.
var ErrInvalidConfig = errors.New("invalid project config")

// Project holds the settings shared by the project file and the command
// line. Zero values mean unset.
type Project struct {
	SrcDir       string            `yaml:"src"`
	PublicDir    string            `yaml:"public"`
	OutDir       string            `yaml:"out"`
	Mode         string            `yaml:"mode"`
	Host         string            `yaml:"host"`
	Port         int               `yaml:"port"`
	Metafile     string            `yaml:"metafile"`
	Sass         string            `yaml:"sass"`
	AllowedHosts []string          `yaml:"allowed_hosts"`
	Define       map[string]string `yaml:"define"`
}

// Defaults returns the settings used when neither the command line nor the
// project file sets a value.
func Defaults() Project {
	return Project{
		SrcDir:    "src",
		PublicDir: "public",
		OutDir:    "build",
		Mode:      string(assets.ModeProduction),
		Host:      "localhost",
		Port:      3003,
		Sass:      "sass",
	}
}

// Load reads the project file in root. A missing file yields an empty
// Project.
func Load(root string) (*Project, error) {
	path := filepath.Join(root, FileName)

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Project{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Debug().Str("path", path).Msg("Loaded project config")
	return p, nil
}

// Parse decodes project file content, rejecting unknown keys.
func Parse(data []byte) (*Project, error) {
	var p Project

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Merge returns p with every set field of over applied on top.
func (p Project) Merge(over Project) Project {
	out := p
	out.SrcDir = pick(over.SrcDir, p.SrcDir)
	out.PublicDir = pick(over.PublicDir, p.PublicDir)
	out.OutDir = pick(over.OutDir, p.OutDir)
	out.Mode = pick(over.Mode, p.Mode)
	out.Host = pick(over.Host, p.Host)
	out.Port = pick(over.Port, p.Port)
	out.Metafile = pick(over.Metafile, p.Metafile)
	out.Sass = pick(over.Sass, p.Sass)
	if len(over.AllowedHosts) > 0 {
		out.AllowedHosts = over.AllowedHosts
	}

	if len(p.Define)+len(over.Define) > 0 {
		out.Define = make(map[string]string, len(p.Define)+len(over.Define))
		for k, v := range p.Define {
			out.Define[k] = v
		}
		for k, v := range over.Define {
			out.Define[k] = v
		}
	}
	return out
}

// Resolve layers base, the project file in root and the command line
// settings, in increasing priority.
func Resolve(root string, base, flags Project) (Project, error) {
	file, err := Load(root)
	if err != nil {
		return Project{}, err
	}

	p := base.Merge(*file).Merge(flags)
	if err := p.validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (p Project) validate() error {
	switch assets.Mode(p.Mode) {
	case "", assets.ModeProduction, assets.ModeDevelopment:
	default:
		return fmt.Errorf("%w: mode must be production or development, got %q", ErrInvalidConfig, p.Mode)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, p.Port)
	}
	return nil
}

// LoadEnv loads .env.local and .env from dir into the process environment.
// Variables already set are kept, and .env.local wins over .env.
func LoadEnv(dir string) error {
	var files []string
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil
	}

	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	log.Debug().Strs("files", files).Msg("Loaded env files")
	return nil
}

func pick[T comparable](over, base T) T {
	var zero T
	if over != zero {
		return over
	}
	return base
}
