package assets

import (
	"github.com/wolfeidau/extpack/internal/layout"
)

// Mode selects production or development output.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

type Config struct {
	// Project layout, entries are discovered from it on every build
	Layout layout.Layout
	// Output directory for built files, relative to the project root unless absolute
	OutputDir string
	// Path to write the esbuild metafile to, empty to skip
	MetafilePath string
	// Build mode
	Mode Mode
	// Whether to remove the output directory before the first build
	Clean bool
	// Dart Sass executable used for .scss and .sass imports
	SassBinary string
	// Extra compile time replacements, merged over process.env.NODE_ENV
	Define map[string]string
	// Indent for manifest.json, empty for compact output
	ManifestIndent string
}

// DefaultConfig returns a production configuration for the project at root
func DefaultConfig(root string) Config {
	return Config{
		Layout:     layout.New(root),
		OutputDir:  "build",
		Mode:       ModeProduction,
		Clean:      true,
		SassBinary: "sass",
	}
}

// Minify is enabled for production builds
func (c Config) Minify() bool {
	return c.Mode != ModeDevelopment
}

// SourceMap is enabled for development builds
func (c Config) SourceMap() bool {
	return c.Mode == ModeDevelopment
}

func (c Config) nodeEnv() string {
	if c.Mode == ModeDevelopment {
		return string(ModeDevelopment)
	}
	return string(ModeProduction)
}
