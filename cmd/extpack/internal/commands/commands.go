package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/extpack/internal/assets"
	"github.com/wolfeidau/extpack/internal/config"
	"github.com/wolfeidau/extpack/internal/layout"
	"github.com/wolfeidau/extpack/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
	// Stdout receives command output, os.Stdout when nil
	Stdout io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// ProjectFlags locate the project and configure the build. Unset flags fall
// back to extpack.yaml and then to the defaults.
type ProjectFlags struct {
	Root     string            `help:"project root holding package.json" default:"." env:"EXTPACK_ROOT"`
	Src      string            `help:"source directory relative to the root (default: src)" env:"EXTPACK_SRC"`
	Public   string            `help:"public directory relative to the root (default: public)" env:"EXTPACK_PUBLIC"`
	Out      string            `short:"o" help:"output directory relative to the root (default: build)" env:"EXTPACK_OUT"`
	Mode     string            `help:"build mode, production or development" env:"EXTPACK_MODE"`
	Metafile string            `help:"write the esbuild metafile to this path" env:"EXTPACK_METAFILE"`
	Sass     string            `help:"Dart Sass executable (default: sass)" env:"EXTPACK_SASS"`
	Define   map[string]string `help:"compile time replacement as KEY=VALUE" env:"EXTPACK_DEFINE"`
}

func (f ProjectFlags) settings(base config.Project) (config.Project, error) {
	return config.Resolve(f.root(), base, config.Project{
		SrcDir:    f.Src,
		PublicDir: f.Public,
		OutDir:    f.Out,
		Mode:      f.Mode,
		Metafile:  f.Metafile,
		Sass:      f.Sass,
		Define:    f.Define,
	})
}

func (f ProjectFlags) root() string {
	if f.Root == "" {
		return "."
	}
	return f.Root
}

func (f ProjectFlags) layout(p config.Project) layout.Layout {
	l := layout.New(f.root())
	l.SrcDir = p.SrcDir
	l.PublicDir = p.PublicDir
	return l
}

func (f ProjectFlags) assetsConfig(p config.Project) assets.Config {
	cfg := assets.DefaultConfig(f.root())
	cfg.Layout = f.layout(p)
	cfg.OutputDir = p.OutDir
	cfg.Mode = assets.Mode(p.Mode)
	cfg.MetafilePath = p.Metafile
	cfg.SassBinary = p.Sass
	cfg.Define = p.Define
	return cfg
}

// startTelemetry initialises the OTLP exporters when enabled and returns
// the shutdown to defer.
func startTelemetry(ctx context.Context, enabled bool, version string, log zerolog.Logger) func() {
	if !enabled {
		return func() {}
	}

	log.Info().Msg("Telemetry is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, "extpack", version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
