package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/extpack/internal/assets"
	"github.com/wolfeidau/extpack/internal/config"
	"github.com/wolfeidau/extpack/internal/logger"
)

// BuildCmd writes the extension directory once.
type BuildCmd struct {
	ProjectFlags `embed:""`

	PrettyManifest bool `help:"indent manifest.json" env:"EXTPACK_PRETTY_MANIFEST"`
	NoClean        bool `help:"keep existing files in the output directory" env:"EXTPACK_NO_CLEAN"`
	Telemetry      bool `help:"export traces and metrics over OTLP" env:"EXTPACK_TELEMETRY"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	defer startTelemetry(ctx, c.Telemetry, globals.Version, log)()

	res, outDir, err := c.build(ctx)
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("out", outDir).Int("warnings", len(res.Warnings)).Msg("Extension built")
	_, err = fmt.Fprintf(globals.stdout(), "built %d files into %s in %s\n", len(res.Files), outDir, res.Duration.Round(time.Millisecond))
	return err
}

func (c *BuildCmd) build(ctx context.Context) (*assets.Result, string, error) {
	p, err := c.settings(config.Defaults())
	if err != nil {
		return nil, "", err
	}

	cfg := c.assetsConfig(p)
	cfg.Clean = !c.NoClean
	if c.PrettyManifest {
		cfg.ManifestIndent = "  "
	}

	pipeline, err := assets.New(cfg)
	if err != nil {
		return nil, "", err
	}
	defer pipeline.Dispose()

	res, err := pipeline.Build(ctx)
	if err != nil {
		return nil, "", err
	}
	return res, pipeline.OutputDir(), nil
}
