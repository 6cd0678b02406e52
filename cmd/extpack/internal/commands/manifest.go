package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/wolfeidau/extpack/internal/config"
	"github.com/wolfeidau/extpack/internal/manifest"
	"github.com/wolfeidau/extpack/internal/pkgmeta"
)

// ManifestCmd prints public/manifest.json with the package metadata applied.
type ManifestCmd struct {
	ProjectFlags `embed:""`

	Pretty bool `help:"indent the output" default:"true" negatable:""`
}

func (c *ManifestCmd) Run(ctx context.Context, globals *Globals) error {
	p, err := c.settings(config.Defaults())
	if err != nil {
		return err
	}
	l := c.layout(p)

	pkg, err := pkgmeta.Load(l.PackageJSON())
	if err != nil {
		return err
	}

	input, err := os.ReadFile(l.Manifest())
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var opts []manifest.Option
	if c.Pretty {
		opts = append(opts, manifest.WithIndent("", "  "))
	}

	out, err := manifest.Transform(input, pkg, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", l.Manifest(), err)
	}

	_, err = fmt.Fprintf(globals.stdout(), "%s\n", out)
	return err
}
