package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wolfeidau/extpack/internal/config"
	"github.com/wolfeidau/extpack/internal/layout"
	"github.com/wolfeidau/extpack/internal/logger"
	"github.com/wolfeidau/extpack/internal/manifest"
	"github.com/wolfeidau/extpack/internal/pack"
	"github.com/wolfeidau/extpack/internal/pkgmeta"
)

// PackCmd builds the extension and zips the output directory.
type PackCmd struct {
	BuildCmd `embed:""`

	Archive string `short:"a" help:"archive path (default: <name>-<version>.zip in the project root)" env:"EXTPACK_ARCHIVE"`
	NoBuild bool   `help:"zip the existing output directory without building"`
}

func (c *PackCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	defer startTelemetry(ctx, c.Telemetry, globals.Version, log)()

	outDir, err := c.outputDir(ctx)
	if err != nil {
		return err
	}

	dest, err := c.archivePath(outDir)
	if err != nil {
		return err
	}

	res, err := pack.Pack(ctx, outDir, dest)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(globals.stdout(), "packed %d files into %s (%d bytes)\n", res.Files, res.Path, res.Bytes)
	return err
}

func (c *PackCmd) outputDir(ctx context.Context) (string, error) {
	if !c.NoBuild {
		_, outDir, err := c.build(ctx)
		return outDir, err
	}

	p, err := c.settings(config.Defaults())
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p.OutDir) {
		return p.OutDir, nil
	}
	return filepath.Join(c.root(), p.OutDir), nil
}

// archivePath names the archive after the package name and the version of
// the built manifest.
func (c *PackCmd) archivePath(outDir string) (string, error) {
	if c.Archive != "" {
		return c.Archive, nil
	}

	var name string
	if pkg, err := pkgmeta.Load(filepath.Join(c.root(), layout.PackageFile)); err == nil {
		name = pkg.NameString()
	}

	data, err := os.ReadFile(filepath.Join(outDir, layout.ManifestFile))
	if err != nil {
		return "", fmt.Errorf("%w: %s", pack.ErrNoManifest, outDir)
	}
	version, err := manifest.Version(data)
	if err != nil {
		return "", err
	}

	return filepath.Join(c.root(), pack.ArchiveName(name, version)), nil
}
