package assets

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/extpack/internal/layout"
	"github.com/wolfeidau/extpack/internal/manifest"
	"github.com/wolfeidau/extpack/internal/pkgmeta"
)

// CopyIcons copies public/icons to <outDir>/icons. An empty or missing icon
// directory copies nothing and creates nothing.
func CopyIcons(l layout.Layout, outDir string) (int, error) {
	ok, err := layout.DirIsNotEmpty(l.Icons())
	if err != nil {
		return 0, fmt.Errorf("failed to read icons: %w", err)
	}
	if !ok {
		log.Debug().Str("dir", l.Icons()).Msg("No icons to copy")
		return 0, nil
	}

	n, err := CopyDir(l.Icons(), filepath.Join(outDir, layout.IconsDir))
	if err != nil {
		return n, fmt.Errorf("failed to copy icons: %w", err)
	}
	return n, nil
}

// WriteManifest transforms public/manifest.json with the package metadata
// and writes it to <outDir>/manifest.json.
func WriteManifest(l layout.Layout, pkg *pkgmeta.Package, outDir string, opts ...manifest.Option) error {
	input, err := os.ReadFile(l.Manifest())
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	out, err := manifest.Transform(input, pkg, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", l.Manifest(), err)
	}

	if err := os.WriteFile(filepath.Join(outDir, layout.ManifestFile), out, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// CopyDir copies every regular file under src to the same relative path
// under dst and returns the number of files copied.
func CopyDir(src, dst string) (int, error) {
	count := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if err := copyFile(path, target); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
