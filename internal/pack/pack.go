// Package pack zips a build directory into an archive ready for upload to
// an extension store.
package pack

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/extpack/internal/layout"
)

// Result describes a written archive.
type Result struct {
	Path  string
	Files int
	Bytes int64
}

// ArchiveName returns "<name>-<version>.zip", falling back to "extension"
// when name is empty.
func ArchiveName(name, version string) string {
	if name == "" {
		name = "extension"
	}

	// scoped npm names carry a slash
	name = strings.TrimPrefix(name, "@")
	name = strings.ReplaceAll(name, "/", "-")

	if version == "" {
		return name + ".zip"
	}
	return name + "-" + version + ".zip"
}

// Pack writes a deflate zip of buildDir to dest. Entries use forward
// slashes and are sorted so the same build produces the same listing.
// dest may live inside buildDir, it is never added to the archive.
func Pack(ctx context.Context, buildDir, dest string) (*Result, error) {
	manifest := filepath.Join(buildDir, layout.ManifestFile)
	if fi, err := os.Stat(manifest); err != nil || fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoManifest, buildDir)
	}

	files, err := collect(buildDir, dest)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".extpack-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	zw := zip.NewWriter(tmp)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := addFile(zw, buildDir, rel); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}

	fi, err := os.Stat(dest)
	if err != nil {
		return nil, err
	}

	log.Info().Str("archive", dest).Int("files", len(files)).Int64("bytes", fi.Size()).Msg("Packed extension")

	return &Result{Path: dest, Files: len(files), Bytes: fi.Size()}, nil
}

// collect returns the slash separated paths of regular files under dir,
// sorted.
func collect(dir, skip string) ([]string, error) {
	skipAbs, err := filepath.Abs(skip)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == skipAbs {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	slices.Sort(files)
	return files, nil
}

func addFile(zw *zip.Writer, dir, rel string) error {
	path := filepath.Join(dir, filepath.FromSlash(rel))

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", rel, err)
	}

	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to add %s: %w", rel, err)
	}
	return nil
}
