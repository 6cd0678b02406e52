// Package layout knows the conventional source tree of an extension project
// and turns it into a build plan.
package layout

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/wolfeidau/extpack/internal/naming"
)

const (
	// DefaultEntryFile is the entry file expected in UI folders
	DefaultEntryFile = "index.tsx"
	// ScriptEntryFile is the entry file expected in script folders
	ScriptEntryFile = "index.ts"
	// TemplateFile is the HTML template expected next to a UI entry
	TemplateFile = "index.html"

	UIElementsDir = "UIElements"
	ScriptsDir    = "scripts"
	IconsDir      = "icons"
	ManifestFile  = "manifest.json"
	PackageFile   = "package.json"
)

// Layout resolves paths inside an extension project.
type Layout struct {
	// Root is the project directory holding package.json
	Root string
	// SrcDir holds the sources, relative to Root unless absolute
	SrcDir string
	// PublicDir holds manifest.json and icons, relative to Root unless absolute
	PublicDir string
}

// New returns a layout rooted at root using the src and public conventions.
func New(root string) Layout {
	return Layout{
		Root:      root,
		SrcDir:    "src",
		PublicDir: "public",
	}
}

// Src joins elem onto the source directory.
func (l Layout) Src(elem ...string) string {
	return filepath.Join(append([]string{l.resolve(l.SrcDir)}, elem...)...)
}

// Public joins elem onto the public directory.
func (l Layout) Public(elem ...string) string {
	return filepath.Join(append([]string{l.resolve(l.PublicDir)}, elem...)...)
}

// PackageJSON is the path of the package metadata file.
func (l Layout) PackageJSON() string {
	return filepath.Join(l.Root, PackageFile)
}

// Manifest is the path of the manifest template.
func (l Layout) Manifest() string {
	return l.Public(ManifestFile)
}

// Icons is the path of the icon directory.
func (l Layout) Icons() string {
	return l.Public(IconsDir)
}

func (l Layout) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(l.Root, dir)
}

// Exists reports whether src/<rel> exists, either as a file or a directory.
func (l Layout) Exists(rel string) bool {
	_, err := os.Stat(l.Src(rel))
	return err == nil
}

// Folders lists the immediate subdirectories of src/<dir> in sorted order.
// A missing directory yields no folders and no error.
func (l Layout) Folders(dir string) ([]string, error) {
	entries, err := os.ReadDir(l.Src(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	folders := []string{}
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, e.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// Entries maps the camel-cased name of every folder under src/<dir> to the
// entry file inside it.
func (l Layout) Entries(dir, entryFile string) (map[string]string, error) {
	if entryFile == "" {
		entryFile = DefaultEntryFile
	}

	folders, err := l.Folders(dir)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(folders))
	for _, folder := range folders {
		entries[naming.CamelCase(folder)] = l.Src(dir, folder, entryFile)
	}
	return entries, nil
}

// DirIsNotEmpty reports whether dir holds at least one entry. A missing
// directory counts as empty.
func DirIsNotEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
