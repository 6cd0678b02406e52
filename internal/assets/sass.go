package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/evanw/esbuild/pkg/api"
)

// sassCompiler starts Dart Sass on first use so projects without Sass
// sources do not need the binary.
type sassCompiler struct {
	binary     string
	once       sync.Once
	transpiler *godartsass.Transpiler
	err        error
}

func newSassCompiler(binary string) *sassCompiler {
	return &sassCompiler{binary: binary}
}

func (c *sassCompiler) start() error {
	c.once.Do(func() {
		c.transpiler, c.err = godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: c.binary,
		})
	})
	if c.err != nil {
		return fmt.Errorf("failed to start dart sass %q: %w", c.binary, c.err)
	}
	return nil
}

func (c *sassCompiler) compile(path string, src []byte) (string, error) {
	if err := c.start(); err != nil {
		return "", err
	}

	syntax := godartsass.SourceSyntaxSCSS
	if filepath.Ext(path) == ".sass" {
		syntax = godartsass.SourceSyntaxSASS
	}

	res, err := c.transpiler.Execute(godartsass.Args{
		Source:       string(src),
		SourceSyntax: syntax,
		OutputStyle:  godartsass.OutputStyleExpanded,
		IncludePaths: []string{filepath.Dir(path)},
	})
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}

// Close stops the transpiler if it was started.
func (c *sassCompiler) Close() error {
	if c.transpiler == nil {
		return nil
	}
	return c.transpiler.Close()
}

// sassPlugin compiles .scss and .sass imports to CSS for esbuild.
func sassPlugin(c *sassCompiler) api.Plugin {
	return api.Plugin{
		Name: "sass",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.s[ac]ss$`},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					src, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}

					css, err := c.compile(args.Path, src)
					if err != nil {
						return api.OnLoadResult{}, err
					}

					return api.OnLoadResult{
						Contents:   &css,
						Loader:     api.LoaderCSS,
						ResolveDir: filepath.Dir(args.Path),
					}, nil
				})
		},
	}
}
