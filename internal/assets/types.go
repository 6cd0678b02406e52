package assets

import (
	"html/template"
	"path/filepath"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/extpack/internal/layout"
)

// BuildMetadata is the part of the esbuild metafile used to link pages to
// their outputs. Paths are relative to the output directory.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	CSSBundle  string       `json:"cssBundle"`
	Bytes      int          `json:"bytes"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// Pipeline manages the extension build: bundling, pages and static files
type Pipeline struct {
	config   Config
	root     string
	outDir   string
	metadata *BuildMetadata
	plan     *layout.Plan
	ctxPlan  *layout.Plan
	buildCtx api.BuildContext
	tmpl     *template.Template
	sass     *sassCompiler
	cleaned  bool
	mu       sync.RWMutex
}

// New creates a new pipeline with the given configuration
func New(config Config) (*Pipeline, error) {
	root, err := filepath.Abs(config.Layout.Root)
	if err != nil {
		return nil, err
	}
	// esbuild reports resolved paths in the metafile
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	config.Layout.Root = root

	outDir := config.OutputDir
	if outDir == "" {
		outDir = "build"
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}
	if config.MetafilePath != "" && !filepath.IsAbs(config.MetafilePath) {
		config.MetafilePath = filepath.Join(root, config.MetafilePath)
	}

	tmpl, err := template.New("page").Parse(defaultPage)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config: config,
		root:   root,
		outDir: outDir,
		tmpl:   tmpl,
		sass:   newSassCompiler(config.SassBinary),
	}, nil
}

// OutputDir is the absolute build directory
func (p *Pipeline) OutputDir() string {
	return p.outDir
}

// Plan returns the entries of the last build
func (p *Pipeline) Plan() *layout.Plan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.plan
}

// Dispose releases the esbuild context and the Sass compiler
func (p *Pipeline) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.disposeContext()
	if err := p.sass.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to stop sass")
	}
}

const defaultPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<div id="root"></div>
</body>
</html>
`
