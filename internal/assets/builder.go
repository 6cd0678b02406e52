package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/extpack/internal/layout"
	"github.com/wolfeidau/extpack/internal/manifest"
	"github.com/wolfeidau/extpack/internal/pkgmeta"
	"github.com/wolfeidau/extpack/internal/telemetry"
)

var tracer = otel.Tracer("github.com/wolfeidau/extpack/internal/assets")

var (
	imageExts = []string{".png", ".svg", ".jpg", ".jpeg", ".gif"}
	fontExts  = []string{".woff", ".woff2", ".eot", ".ttf", ".otf"}
)

// Result describes a successful build
type Result struct {
	// ID changes on every build, used to notify live reload clients
	ID string
	// Files written, relative to the output directory
	Files []string
	// Pages written, relative to the output directory
	Pages []string
	// Icons is the number of icon files copied
	Icons    int
	Warnings []string
	Duration time.Duration
}

// Build discovers the entries, runs esbuild and writes the extension
// directory: scripts, stylesheets, assets, icons, manifest and pages.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "assets.Build")
	defer span.End()

	started := time.Now()
	res, err := p.build(ctx)

	m := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("mode", string(p.config.Mode)))
	m.BuildsTotal.Add(ctx, 1, attrs)
	m.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	if err != nil {
		m.BuildErrorsTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res.Duration = time.Since(started)
	m.FilesWrittenTotal.Add(ctx, int64(len(res.Files)), attrs)
	span.SetAttributes(attribute.String("build.id", res.ID), attribute.Int("build.files", len(res.Files)))

	log.Info().
		Str("id", res.ID).
		Int("files", len(res.Files)).
		Int("pages", len(res.Pages)).
		Dur("duration", res.Duration).
		Msg("Build complete")

	return res, nil
}

func (p *Pipeline) build(ctx context.Context) (*Result, error) {
	plan, err := p.config.Layout.Discover()
	if err != nil {
		return nil, err
	}

	pkg, err := pkgmeta.Load(p.config.Layout.PackageJSON())
	if err != nil {
		return nil, err
	}

	if p.config.Clean && !p.cleaned {
		log.Debug().Str("dir", p.outDir).Msg("Cleaning output directory")
		if err := os.RemoveAll(p.outDir); err != nil {
			return nil, fmt.Errorf("failed to clean output directory: %w", err)
		}
		p.cleaned = true
	}

	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res := &Result{ID: uuid.NewString()}

	if len(plan.Entries) == 0 {
		log.Warn().Msg("No entry points found, only copying static files")
		p.disposeContext()
		p.metadata = &BuildMetadata{Outputs: map[string]OutputInfo{}}
	} else {
		files, warnings, err := p.bundle(ctx, plan)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, files...)
		res.Warnings = warnings
	}
	p.plan = plan

	icons, err := CopyIcons(p.config.Layout, p.outDir)
	if err != nil {
		return nil, err
	}
	res.Icons = icons
	if icons > 0 {
		res.Files = append(res.Files, layout.IconsDir+"/")
	}

	var opts []manifest.Option
	if p.config.ManifestIndent != "" {
		opts = append(opts, manifest.WithIndent("", p.config.ManifestIndent))
	}
	if err := WriteManifest(p.config.Layout, pkg, p.outDir, opts...); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, layout.ManifestFile)

	pages, err := p.writePages(plan)
	if err != nil {
		return nil, err
	}
	res.Pages = pages
	res.Files = append(res.Files, pages...)

	return res, nil
}

// bundle runs esbuild for the plan, reusing the build context while the
// entry set is unchanged.
func (p *Pipeline) bundle(ctx context.Context, plan *layout.Plan) ([]string, []string, error) {
	_, span := tracer.Start(ctx, "assets.bundle")
	defer span.End()

	if p.buildCtx == nil || !p.ctxPlan.Equal(plan) {
		p.disposeContext()

		log.Info().Strs("entrypoints", entryNames(plan)).Msg("Building assets")

		buildCtx, ctxErr := api.Context(p.buildOptions(plan))
		if ctxErr != nil {
			for _, msg := range ctxErr.Errors {
				log.Error().Str("error", msg.Text).Msg("Build error")
			}
			return nil, nil, newBuildError(ctxErr.Errors)
		}
		p.buildCtx = buildCtx
		p.ctxPlan = plan
	}

	result := p.buildCtx.Rebuild()

	warnings := make([]string, 0, len(result.Warnings))
	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Msg("Build warning")
		warnings = append(warnings, msg.Text)
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Msg("Build error")
		}
		return nil, warnings, newBuildError(result.Errors)
	}

	files, err := p.writeOutputs(result.OutputFiles)
	if err != nil {
		return nil, warnings, err
	}

	if p.config.MetafilePath != "" {
		if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0o600); err != nil {
			return nil, warnings, err
		}
	}

	metadata, err := p.loadMetadata(result.Metafile)
	if err != nil {
		return nil, warnings, err
	}
	p.metadata = metadata

	return files, warnings, nil
}

func (p *Pipeline) buildOptions(plan *layout.Plan) api.BuildOptions {
	entryPoints := make([]api.EntryPoint, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		entryPoints = append(entryPoints, api.EntryPoint{
			InputPath:  e.Source,
			OutputPath: e.Output(),
		})
	}

	loaders := map[string]api.Loader{}
	for _, ext := range append(append([]string{}, imageExts...), fontExts...) {
		loaders[ext] = api.LoaderFile
	}

	define := map[string]string{
		"process.env.NODE_ENV": strconv.Quote(p.config.nodeEnv()),
	}
	maps.Copy(define, p.config.Define)

	return api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       p.root,
		Bundle:              true,
		Write:               false,
		JSX:                 api.JSXAutomatic,
		Outdir:              p.outDir,
		AssetNames:          "assets/[name]-[hash]",
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		Target:              api.ES2020,
		Loader:              loaders,
		ResolveExtensions:   []string{".tsx", ".ts", ".js", ".jsx"},
		Define:              define,
		MinifyWhitespace:    p.config.Minify(),
		MinifyIdentifiers:   p.config.Minify(),
		MinifySyntax:        p.config.Minify(),
		TreeShaking:         api.TreeShakingTrue,
		Sourcemap:           cond(p.config.SourceMap(), api.SourceMapLinked, api.SourceMapNone),
		Metafile:            true,
		LogLevel:            api.LogLevelSilent,
		Plugins:             []api.Plugin{sassPlugin(p.sass)},
	}
}

// writeOutputs writes the esbuild output files, moving extracted
// stylesheets from js/ to css/.
func (p *Pipeline) writeOutputs(files []api.OutputFile) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(p.outDir, file.Path)
		if err != nil {
			return nil, err
		}
		rel = relocate(filepath.ToSlash(rel))

		dest := filepath.Join(p.outDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dest, file.Contents, 0o644); err != nil { //nolint:gosec
			return nil, fmt.Errorf("failed to write %s: %w", rel, err)
		}

		log.Debug().Str("file", rel).Msg("Built file")
		written = append(written, rel)
	}
	return written, nil
}

// loadMetadata parses the metafile and rewrites its output paths to be
// relative to the output directory.
func (p *Pipeline) loadMetadata(raw string) (*BuildMetadata, error) {
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, err
	}

	outputs := make(map[string]OutputInfo, len(metadata.Outputs))
	for key, info := range metadata.Outputs {
		if info.CSSBundle != "" {
			info.CSSBundle = p.outputRel(info.CSSBundle)
		}
		for i, imp := range info.Imports {
			if !imp.External {
				info.Imports[i].Path = p.outputRel(imp.Path)
			}
		}
		outputs[p.outputRel(key)] = info
	}

	return &BuildMetadata{Outputs: outputs}, nil
}

// outputRel converts a metafile path, relative to the working directory,
// into a path relative to the output directory.
func (p *Pipeline) outputRel(key string) string {
	rel, err := filepath.Rel(p.outDir, filepath.Join(p.root, filepath.FromSlash(key)))
	if err != nil {
		return key
	}
	return relocate(filepath.ToSlash(rel))
}

// LoadScripts returns the ordered list of script paths needed for the given
// entrypoint and the main entrypoint file path. The entrypoint is given
// relative to the project root, paths returned are relative to the output
// directory.
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.loadScripts(entryPointPath)
}

func (p *Pipeline) loadScripts(entryPointPath string) ([]string, string, error) {
	if p.metadata == nil {
		return nil, "", ErrNotBuilt
	}

	scripts := []string{}
	visited := make(map[string]bool)

	// Find the output file for this entrypoint
	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint == entryPointPath && path.Ext(outputPath) == ".js" {
			scripts = append(scripts, outputPath)
			visited[outputPath] = true
			p.addDependencies(info, &scripts, visited)
			return scripts, outputPath, nil
		}
	}

	return nil, "", fmt.Errorf("entrypoint %s not found in metadata", entryPointPath)
}

func (p *Pipeline) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || visited[imp.Path] || path.Ext(imp.Path) != ".js" {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := p.metadata.Outputs[imp.Path]; exists {
			p.addDependencies(chunkInfo, scripts, visited)
		}
	}
}

// Stylesheet returns the extracted stylesheet of an entrypoint, if any.
func (p *Pipeline) Stylesheet(entryPointPath string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.stylesheet(entryPointPath)
}

func (p *Pipeline) stylesheet(entryPointPath string) (string, error) {
	_, main, err := p.loadScripts(entryPointPath)
	if err != nil {
		return "", err
	}
	return p.metadata.Outputs[main].CSSBundle, nil
}

// entryKey is how the metafile names an entry source.
func (p *Pipeline) entryKey(e layout.Entry) string {
	rel, err := filepath.Rel(p.root, e.Source)
	if err != nil {
		return e.Source
	}
	return filepath.ToSlash(rel)
}

func (p *Pipeline) disposeContext() {
	if p.buildCtx != nil {
		p.buildCtx.Dispose()
		p.buildCtx = nil
		p.ctxPlan = nil
	}
}

// relocate moves stylesheets extracted next to scripts into css/.
func relocate(rel string) string {
	dir, name := path.Split(rel)
	if dir == "js/" && (strings.HasSuffix(name, ".css") || strings.HasSuffix(name, ".css.map")) {
		return "css/" + name
	}
	return rel
}

func entryNames(plan *layout.Plan) []string {
	names := make([]string, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		names = append(names, e.Chunk)
	}
	return names
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
