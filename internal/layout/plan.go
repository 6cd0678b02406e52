package layout

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/wolfeidau/extpack/internal/naming"
)

// Surfaces are the fixed UI pages an extension may provide, in build order.
var Surfaces = []string{"popup", "options", "devtools", "onboarding", "newtab"}

// ServiceWorker is the folder and chunk name of the background service worker.
const ServiceWorker = "serviceworker"

// Kind tells how an entry is emitted.
type Kind int

const (
	// KindPage is bundled to js/<chunk>.js and gets an HTML page
	KindPage Kind = iota
	// KindScript is bundled to js/<chunk>.js without a page
	KindScript
	// KindServiceWorker is bundled to <chunk>.js at the build root
	KindServiceWorker
)

func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindScript:
		return "script"
	case KindServiceWorker:
		return "serviceworker"
	default:
		return "unknown"
	}
}

// Entry is one bundle root.
type Entry struct {
	// Chunk is the output name, unique within a plan
	Chunk string
	// Source is the entry file path
	Source string
	Kind   Kind
	// Template is the HTML template for page entries
	Template string
}

// Output is the path of the bundled script relative to the build directory,
// without extension.
func (e Entry) Output() string {
	if e.Kind == KindServiceWorker {
		return e.Chunk
	}
	return "js/" + e.Chunk
}

// Page is the HTML file name for page entries, empty otherwise.
func (e Entry) Page() string {
	if e.Kind != KindPage {
		return ""
	}
	return e.Chunk + ".html"
}

// Plan is the ordered set of entries discovered in a project.
type Plan struct {
	Entries []Entry
}

// Pages returns the entries that produce an HTML page.
func (p *Plan) Pages() []Entry {
	pages := []Entry{}
	for _, e := range p.Entries {
		if e.Kind == KindPage {
			pages = append(pages, e)
		}
	}
	return pages
}

// Chunks maps chunk names to entry sources.
func (p *Plan) Chunks() map[string]string {
	chunks := make(map[string]string, len(p.Entries))
	for _, e := range p.Entries {
		chunks[e.Chunk] = e.Source
	}
	return chunks
}

// Lookup finds the entry with the given chunk name.
func (p *Plan) Lookup(chunk string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.Chunk == chunk {
			return e, true
		}
	}
	return Entry{}, false
}

// Equal reports whether both plans build the same entries.
func (p *Plan) Equal(other *Plan) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.Entries) != len(other.Entries) {
		return false
	}
	for i := range p.Entries {
		if p.Entries[i] != other.Entries[i] {
			return false
		}
	}
	return true
}

// Discover walks the conventional directories and returns the build plan.
// Absent surfaces are left out; they are not errors.
func (l Layout) Discover() (*Plan, error) {
	plan := &Plan{}
	seen := map[string]string{}

	add := func(e Entry) error {
		if e.Chunk == "" {
			return fmt.Errorf("%w: %s", ErrEmptyChunk, filepath.Dir(e.Source))
		}
		if prev, ok := seen[e.Chunk]; ok {
			return fmt.Errorf("%w: %q from %s and %s", ErrDuplicateChunk, e.Chunk, prev, e.Source)
		}
		seen[e.Chunk] = e.Source
		plan.Entries = append(plan.Entries, e)
		return nil
	}

	for _, surface := range Surfaces {
		if !l.Exists(surface) {
			continue
		}
		err := add(Entry{
			Chunk:    surface,
			Source:   l.Src(surface, DefaultEntryFile),
			Kind:     KindPage,
			Template: l.Src(surface, TemplateFile),
		})
		if err != nil {
			return nil, err
		}
	}

	if l.Exists(ServiceWorker + "/" + ScriptEntryFile) {
		err := add(Entry{
			Chunk:  ServiceWorker,
			Source: l.Src(ServiceWorker, ScriptEntryFile),
			Kind:   KindServiceWorker,
		})
		if err != nil {
			return nil, err
		}
	}

	uiFolders, err := l.Folders(UIElementsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", UIElementsDir, err)
	}
	for _, folder := range uiFolders {
		chunk := naming.CamelCase(folder)
		err := add(Entry{
			Chunk:    chunk,
			Source:   l.Src(UIElementsDir, folder, DefaultEntryFile),
			Kind:     KindPage,
			Template: l.Src(UIElementsDir, folder, TemplateFile),
		})
		if err != nil {
			return nil, err
		}
	}

	scripts, err := l.Entries(ScriptsDir, ScriptEntryFile)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ScriptsDir, err)
	}
	// Entries collapses folders that share a chunk name, so walk the
	// folders again to report the clash.
	scriptFolders, err := l.Folders(ScriptsDir)
	if err != nil {
		return nil, err
	}
	if len(scripts) != len(scriptFolders) {
		return nil, duplicateFolders(ScriptsDir, scriptFolders)
	}
	for _, chunk := range sortedKeys(scripts) {
		if err := add(Entry{Chunk: chunk, Source: scripts[chunk], Kind: KindScript}); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func duplicateFolders(dir string, folders []string) error {
	byChunk := map[string]string{}
	for _, f := range folders {
		chunk := naming.CamelCase(f)
		if prev, ok := byChunk[chunk]; ok {
			return fmt.Errorf("%w: %q from %s/%s and %s/%s", ErrDuplicateChunk, chunk, dir, prev, dir, f)
		}
		byChunk[chunk] = f
	}
	return fmt.Errorf("%w in %s", ErrDuplicateChunk, dir)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
