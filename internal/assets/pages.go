package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wolfeidau/extpack/internal/layout"
)

// writePages renders one HTML page per page entry with only that entry's
// stylesheet and scripts injected.
func (p *Pipeline) writePages(plan *layout.Plan) ([]string, error) {
	pages := []string{}
	for _, entry := range plan.Pages() {
		out, err := p.renderPage(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", entry.Page(), err)
		}

		if err := os.WriteFile(filepath.Join(p.outDir, entry.Page()), out, 0o644); err != nil { //nolint:gosec
			return nil, err
		}
		pages = append(pages, entry.Page())
	}
	return pages, nil
}

func (p *Pipeline) renderPage(entry layout.Entry) ([]byte, error) {
	scripts, _, err := p.loadScripts(p.entryKey(entry))
	if err != nil {
		return nil, err
	}

	var stylesheets []string
	if css, err := p.stylesheet(p.entryKey(entry)); err == nil && css != "" {
		stylesheets = append(stylesheets, css)
	}

	src, err := os.ReadFile(entry.Template)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug().Str("chunk", entry.Chunk).Msg("No page template, using default")
		var buf bytes.Buffer
		if err := p.tmpl.Execute(&buf, map[string]any{"Title": entry.Chunk}); err != nil {
			return nil, err
		}
		src = buf.Bytes()
	case err != nil:
		return nil, err
	}

	return InjectAssets(src, stylesheets, scripts)
}

// InjectAssets adds stylesheet links and deferred scripts to the head of an
// HTML document. Missing html, head or body elements are created.
func InjectAssets(src []byte, stylesheets, scripts []string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	head := findElement(doc, atom.Head)
	if head == nil {
		return nil, errors.New("document has no head element")
	}

	for _, href := range stylesheets {
		head.AppendChild(element(atom.Link,
			html.Attribute{Key: "href", Val: href},
			html.Attribute{Key: "rel", Val: "stylesheet"},
		))
	}
	for _, src := range scripts {
		head.AppendChild(element(atom.Script,
			html.Attribute{Key: "defer"},
			html.Attribute{Key: "src", Val: src},
		))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
