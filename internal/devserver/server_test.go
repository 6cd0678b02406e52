package devserver

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/extpack/internal/assets"
)

type fakeBuilder struct {
	mu     sync.Mutex
	out    string
	err    error
	builds int
}

func (f *fakeBuilder) Build(context.Context) (*assets.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.err != nil {
		return nil, f.err
	}
	return &assets.Result{ID: fmt.Sprintf("build-%d", f.builds)}, nil
}

func (f *fakeBuilder) OutputDir() string {
	return f.out
}

func (f *fakeBuilder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeBuilder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

func newBuildDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"popup.html":    `<!DOCTYPE html><html><head></head><body><div id="root"></div></body></html>`,
		"js/popup.js":   strings.Repeat(`console.log("popup");`, 100),
		"manifest.json": `{"name":"ext"}`,
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func get(t *testing.T, h http.Handler, path string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_servesPagesWithClient(t *testing.T) {
	b := &fakeBuilder{out: newBuildDir(t)}
	s := New(Config{}, b)
	s.Rebuild(context.Background())

	rec := get(t, s.Handler(), "/popup.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<div id="root"></div><script src="/livereload.js" data-build="build-1"></script></body>`)

	// pages carry the build they were served from
	s.Rebuild(context.Background())
	rec = get(t, s.Handler(), "/popup.html")
	assert.Contains(t, rec.Body.String(), `data-build="build-2"`)
}

func TestHandler_servesAssets(t *testing.T) {
	b := &fakeBuilder{out: newBuildDir(t)}
	s := New(Config{Compress: true}, b)
	s.Rebuild(context.Background())

	rec := get(t, s.Handler(), "/js/popup.js", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), `console.log("popup");`)
	assert.NotContains(t, string(body), "livereload")
}

func TestHandler_staticFallback(t *testing.T) {
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "extra.txt"), []byte("from public"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(static, "manifest.json"), []byte("template"), 0o600))

	b := &fakeBuilder{out: newBuildDir(t)}
	s := New(Config{StaticDir: static}, b)
	s.Rebuild(context.Background())
	h := s.Handler()

	rec := get(t, h, "/extra.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from public", rec.Body.String())

	// the build wins over the static directory
	rec = get(t, h, "/manifest.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"ext"}`, rec.Body.String())

	rec = get(t, h, "/missing.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_errorOverlay(t *testing.T) {
	b := &fakeBuilder{out: newBuildDir(t)}
	s := New(Config{}, b)
	s.Rebuild(context.Background())

	b.setErr(&assets.BuildError{Messages: []string{"src/popup/index.tsx:1:6: ERROR: Unexpected \"=\""}})
	s.Rebuild(context.Background())
	h := s.Handler()

	rec := get(t, h, "/popup.html")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Build failed")
	assert.Contains(t, body, "src/popup/index.tsx:1:6: ERROR: Unexpected &#34;=&#34;")
	assert.Contains(t, body, "last successful build")
	assert.Contains(t, body, `/livereload.js`)
	assert.Regexp(t, `data-build="error-[0-9a-f-]+"`, body)

	// non page assets are still served
	rec = get(t, h, "/js/popup.js")
	assert.Equal(t, http.StatusOK, rec.Code)

	b.setErr(nil)
	s.Rebuild(context.Background())
	rec = get(t, h, "/popup.html")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_overlayPlainError(t *testing.T) {
	b := &fakeBuilder{out: t.TempDir(), err: errors.New("manifest: invalid manifest")}
	s := New(Config{}, b)
	s.Rebuild(context.Background())

	rec := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "manifest: invalid manifest")
	assert.Contains(t, rec.Body.String(), "reloads when the build succeeds")
}

func TestHandler_livereloadScript(t *testing.T) {
	s := New(Config{}, &fakeBuilder{out: t.TempDir()})

	rec := get(t, s.Handler(), "/livereload.js", "Origin", "chrome-extension://abcdef")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Body.String(), `new EventSource("http://example.com/livereload")`)
}

func TestLiveReload_broadcastsBuilds(t *testing.T) {
	b := &fakeBuilder{out: newBuildDir(t)}
	s := New(Config{}, b)
	s.Rebuild(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/livereload", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data: ") {
				lines <- sc.Text()
			}
		}
		close(lines)
	}()

	require.Equal(t, `data: {"build":"build-1"}`, <-lines)

	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	s.Rebuild(context.Background())
	require.Equal(t, `data: {"build":"build-2"}`, <-lines)

	b.setErr(errors.New("boom"))
	s.Rebuild(context.Background())
	assert.True(t, strings.HasPrefix(<-lines, `data: {"build":"error-`))
}

func TestHub_shutdown(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	h.Shutdown()
	assert.Zero(t, h.Clients())

	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)

	resp2, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestHub_ignoresRepeatedIDs(t *testing.T) {
	h := NewHub()
	c, current, ok := h.register()
	require.True(t, ok)
	assert.Empty(t, current)

	h.Broadcast("a")
	h.Broadcast("a")
	h.Broadcast("")

	assert.Equal(t, "a", <-c.ch)
	assert.Empty(t, c.ch)
}

func TestInjectClient(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		build    string
		expected string
	}{
		{
			name:     "before body end",
			page:     `<html><body><p>x</p></body></html>`,
			build:    "b1",
			expected: `<html><body><p>x</p><script src="/livereload.js" data-build="b1"></script></body></html>`,
		},
		{
			name:     "upper case tag",
			page:     `<BODY></BODY>`,
			build:    "b1",
			expected: `<BODY><script src="/livereload.js" data-build="b1"></script></BODY>`,
		},
		{
			name:     "no body",
			page:     `<p>x</p>`,
			build:    "b1",
			expected: `<p>x</p><script src="/livereload.js" data-build="b1"></script>`,
		},
		{
			name:     "no build yet",
			page:     `<body></body>`,
			expected: `<body><script src="/livereload.js"></script></body>`,
		},
		{
			name:     "escaped build",
			page:     `<body></body>`,
			build:    `"><x`,
			expected: `<body><script src="/livereload.js" data-build="&#34;&gt;&lt;x"></script></body>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, string(injectClient([]byte(tt.page), tt.build)))
		})
	}
}

func TestClientScript_comparesWithServedBuild(t *testing.T) {
	// the served build is read once, outside the reconnect loop
	idx := strings.Index(clientScript, "function connect()")
	require.Positive(t, idx)
	assert.Contains(t, clientScript[:idx], "document.currentScript")
	assert.Contains(t, clientScript[:idx], "dataset.build")
	assert.NotContains(t, clientScript[idx:], "let current")
}

func TestHub_current(t *testing.T) {
	h := NewHub()
	assert.Empty(t, h.Current())

	h.Broadcast("a")
	assert.Equal(t, "a", h.Current())
}

func TestRun_rebuildsOnChange(t *testing.T) {
	src := t.TempDir()
	b := &fakeBuilder{out: newBuildDir(t)}
	s := New(Config{
		Host:      "127.0.0.1",
		Port:      0,
		WatchDirs: []string{src},
		Debounce:  20 * time.Millisecond,
	}, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, b.count())

	resp, err := http.Get("http://" + s.Addr().String() + "/popup.html")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(src, "index.ts"), []byte("console.log(1)"), 0o600)
		return b.count() >= 2
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("dev server did not shut down")
	}
}

func TestOpenWhenReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	s := New(Config{}, &fakeBuilder{out: t.TempDir()})
	var opened string
	s.opener = func(url string) error {
		opened = url
		return nil
	}

	require.NoError(t, s.openWhenReady(context.Background(), srv.URL))
	assert.Equal(t, srv.URL, opened)
}

func TestHandler_allowedHosts(t *testing.T) {
	s := New(Config{AllowedHosts: []string{"dev.test"}}, &fakeBuilder{out: newBuildDir(t)})
	s.Rebuild(context.Background())
	h := s.Handler()

	rec := get(t, h, "/popup.html")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/popup.html", nil)
	req.Host = "localhost:3003"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}
