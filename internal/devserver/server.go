// Package devserver serves a development build with live reload, rebuilding
// when sources change.
package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/extpack/internal/assets"
	httpmiddleware "github.com/wolfeidau/extpack/internal/http"
	"github.com/wolfeidau/extpack/internal/logger"
	"github.com/wolfeidau/extpack/internal/telemetry"
)

// Builder produces the build served by the dev server.
type Builder interface {
	Build(ctx context.Context) (*assets.Result, error)
	OutputDir() string
}

type Config struct {
	Host string
	Port int
	// Open the default browser once the server is reachable
	Open bool
	// Compress responses with gzip
	Compress bool
	// StaticDir is served for paths missing from the build directory
	StaticDir string
	// WatchDirs are watched recursively for changes
	WatchDirs []string
	// WatchFiles are single files watched for changes
	WatchFiles []string
	// Debounce delays rebuilds until changes settle
	Debounce time.Duration
	// AllowedHosts limits accepted Host headers, localhost is always
	// accepted. Empty accepts any host.
	AllowedHosts []string
}

// DefaultConfig serves on localhost:3003 and opens the browser
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     3003,
		Open:     true,
		Compress: true,
		Debounce: 300 * time.Millisecond,
	}
}

// Server is the development server.
type Server struct {
	config  Config
	builder Builder
	hub     *Hub
	status  *buildStatus
	opener  func(url string) error

	mu   sync.Mutex
	addr net.Addr
}

// New creates a dev server for the builder
func New(config Config, builder Builder) *Server {
	if config.Debounce <= 0 {
		config.Debounce = 300 * time.Millisecond
	}
	return &Server{
		config:  config,
		builder: builder,
		hub:     NewHub(),
		status:  &buildStatus{},
		opener:  openBrowser,
	}
}

// Addr returns the listening address once Run has started listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Rebuild runs a build, records its outcome and notifies live reload
// clients. Failed builds are reported to clients too so open pages switch
// to the error overlay.
func (s *Server) Rebuild(ctx context.Context) {
	res, err := s.builder.Build(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Build failed")
		s.status.setError(err)
		s.hub.Broadcast("error-" + uuid.NewString())
		return
	}
	s.status.setSuccess()
	s.hub.Broadcast(res.ID)
}

// Handler returns the HTTP handler serving the build, live reload endpoints
// and the error overlay.
func (s *Server) Handler() http.Handler {
	lrCORS := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})

	var files http.Handler = http.HandlerFunc(s.serveFiles)
	if s.config.Compress {
		files = gzhttp.GzipHandler(files)
	}

	mux := http.NewServeMux()
	mux.Handle("/livereload", lrCORS.Handler(s.hub))
	mux.Handle("/livereload.js", lrCORS.Handler(http.HandlerFunc(scriptHandler)))
	mux.Handle("/", files)

	var h http.Handler = httpmiddleware.NoCache()(mux)
	if len(s.config.AllowedHosts) > 0 {
		h = httpmiddleware.AllowedHosts(s.config.AllowedHosts)(h)
	}
	return logger.HTTPRequests(log.Logger)(h)
}

// serveFiles serves the build directory, falling back to the static
// directory. HTML pages get the live reload client, or the error overlay
// while the last build is failing.
func (s *Server) serveFiles(w http.ResponseWriter, r *http.Request) {
	upath := path.Clean("/" + r.URL.Path)
	isPage := strings.HasSuffix(upath, ".html")

	if err, hasGoodBuild := s.status.get(); err != nil && (isPage || upath == "/") {
		writeOverlay(w, err, hasGoodBuild, s.hub.Current())
		return
	}

	root := s.builder.OutputDir()
	if s.config.StaticDir != "" && !exists(root, upath) && exists(s.config.StaticDir, upath) {
		root = s.config.StaticDir
	}

	if !isPage {
		http.FileServer(http.Dir(root)).ServeHTTP(w, r)
		return
	}

	page, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(upath)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(injectClient(page, s.hub.Current())); err != nil {
		log.Debug().Err(err).Msg("Failed to write page")
	}
}

// injectClient adds the live reload script tagged with the build the page
// belongs to before </body>, or at the end when the page has no body end
// tag.
func injectClient(page []byte, build string) []byte {
	tag := []byte(clientTag(build))
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(page, tag...)
	}

	out := make([]byte, 0, len(page)+len(tag))
	out = append(out, page[:idx]...)
	out = append(out, tag...)
	return append(out, page[idx:]...)
}

func clientTag(build string) string {
	if build == "" {
		return `<script src="/livereload.js"></script>`
	}
	return `<script src="/livereload.js" data-build="` + html.EscapeString(build) + `"></script>`
}

func exists(root, upath string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(upath)))
	return err == nil
}

// Run performs the initial build, serves until ctx is cancelled and
// rebuilds on changes. A failing initial build does not stop the server.
func (s *Server) Run(ctx context.Context) error {
	s.Rebuild(ctx)

	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	watcher, err := newWatcher(s.config.WatchDirs, s.config.WatchFiles, s.builder.OutputDir())
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer watcher.Close()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
		close(serveErr)
	}()

	url := "http://" + ln.Addr().String() + "/"
	log.Info().Str("url", url).Msg("Dev server listening")

	if s.config.Open {
		go func() {
			if err := s.openWhenReady(ctx, url); err != nil {
				log.Warn().Err(err).Msg("Failed to open browser")
			}
		}()
	}

	rebuildReq := make(chan struct{}, 1)
	go s.rebuildWorker(ctx, rebuildReq)
	trigger := debouncer(s.config.Debounce, func() {
		select {
		case rebuildReq <- struct{}{}:
		default:
		}
	})

	err = watcher.run(ctx, trigger)

	log.Info().Msg("Shutting down dev server")
	s.hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("HTTP server shutdown error")
	}

	if serr := <-serveErr; serr != nil {
		return serr
	}
	return err
}

// rebuildWorker runs one rebuild at a time. Requests arriving during a
// build collapse into a single follow-up build.
func (s *Server) rebuildWorker(ctx context.Context, rebuildReq <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-rebuildReq:
			telemetry.GetMetrics().RebuildsTriggeredTotal.Add(ctx, 1)
			log.Info().Msg("Change detected, rebuilding")
			s.Rebuild(ctx)
		}
	}
}
