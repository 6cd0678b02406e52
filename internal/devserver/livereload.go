package devserver

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/extpack/internal/telemetry"
)

// Hub broadcasts build IDs to connected live reload clients over
// server-sent events.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	lastID    string
	heartbeat time.Duration
}

type client struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewHub returns a hub with a 30 second heartbeat.
func NewHub() *Hub {
	return &Hub{clients: map[int]*client{}, heartbeat: 30 * time.Second}
}

// ServeHTTP implements the SSE endpoint
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	c, current, ok := h.register()
	if !ok {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.remove(c.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			log.Debug().Err(err).Msg("livereload write")
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(": connected\n\n") {
		return
	}
	if current != "" && !send(event(current)) {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case id := <-c.ch:
			if !send(event(id)) {
				return
			}
		}
	}
}

func event(id string) string {
	return fmt.Sprintf("data: {\"build\":%q}\n\n", id)
}

func (h *Hub) register() (*client, string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, "", false
	}

	c := &client{id: h.nextID, ch: make(chan string, 8), done: make(chan struct{})}
	h.nextID++
	h.clients[c.id] = c
	telemetry.GetMetrics().LiveReloadClients.Add(context.Background(), 1)
	return c, h.lastID, true
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(c.done)
	telemetry.GetMetrics().LiveReloadClients.Add(context.Background(), -1)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a build ID to all clients. Repeated IDs are ignored and
// clients that are not keeping up are dropped.
func (h *Hub) Broadcast(id string) {
	h.mu.Lock()
	if h.closed || id == "" || id == h.lastID {
		h.mu.Unlock()
		return
	}
	h.lastID = id
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- id:
		default:
			dropped++
			h.remove(c.id)
		}
	}

	telemetry.GetMetrics().LiveReloadBroadcasts.Add(context.Background(), 1)
	log.Debug().Str("build", id).Int("clients", len(snapshot)).Int("dropped", dropped).Msg("livereload broadcast")
}

// Current returns the last broadcast build ID.
func (h *Hub) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastID
}

// Shutdown disconnects all clients and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
		telemetry.GetMetrics().LiveReloadClients.Add(context.Background(), -1)
	}
}

// clientScript connects to the hub at origin and reloads the page when a
// build ID other than the one the page was served with arrives. Pages
// served before any broadcast take the first ID they receive.
const clientScript = `(() => {
  if (window.__EXTPACK_LR__) return;
  window.__EXTPACK_LR__ = true;
  const script = document.currentScript;
  let current = (script && script.dataset.build) || null;
  function connect() {
    const es = new EventSource(%q);
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (!p.build) return;
        if (current === null) { current = p.build; return; }
        if (p.build !== current) { console.log('[extpack] rebuilt, reloading'); location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

func scriptHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	url := "http://" + r.Host + "/livereload"
	if _, err := fmt.Fprintf(w, clientScript, url); err != nil {
		log.Debug().Err(err).Msg("failed to write livereload script")
	}
}
