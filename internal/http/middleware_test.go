package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostName(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{
			name:     "host with port",
			host:     "localhost:3003",
			expected: "localhost",
		},
		{
			name:     "host without port",
			host:     "example.com",
			expected: "example.com",
		},
		{
			name:     "IPv6 with port",
			host:     "[::1]:3003",
			expected: "::1",
		},
		{
			name:     "IPv6 without port",
			host:     "[::1]",
			expected: "::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host

			require.Equal(t, tt.expected, HostName(r))
		})
	}
}

func TestAllowedHosts(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		allowed  []string
		expected int
	}{
		{
			name:     "localhost always allowed",
			host:     "localhost:3003",
			expected: http.StatusOK,
		},
		{
			name:     "loopback IPv4",
			host:     "127.0.0.1:3003",
			expected: http.StatusOK,
		},
		{
			name:     "loopback IPv6",
			host:     "[::1]:3003",
			expected: http.StatusOK,
		},
		{
			name:     "unknown host rejected",
			host:     "attacker.example:3003",
			expected: http.StatusForbidden,
		},
		{
			name:     "listed host",
			host:     "dev.test:3003",
			allowed:  []string{"dev.test"},
			expected: http.StatusOK,
		},
		{
			name:     "subdomain wildcard",
			host:     "a.dev.test",
			allowed:  []string{".dev.test"},
			expected: http.StatusOK,
		},
		{
			name:     "wildcard matches bare domain",
			host:     "dev.test",
			allowed:  []string{".dev.test"},
			expected: http.StatusOK,
		},
		{
			name:     "all",
			host:     "192.168.1.10:3003",
			allowed:  []string{"all"},
			expected: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowedHosts(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			require.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestNoCache(t *testing.T) {
	h := NoCache()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
	assert.Equal(t, "ok", rec.Body.String())
}
