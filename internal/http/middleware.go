package http

import (
	"net"
	"net/http"
	"strings"
)

// NoCache marks every response as uncacheable so the browser always asks
// for the latest build.
func NoCache() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Expires", "0")
			next.ServeHTTP(w, r)
		})
	}
}

// HostName returns the request host without its port.
func HostName(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	// bare IPv6 literal
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

// AllowedHosts rejects requests whose Host header is not in hosts. Loopback
// addresses and localhost are always allowed. A leading dot allows a domain
// and its subdomains.
func AllowedHosts(hosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hostAllowed(HostName(r), hosts) {
				http.Error(w, "Invalid Host header", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(host string, hosts []string) bool {
	host = strings.ToLower(host)
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}

	for _, allowed := range hosts {
		allowed = strings.ToLower(allowed)
		if allowed == "all" || allowed == host {
			return true
		}
		if strings.HasPrefix(allowed, ".") && (host == allowed[1:] || strings.HasSuffix(host, allowed)) {
			return true
		}
	}
	return false
}
