// Package transport carries the protocol over HTTP/JSON: one client used
// by the coordinator and the CLI, and one chi-routed server per role.
package transport

import (
	"encoding/json"
	"net/http"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrent request handling per node
const DefaultWorkers = 10

// Server wraps an http.Server bound to a node address
type Server struct {
	addr   string
	server *http.Server
}

func newServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// Addr returns the bind address
func (s *Server) Addr() string {
	return s.addr
}

// Start serves requests until Stop is called. Blocking.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop closes the server
func (s *Server) Stop() error {
	return s.server.Close()
}

// limitConcurrency caps in-flight handlers with a weighted semaphore,
// mirroring the bounded worker pool of the original services.
func limitConcurrency(workers int64) func(http.Handler) http.Handler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	sem := semaphore.NewWeighted(workers)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sem.Acquire(r.Context(), 1); err != nil {
				http.Error(w, "server busy", http.StatusServiceUnavailable)
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
