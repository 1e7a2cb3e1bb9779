// Package preview implements the Preview HTTP Server (C2): it serves
// PROJECT_ROOT over HTTP and hands out the absolute http:// URLs the rest of
// the system consumes. file:// URLs are never produced here; the evaluator
// logs a warning when it is handed a URL that is not http(s)://.
//
// Grounded directly on the teacher's pkg/web/server.go (bind on a
// background goroutine, return a shutdown func, CORS for local tooling),
// generalized from serving an embedded static bundle to serving an
// arbitrary on-disk PROJECT_ROOT and adding Server.URL/GetFileURL.
package preview

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Server is a singleton-friendly wrapper over net/http serving ProjectRoot.
// Start/Stop form the lifecycle; Stop is idempotent and safe to call even if
// Start never succeeded.
type Server struct {
	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	host     string
	port     int
	root     string
	log      logr.Logger
}

// New constructs a Server bound to host:port (port 0 lets the OS choose)
// serving files out of root.
func New(log logr.Logger, root, host string, port int) *Server {
	if host == "" {
		host = "127.0.0.1"
	}
	return &Server{root: root, host: host, port: port, log: log.WithName("preview")}
}

// Start binds the listener and begins serving in a background goroutine.
// It is safe to call Start again after Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return fmt.Errorf("preview: server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("preview: failed to bind port: %w", err)
	}

	s.port = ln.Addr().(*net.TCPAddr).Port
	s.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.root)))

	s.srv = &http.Server{
		Handler:      corsMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error(err, "preview server stopped unexpectedly")
		}
	}()

	s.log.Info("preview server listening", "url", s.url())
	return nil
}

// Stop gracefully drains the server. It is idempotent: calling it when the
// server was never started, or twice, is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
	s.srv = nil
	s.listener = nil
}

// Listening reports whether the server currently holds an open listener.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// URL returns the base http:// URL of the running server.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url()
}

func (s *Server) url() string {
	return fmt.Sprintf("http://%s:%d", s.host, s.port)
}

// GetFileURL returns the absolute http:// URL for a path relative to
// PROJECT_ROOT. file:// is never produced by this method.
func (s *Server) GetFileURL(relPath string) string {
	return fmt.Sprintf("%s/%s", s.URL(), relPath)
}

// corsMiddleware adds permissive CORS headers suitable for localhost-only
// use by the evaluator's headless browser.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
