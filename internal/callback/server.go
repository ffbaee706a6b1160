// Package callback receives the OAuth redirect during authorization and
// hands the code to whoever asks for it, exactly once.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/replybot/internal/logging"
)

// Authorization is what the provider redirected back with.
type Authorization struct {
	URL   string `json:"url"`
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

// Source yields the pending authorization, or ok=false if none has
// arrived yet.
type Source interface {
	Take(ctx context.Context) (Authorization, bool, error)
}

// Server is the local redirect receiver.
type Server struct {
	addr string
	log  *logging.Logger
	cell Cell[Authorization]

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

var _ Source = (*Server)(nil)

// NewServer creates a receiver that will listen on addr.
func NewServer(addr string, log *logging.Logger) *Server {
	return &Server{addr: addr, log: log.Sub("callback")}
}

// Handler returns the receiver's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth", s.handleAuth)
	mux.HandleFunc("PUT /auth", s.handleAuth)
	mux.HandleFunc("GET /get", s.handleGet)
	mux.HandleFunc("GET /health", s.handleHealth)
	return withMiddleware(mux, s.log)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		reason := "Failed to save auth"
		if e := q.Get("error"); e != "" {
			reason += ": " + e
		}
		http.Error(w, reason, http.StatusBadRequest)
		return
	}
	s.cell.Store(Authorization{URL: fullURL(r), Code: code, State: q.Get("state")})
	s.log.Info().Msg("authorization received")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Authorization received. You can close this window.")
}

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	auth, ok := s.cell.Take()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No auth yet"})
		return
	}
	writeJSON(w, http.StatusOK, auth)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func fullURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// Take returns the pending authorization from this process.
func (s *Server) Take(context.Context) (Authorization, bool, error) {
	a, ok := s.cell.Take()
	return a, ok, nil
}

// Listen binds the address. It is separate from Serve so callers learn the
// bound port (addr may end in :0) before serving.
func (s *Server) Listen() (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return ln.Addr().String(), nil
}

// Serve runs the receiver until ctx ends, listening first if needed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("callback receiver ready")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	}
}
