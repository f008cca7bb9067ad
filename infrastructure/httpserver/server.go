// Package httpserver exposes the relay over JSON-over-HTTP plus a
// server-to-client event-stream. All errors are translated to status codes
// here; nothing propagates as process-fatal.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rendezvous/services"
)

type Server struct {
	log               *slog.Logger
	service           services.ISignalingService
	keepAliveInterval time.Duration
	streamBufferSize  int
	tlsCertFile       string
	tlsKeyFile        string
	srv               *http.Server
}

func NewServer(log *slog.Logger, service services.ISignalingService,
	addr string, keepAliveInterval time.Duration, streamBufferSize int,
	tlsCertFile, tlsKeyFile string) *Server {
	s := &Server{
		log:               log,
		service:           service,
		keepAliveInterval: keepAliveInterval,
		streamBufferSize:  streamBufferSize,
		tlsCertFile:       tlsCertFile,
		tlsKeyFile:        tlsKeyFile,
	}
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.withRequestLog(s.withCORS(s.routes())),
		// No WriteTimeout, event-stream responses stay open indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /join", s.handleJoin)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /signal", s.handleSignal)
	mux.HandleFunc("POST /leave", s.handleLeave)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start serves until the listener fails. With no credential pair configured
// the relay falls back to plaintext HTTP; browsers generally refuse local
// media capture on insecure origins, so this is loudly warned about but
// enforced outside this core.
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.log.Info("Starting HTTPS relay", "addr", s.srv.Addr)
		return s.srv.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}
	s.log.Warn("No TLS credential pair configured, serving plaintext HTTP", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains idle connections. Held event-streams never drain on their
// own, so callers force Close once the grace period lapses.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.srv.Close()
}

// withCORS lets browser clients on other origins reach the relay, including
// the preflights their fetch layer issues.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush must pass through, the event-stream handler depends on it.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug(fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			"status", rec.status,
			"duration", time.Since(started),
		)
	})
}
