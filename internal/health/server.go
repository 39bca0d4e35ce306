// Package health serves per-process liveness and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-metrics"
)

// Pinger checks the connection to the message fabric.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides HTTP health check endpoints for one pipeline role.
type Server struct {
	role     string
	pinger   Pinger
	sink     *metrics.InmemSink
	server   *http.Server
	listener net.Listener
}

// NewServer creates a health server for role. sink may be nil, in which case
// /metrics is not served.
func NewServer(role string, pinger Pinger, sink *metrics.InmemSink) *Server {
	return &Server{
		role:   role,
		pinger: pinger,
		sink:   sink,
	}
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthCheckHandler)
	if s.sink != nil {
		r.Get("/metrics", s.metricsHandler)
	}
	return r
}

// Start listens on port and serves in the background. Port 0 picks a free port.
func (s *Server) Start(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Health] Server error: %v", err)
		}
	}()

	log.Printf("[Health] Listening on %s", listener.Addr())
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the listening port once started.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Response is the JSON body of /healthz.
type Response struct {
	Status string `json:"status"`
	Role   string `json:"role"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// healthCheckHandler returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := Response{Status: "healthy", Role: s.role, Redis: "connected"}
	status := http.StatusOK

	if err := s.pinger.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sink.DisplayMetrics(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
