// Package server exposes the tick endpoint an external trigger (cron, the
// burst harness) calls to run one scheduler tick.
//
// Endpoints:
//   - POST /api/scheduler/tick - runs one tick; requires "Authorization: Bearer <secret>"
//   - GET  /health             - 200 when the tenant store answers, 503 otherwise
//
// Ticks are serialized: a request that arrives while a tick runs waits for it.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rewired-gh/polytrader/internal/logger"
	"github.com/rewired-gh/polytrader/internal/scheduler"
)

// Ticker runs one tick. *scheduler.Orchestrator implements it.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (scheduler.Summary, error)
}

// Config holds server settings.
type Config struct {
	Addr         string
	TickSecret   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// HealthCheck is optional; nil always reports healthy.
	HealthCheck func(ctx context.Context) error
	// OnTick is optional and called after every tick RunTick runs.
	OnTick func(summary scheduler.Summary, err error, elapsed time.Duration)
}

// TickResponse is the JSON envelope of the tick endpoint.
type TickResponse struct {
	OK bool `json:"ok"`
	scheduler.Summary
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Server serves the tick and health endpoints.
type Server struct {
	server *http.Server
	ticker Ticker
	cfg    Config
	now    func() time.Time
	log    *logger.Logger

	tickMu sync.Mutex
}

// New creates a Server. It does not start listening.
func New(cfg Config, ticker Ticker) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 120 * time.Second
	}

	s := &Server{
		ticker: ticker,
		cfg:    cfg,
		now:    time.Now,
		log:    logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scheduler/tick", s.handleTick)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens in a goroutine. Listen errors other than a clean shutdown are
// sent on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TickSecret == "" {
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "tick endpoint disabled: no secret configured"})
		return
	}
	if !s.authorized(r) {
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	summary, err := s.RunTick(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if summary.Results == nil {
		summary.Results = []scheduler.TenantResult{}
	}
	respondJSON(w, http.StatusOK, TickResponse{OK: true, Summary: summary})
}

// RunTick runs one tick under the server's tick lock and reports it to
// OnTick. The embedded trigger uses it so that its ticks never overlap
// endpoint ticks.
func (s *Server) RunTick(ctx context.Context) (scheduler.Summary, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := time.Now()
	summary, err := s.ticker.Tick(ctx, s.now())
	elapsed := time.Since(start)
	if err != nil {
		s.log.Error("tick failed after %v: %v", elapsed, err)
	}
	if s.cfg.OnTick != nil {
		s.cfg.OnTick(summary, err, elapsed)
	}
	return summary, err
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.cfg.TickSecret)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.HealthCheck(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
