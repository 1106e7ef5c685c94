// Package server exposes the scorer over HTTP.
//
//	POST /         raw sample body, returns a verdict
//	GET  /healthz  200 with the served model id, 503 before a model is loaded
//	GET  /metrics  Prometheus exposition
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/scorer"
)

// DefaultMaxSampleSize is used when Config.MaxSampleSize is zero (32 MiB).
const DefaultMaxSampleSize = 32 << 20

// Predictor is the scoring surface the server needs; *scorer.Scorer
// implements it.
type Predictor interface {
	Predict(ctx context.Context, sample []byte) (scorer.Verdict, error)
	Model() *model.Model
}

// Config configures a Server.
type Config struct {
	ListenAddr    string
	MaxSampleSize int64
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server routes HTTP requests to a Predictor.
type Server struct {
	cfg       Config
	predictor Predictor
	router    chi.Router
	logger    *slog.Logger
}

// New builds the router.
func New(cfg Config, p Predictor) *Server {
	if cfg.MaxSampleSize <= 0 {
		cfg.MaxSampleSize = DefaultMaxSampleSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, predictor: p, router: chi.NewRouter(), logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/", s.handleScore)
	r.Get("/healthz", s.handleHealth)
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int64("content_length", r.ContentLength),
			slog.Duration("elapsed", time.Since(start)))
	})
}

type scoreResponse struct {
	Result      int     `json:"result"`
	Score       float64 `json:"score"`
	ParseFailed bool    `json:"parse_failed"`
	Cached      bool    `json:"cached"`
	ModelID     string  `json:"model_id"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxSampleSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "sample exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read sample")
		return
	}
	// An empty body is scored like any other unparsable sample.
	v, err := s.predictor.Predict(r.Context(), body)
	switch {
	case errors.Is(err, scorer.ErrNoModel):
		writeError(w, http.StatusServiceUnavailable, "no model loaded")
		return
	case err != nil:
		s.logger.Error("Failed to score sample", slog.Int("size", len(body)), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}

	writeJSON(w, http.StatusOK, scoreResponse{
		Result:      v.Label,
		Score:       v.Score,
		ParseFailed: v.ParseFailed,
		Cached:      v.Cached,
		ModelID:     v.ModelID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	m := s.predictor.Model()
	if m == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no model"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model_id": m.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
