package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xtding233/payout-engine/internal/game"
)

// Engines is the subset of the registry the HTTP surface needs.
type Engines interface {
	Engine(game, mode string) (*game.Entry, error)
	Build(game, mode string, o game.Overrides) (*game.Entry, error)
	Keys() []string
}

// Limits bound what a single request may ask for.
type Limits struct {
	MaxSpins   int
	MaxWorkers int
	Timeout    time.Duration
}

var DefaultLimits = Limits{MaxSpins: 10_000_000, MaxWorkers: 64, Timeout: 60 * time.Second}

// Server handles HTTP requests
type Server struct {
	engines Engines
	log     *zap.Logger
	limits  Limits
}

// NewServer creates a new API server
func NewServer(engines Engines, log *zap.Logger, limits Limits) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if limits.MaxSpins <= 0 {
		limits.MaxSpins = DefaultLimits.MaxSpins
	}
	if limits.MaxWorkers <= 0 {
		limits.MaxWorkers = DefaultLimits.MaxWorkers
	}
	if limits.Timeout <= 0 {
		limits.Timeout = DefaultLimits.Timeout
	}
	return &Server{engines: engines, log: log, limits: limits}
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.limits.Timeout))

	// Routes
	r.Get("/health", s.handleHealth)
	r.Route("/games/{game}", func(r chi.Router) {
		r.Get("/calibration", s.handleCalibration)
		r.Get("/spin", s.handleSpin)
		r.Post("/simulate", s.handleSimulate)
	})

	return r
}

// requestLogger logs one line per request with status and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"engines": s.engines.Keys(),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}
