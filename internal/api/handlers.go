package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xtding233/payout-engine/internal/game"
	"github.com/xtding233/payout-engine/internal/payout"
)

type calibrationResponse struct {
	Game         string        `json:"game"`
	Mode         string        `json:"mode,omitempty"`
	Version      string        `json:"version,omitempty"`
	CalibratedAt time.Time     `json:"calibrated_at"`
	Quotas       payout.Quotas `json:"quotas"`
	Wincap       float64       `json:"wincap"`
	Report       payout.Report `json:"report"`
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	gameID, mode := chi.URLParam(r, "game"), r.URL.Query().Get("mode")
	e, err := s.engines.Engine(gameID, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := e.Report.Write(w); err != nil {
			s.log.Warn("write report", zap.Error(err))
		}
		return
	}
	s.writeJSON(w, http.StatusOK, calibrationResponse{
		Game:         gameID,
		Mode:         mode,
		Version:      e.Params.Version,
		CalibratedAt: e.CalibratedAt,
		Quotas:       e.Params.Quotas,
		Wincap:       e.Params.Wincap,
		Report:       e.Report,
	})
}

type spinResponse struct {
	Game    string         `json:"game"`
	Mode    string         `json:"mode,omitempty"`
	RNG     string         `json:"rng"`
	Seed    *uint64        `json:"seed,omitempty"`
	Sim     *uint64        `json:"sim,omitempty"`
	Outcome payout.Outcome `json:"outcome"`
}

// handleSpin draws one outcome. With ?seed= the draw is reproducible: it uses
// the same stream simulation index ?sim= would use in a run with that seed.
func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gameID, mode := chi.URLParam(r, "game"), q.Get("mode")
	e, err := s.engines.Engine(gameID, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := spinResponse{Game: gameID, Mode: mode, RNG: "crypto"}
	rng := payout.DefaultRNG()
	if q.Has("seed") {
		seed, err := parseUint(q, "seed")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sim, err := parseUint(q, "sim")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		rng = payout.NewSpinRNG(seed, sim)
		resp.RNG, resp.Seed, resp.Sim = payout.RNGVersion, &seed, &sim
	}

	if b := q.Get("branch"); b != "" {
		branch, err := payout.ParseBranch(b)
		if err != nil {
			s.writeError(w, r, badRequest{err.Error()})
			return
		}
		resp.Outcome = e.Engine.SpinBranch(branch, rng)
	} else {
		resp.Outcome = e.Engine.Spin(rng)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type simulateRequest struct {
	Mode       string   `json:"mode"`
	Spins      int      `json:"spins"`
	Workers    int      `json:"workers"`
	Seed       *uint64  `json:"seed"`
	RTP        *float64 `json:"rtp"`
	Bet        *float64 `json:"bet"`
	Confidence float64  `json:"confidence"`
}

type simulateResponse struct {
	RunID       string          `json:"run_id"`
	Game        string          `json:"game"`
	Mode        string          `json:"mode,omitempty"`
	Version     string          `json:"version,omitempty"`
	TargetRTP   float64         `json:"target_rtp"`
	AnalyticRTP float64         `json:"analytic_rtp"`
	Elapsed     string          `json:"elapsed"`
	Stats       payout.SimStats `json:"stats"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "game")
	var req simulateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, badRequest{"invalid request body: " + err.Error()})
		return
	}
	if req.Spins <= 0 || req.Spins > s.limits.MaxSpins {
		s.writeError(w, r, badRequest{fmt.Sprintf("spins must be in [1, %d]", s.limits.MaxSpins)})
		return
	}
	if req.Workers < 0 || req.Workers > s.limits.MaxWorkers {
		s.writeError(w, r, badRequest{fmt.Sprintf("workers must be in [0, %d]", s.limits.MaxWorkers)})
		return
	}
	if req.Confidence < 0 || req.Confidence >= 1 {
		s.writeError(w, r, badRequest{"confidence must be in (0, 1), or 0 for the default"})
		return
	}

	e, err := s.engines.Build(gameID, req.Mode, game.Overrides{RTP: req.RTP, Bet: req.Bet})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seed := e.Params.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	runID := uuid.NewString()
	start := time.Now()
	stats, err := payout.Simulate(r.Context(), e.Engine, payout.SimParams{
		Spins:      req.Spins,
		Workers:    req.Workers,
		Seed:       seed,
		Confidence: req.Confidence,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	elapsed := time.Since(start)
	s.log.Info("simulation finished",
		zap.String("run_id", runID),
		zap.String("game", gameID),
		zap.String("mode", req.Mode),
		zap.Int("spins", stats.Spins),
		zap.Uint64("seed", seed),
		zap.Float64("rtp", stats.RTP),
		zap.Float64("analytic_rtp", e.Engine.Calibration().Achieved),
		zap.Duration("elapsed", elapsed),
	)
	s.writeJSON(w, http.StatusOK, simulateResponse{
		RunID:       runID,
		Game:        gameID,
		Mode:        req.Mode,
		Version:     e.Params.Version,
		TargetRTP:   e.Params.Target,
		AnalyticRTP: e.Engine.Calibration().Achieved,
		Elapsed:     elapsed.String(),
		Stats:       stats,
	})
}

func parseUint(q map[string][]string, key string) (uint64, error) {
	vals := q[key]
	if len(vals) == 0 || vals[0] == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(vals[0], 10, 64)
	if err != nil {
		return 0, badRequest{fmt.Sprintf("%s must be an unsigned integer", key)}
	}
	return v, nil
}
