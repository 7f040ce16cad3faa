package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xtding233/payout-engine/internal/game"
)

// Error types returned in the "type" field of error bodies.
const (
	ErrTypeValidation = "validation"
	ErrTypeNotFound   = "not_found"
	ErrTypeConfig     = "invalid_config"
	ErrTypeRejected   = "calibration_rejected"
	ErrTypeTimeout    = "timeout"
	ErrTypeInternal   = "internal"
)

type errorBody struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// badRequest marks a client input error.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func classify(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, game.ErrBadName):
		return http.StatusBadRequest, ErrTypeValidation
	case errors.Is(err, game.ErrUnknownGame), errors.Is(err, game.ErrUnknownMode):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, game.ErrInvalidConfig):
		return http.StatusUnprocessableEntity, ErrTypeConfig
	case errors.Is(err, game.ErrCalibrationRejected):
		return http.StatusUnprocessableEntity, ErrTypeRejected
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrTypeTimeout
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// writeError maps err to a status and JSON body, logging server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, typ := classify(err)
	reqID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("request_id", reqID), zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, status, errorBody{Type: typ, Message: err.Error(), RequestID: reqID})
}
