package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/vaughan-dsouza/postagg/internal/aggregate"
	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
	"github.com/vaughan-dsouza/postagg/internal/logging"
	"github.com/vaughan-dsouza/postagg/internal/utils"
	"github.com/vaughan-dsouza/postagg/internal/worker"
)

type PostHandler struct {
	agg    Aggregator
	logger logging.Logger
}

func NewPostHandler(agg Aggregator, logger logging.Logger) *PostHandler {
	return &PostHandler{agg: agg, logger: logger}
}

// GetPosts serves the aggregation on the worker pool.
func (h *PostHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, aggregate.StrategyPool)
}

// GetPostsAlt serves the same aggregation with the errgroup strategy.
func (h *PostHandler) GetPostsAlt(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, aggregate.StrategyGroup)
}

func (h *PostHandler) serve(w http.ResponseWriter, r *http.Request, strategy aggregate.Strategy) {
	results, err := h.agg.Aggregate(r.Context(), strategy)
	if err != nil {
		status := StatusFor(err)
		h.logger.Error("aggregate posts", err,
			logging.String("strategy", string(strategy)),
			logging.Int("status", status))
		utils.JSONError(w, status, err.Error())
		return
	}

	utils.JSON(w, http.StatusOK, results)
}

// StatusFor maps an aggregation error to an HTTP status.
func StatusFor(err error) int {
	var transportErr apperrors.TransportError

	switch {
	case errors.Is(err, worker.ErrQueueFull),
		errors.Is(err, worker.ErrStopped),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
