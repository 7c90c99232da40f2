package handlers

import (
	"context"

	"github.com/vaughan-dsouza/postagg/internal/aggregate"
	"github.com/vaughan-dsouza/postagg/internal/logging"
	"github.com/vaughan-dsouza/postagg/internal/models"
)

// Aggregator produces the joined post list.
type Aggregator interface {
	Aggregate(ctx context.Context, strategy aggregate.Strategy) ([]models.PostResult, error)
}

type Handler struct {
	Posts  *PostHandler
	Health *HealthHandler
}

func NewHandler(agg Aggregator, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		Posts:  NewPostHandler(agg, logger),
		Health: NewHealthHandler(),
	}
}
