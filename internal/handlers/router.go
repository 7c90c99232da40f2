package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vaughan-dsouza/postagg/internal/logging"
	"github.com/vaughan-dsouza/postagg/internal/metrics"
	"github.com/vaughan-dsouza/postagg/internal/middleware"
)

type RouterOptions struct {
	// AccessSecret protects the aggregation routes when non-empty.
	AccessSecret string
	Logger       logging.Logger
	Metrics      *metrics.Metrics
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))

	// Public
	r.Get("/healthz", h.Health.Check)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	// Aggregation, protected when a secret is configured
	r.Group(func(r chi.Router) {
		if opts.AccessSecret != "" {
			r.Use(middleware.AuthMiddleware(opts.AccessSecret))
		}

		r.Get("/posts", h.Posts.GetPosts)
		r.Get("/posts/alt", h.Posts.GetPostsAlt)
	})

	return r
}
