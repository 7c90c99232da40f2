package fetch

import (
	"context"

	"github.com/vaughan-dsouza/postagg/internal/models"
)

// URLs locates the three upstream collections.
type URLs struct {
	Posts    string
	Users    string
	Comments string
}

// HTTPSource reads the three collections from JSON HTTP endpoints.
type HTTPSource struct {
	doer Doer
	urls URLs
}

func NewHTTPSource(doer Doer, urls URLs) *HTTPSource {
	return &HTTPSource{doer: doer, urls: urls}
}

func (s *HTTPSource) Posts(ctx context.Context) ([]models.Post, error) {
	return Fetch[models.Post](ctx, s.doer, models.CollectionPosts, s.urls.Posts)
}

func (s *HTTPSource) Users(ctx context.Context) ([]models.User, error) {
	return Fetch[models.User](ctx, s.doer, models.CollectionUsers, s.urls.Users)
}

func (s *HTTPSource) Comments(ctx context.Context) ([]models.Comment, error) {
	return Fetch[models.Comment](ctx, s.doer, models.CollectionComments, s.urls.Comments)
}
