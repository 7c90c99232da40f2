package aggregate

import (
	"context"

	"github.com/vaughan-dsouza/postagg/internal/models"
)

//go:generate mockgen -source=source.go -destination=source_mock_test.go -package=aggregate

// Source provides the three collections. Implementations must honour ctx and
// be safe for concurrent use.
type Source interface {
	Posts(ctx context.Context) ([]models.Post, error)
	Users(ctx context.Context) ([]models.User, error)
	Comments(ctx context.Context) ([]models.Comment, error)
}
