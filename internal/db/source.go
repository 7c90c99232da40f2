package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
	"github.com/vaughan-dsouza/postagg/internal/models"
)

const (
	postsQuery    = `SELECT id, user_id, title, COALESCE(body, '') AS body FROM posts ORDER BY id`
	usersQuery    = `SELECT id, name, COALESCE(username, '') AS username, COALESCE(email, '') AS email FROM users`
	commentsQuery = `SELECT id, post_id, COALESCE(name, '') AS name, COALESCE(email, '') AS email, COALESCE(body, '') AS body FROM comments`
)

// SQLSource reads the three collections from database tables. Query and
// connection failures are reported as transport errors, rows that do not
// scan into the record type as decode errors.
type SQLSource struct {
	db *sqlx.DB
}

func NewSQLSource(db *sqlx.DB) *SQLSource {
	return &SQLSource{db: db}
}

func (s *SQLSource) Posts(ctx context.Context) ([]models.Post, error) {
	return selectAll[models.Post](ctx, s.db, models.CollectionPosts, postsQuery)
}

func (s *SQLSource) Users(ctx context.Context) ([]models.User, error) {
	return selectAll[models.User](ctx, s.db, models.CollectionUsers, usersQuery)
}

func (s *SQLSource) Comments(ctx context.Context) ([]models.Comment, error) {
	return selectAll[models.Comment](ctx, s.db, models.CollectionComments, commentsQuery)
}

func selectAll[T any](ctx context.Context, db *sqlx.DB, source, query string) ([]T, error) {
	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, apperrors.TransportError{Source: source, Cause: err}
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		var item T
		if err := rows.StructScan(&item); err != nil {
			return nil, apperrors.DecodeError{Source: source, Cause: err}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.TransportError{Source: source, Cause: err}
	}
	return items, nil
}
