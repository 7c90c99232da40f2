package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is written to run unchanged on Postgres and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id       BIGINT PRIMARY KEY,
		name     TEXT NOT NULL,
		username TEXT,
		email    TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id      BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		title   TEXT NOT NULL,
		body    TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id      BIGINT PRIMARY KEY,
		post_id BIGINT NOT NULL,
		name    TEXT,
		email   TEXT,
		body    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_id_idx ON comments (post_id)`,
}

// Migrate creates the source tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migrate: %w", err)
		}
	}
	return nil
}
