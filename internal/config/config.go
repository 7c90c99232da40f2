// Package config loads service configuration from the environment and an
// optional config file. Environment variables take precedence over the file,
// which takes precedence over defaults.
package config

import (
	"net/url"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
)

// Source kinds.
const (
	SourceHTTP = "http"
	SourceSQL  = "sql"
)

// MinPoolWorkers is the smallest pool able to run the three fetches of one
// aggregation side by side.
const MinPoolWorkers = 3

const (
	DefaultPostsURL    = "https://jsonplaceholder.typicode.com/posts"
	DefaultUsersURL    = "https://jsonplaceholder.typicode.com/users"
	DefaultCommentsURL = "https://jsonplaceholder.typicode.com/comments"
)

// Config is the resolved service configuration.
type Config struct {
	Port string

	PostsURL     string
	UsersURL     string
	CommentsURL  string
	FetchTimeout time.Duration

	PoolWorkers int
	PoolQueue   int

	Source      string
	DatabaseURL string

	DBMaxOpen     int
	DBMaxIdle     int
	DBMaxLifetime time.Duration

	// AccessSecret enables bearer authentication on the aggregation routes
	// when non-empty.
	AccessSecret string

	LogLevel string

	BreakerTimeout  time.Duration
	BreakerFailures uint32
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "4000")
	v.SetDefault("posts_url", DefaultPostsURL)
	v.SetDefault("users_url", DefaultUsersURL)
	v.SetDefault("comments_url", DefaultCommentsURL)
	v.SetDefault("fetch_timeout", 10*time.Second)
	v.SetDefault("pool_workers", MinPoolWorkers)
	v.SetDefault("pool_queue", 64)
	v.SetDefault("source", SourceHTTP)
	v.SetDefault("database_url", "")
	v.SetDefault("db_max_open", 25)
	v.SetDefault("db_max_idle", 25)
	v.SetDefault("db_max_lifetime", 5*time.Minute)
	v.SetDefault("access_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("breaker_timeout", 30*time.Second)
	v.SetDefault("breaker_failures", 5)
}

// Load reads configuration. path may be empty, in which case only the
// environment and defaults are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.NewConfigError("config: failed to read %s: %v", path, err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		PostsURL:        v.GetString("posts_url"),
		UsersURL:        v.GetString("users_url"),
		CommentsURL:     v.GetString("comments_url"),
		FetchTimeout:    v.GetDuration("fetch_timeout"),
		PoolWorkers:     v.GetInt("pool_workers"),
		PoolQueue:       v.GetInt("pool_queue"),
		Source:          v.GetString("source"),
		DatabaseURL:     v.GetString("database_url"),
		DBMaxOpen:       v.GetInt("db_max_open"),
		DBMaxIdle:       v.GetInt("db_max_idle"),
		DBMaxLifetime:   v.GetDuration("db_max_lifetime"),
		AccessSecret:    v.GetString("access_secret"),
		LogLevel:        v.GetString("log_level"),
		BreakerTimeout:  v.GetDuration("breaker_timeout"),
		BreakerFailures: v.GetUint32("breaker_failures"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting as an apperrors.ConfigError.
func (c *Config) Validate() error {
	if c.Port == "" {
		return apperrors.NewConfigError("PORT is required")
	}
	if c.FetchTimeout <= 0 {
		return apperrors.NewConfigError("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.PoolWorkers < MinPoolWorkers {
		return apperrors.NewConfigError("POOL_WORKERS must be at least %d, got %d", MinPoolWorkers, c.PoolWorkers)
	}
	if c.PoolQueue < 1 {
		return apperrors.NewConfigError("POOL_QUEUE must be positive, got %d", c.PoolQueue)
	}
	if c.BreakerFailures < 1 {
		return apperrors.NewConfigError("BREAKER_FAILURES must be positive")
	}
	if c.BreakerTimeout <= 0 {
		return apperrors.NewConfigError("BREAKER_TIMEOUT must be positive, got %s", c.BreakerTimeout)
	}

	switch c.Source {
	case SourceHTTP:
		for name, raw := range map[string]string{
			"POSTS_URL":    c.PostsURL,
			"USERS_URL":    c.UsersURL,
			"COMMENTS_URL": c.CommentsURL,
		} {
			u, err := url.Parse(raw)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return apperrors.NewConfigError("%s must be an absolute URL, got %q", name, raw)
			}
		}
	case SourceSQL:
		if c.DatabaseURL == "" {
			return apperrors.NewConfigError("DATABASE_URL is required when SOURCE=%s", SourceSQL)
		}
		if c.DBMaxOpen < 1 {
			return apperrors.NewConfigError("DB_MAX_OPEN must be positive, got %d", c.DBMaxOpen)
		}
	default:
		return apperrors.NewConfigError("SOURCE must be %q or %q, got %q", SourceHTTP, SourceSQL, c.Source)
	}

	return nil
}
