package main

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vaughan-dsouza/postagg/internal/aggregate"
	"github.com/vaughan-dsouza/postagg/internal/config"
	"github.com/vaughan-dsouza/postagg/internal/db"
	"github.com/vaughan-dsouza/postagg/internal/fetch"
	"github.com/vaughan-dsouza/postagg/internal/logging"
	"github.com/vaughan-dsouza/postagg/internal/metrics"
	"github.com/vaughan-dsouza/postagg/internal/worker"
)

// app owns the long-lived pieces shared by every aggregation.
type app struct {
	metrics *metrics.Metrics
	pool    *worker.Pool
	agg     *aggregate.Aggregator
	db      *sqlx.DB
	logger  logging.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	a := &app{metrics: metrics.New(), logger: logger}

	source, err := a.source(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := worker.NewPool(worker.Config{Workers: cfg.PoolWorkers, QueueSize: cfg.PoolQueue})
	if err != nil {
		a.closeDB()
		return nil, err
	}
	pool.Start()
	a.pool = pool
	a.metrics.ObservePool(pool.Stats)

	a.agg = aggregate.New(source, pool, aggregate.Options{
		FetchTimeout: cfg.FetchTimeout,
		Logger:       logger,
		Metrics:      a.metrics,
	})

	logger.Info("aggregator ready",
		logging.String("source", cfg.Source),
		logging.Int("workers", pool.Workers()),
		logging.Duration("fetch_timeout", cfg.FetchTimeout),
	)
	return a, nil
}

func (a *app) source(ctx context.Context, cfg *config.Config) (aggregate.Source, error) {
	switch cfg.Source {
	case config.SourceSQL:
		conn, err := db.Connect(ctx, cfg.DatabaseURL, poolOptions(cfg))
		if err != nil {
			return nil, err
		}
		a.db = conn
		return db.NewSQLSource(conn), nil
	default:
		client := fetch.NewClient(fetch.ClientOptions{
			BreakerFailures: cfg.BreakerFailures,
			BreakerTimeout:  cfg.BreakerTimeout,
			Logger:          a.logger.With(logging.String("component", "fetch")),
		})
		return fetch.NewHTTPSource(client, fetch.URLs{
			Posts:    cfg.PostsURL,
			Users:    cfg.UsersURL,
			Comments: cfg.CommentsURL,
		}), nil
	}
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	opts := db.DefaultPoolOptions()
	if cfg.DBMaxOpen > 0 {
		opts.MaxOpen = cfg.DBMaxOpen
	}
	if cfg.DBMaxIdle > 0 {
		opts.MaxIdle = cfg.DBMaxIdle
	}
	if cfg.DBMaxLifetime > 0 {
		opts.MaxLifetime = cfg.DBMaxLifetime
	}
	return opts
}

// close drains the worker pool and releases the database, if any.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		if err := a.pool.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeDB(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) closeDB() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
