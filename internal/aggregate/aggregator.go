package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vaughan-dsouza/postagg/internal/logging"
	"github.com/vaughan-dsouza/postagg/internal/metrics"
	"github.com/vaughan-dsouza/postagg/internal/models"
	"github.com/vaughan-dsouza/postagg/internal/worker"
)

const tracerName = "github.com/vaughan-dsouza/postagg/internal/aggregate"

// DefaultFetchTimeout bounds a single collection fetch when Options leaves it
// unset.
const DefaultFetchTimeout = 10 * time.Second

// Strategy selects how the three fetches are scheduled.
type Strategy string

const (
	StrategyPool  Strategy = "pool"
	StrategyGroup Strategy = "group"
)

var ErrNoPool = errors.New("aggregate: pool strategy requires a worker pool")

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case StrategyPool, StrategyGroup:
		return s, nil
	default:
		return "", fmt.Errorf("aggregate: unknown strategy %q", name)
	}
}

// Options configures an Aggregator. Zero values are usable.
type Options struct {
	FetchTimeout time.Duration
	Logger       logging.Logger
	Metrics      *metrics.Metrics
	Tracer       trace.Tracer
}

// Aggregator runs the fetch fan-out and the join.
type Aggregator struct {
	source       Source
	pool         *worker.Pool
	fetchTimeout time.Duration
	logger       logging.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// New builds an Aggregator. pool may be nil if only StrategyGroup is used.
func New(source Source, pool *worker.Pool, opts Options) *Aggregator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Aggregator{
		source:       source,
		pool:         pool,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
	}
}

// collections holds one slot per fetch. Each slot is written by exactly one
// task and read only after all tasks have reported success.
type collections struct {
	posts    []models.Post
	users    []models.User
	comments []models.Comment
}

// Aggregate fetches the three collections with the given strategy and joins
// them. Output order follows the fetched post order.
func (a *Aggregator) Aggregate(ctx context.Context, strategy Strategy) ([]models.PostResult, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "aggregate",
		trace.WithAttributes(attribute.String("strategy", string(strategy))))
	defer span.End()

	var (
		c   collections
		err error
	)
	switch strategy {
	case StrategyPool:
		c, err = a.collectPool(ctx)
	case StrategyGroup:
		c, err = a.collectGroup(ctx)
	default:
		err = fmt.Errorf("aggregate: unknown strategy %q", strategy)
	}

	var results []models.PostResult
	if err == nil {
		results, err = Join(c.posts, c.users, c.comments)
	}

	took := time.Since(start)
	a.metrics.ObserveAggregation(string(strategy), took, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Error("aggregation failed", err,
			logging.String("strategy", string(strategy)),
			logging.Duration("took", took))
		return nil, err
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	a.logger.Debug("aggregation complete",
		logging.String("strategy", string(strategy)),
		logging.Int("posts", len(c.posts)),
		logging.Int("users", len(c.users)),
		logging.Int("comments", len(c.comments)),
		logging.Duration("took", took))
	return results, nil
}

// collectPool submits the fetches to the worker pool and returns on the
// first error without waiting for the others.
func (a *Aggregator) collectPool(ctx context.Context) (collections, error) {
	if a.pool == nil {
		return collections{}, ErrNoPool
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var c collections
	fetches := a.fetches(&c)
	errs := make(chan error, len(fetches))

	for _, fetch := range fetches {
		// The deadline covers time spent queued behind other tasks.
		fctx, fcancel := context.WithTimeout(ctx, a.fetchTimeout)
		task := func() {
			defer fcancel()
			errs <- fetch(fctx)
		}
		if err := a.pool.Submit(task); err != nil {
			fcancel()
			return collections{}, fmt.Errorf("aggregate: submit fetch: %w", err)
		}
	}

	for range fetches {
		select {
		case err := <-errs:
			if err != nil {
				return collections{}, err
			}
		case <-ctx.Done():
			return collections{}, ctx.Err()
		}
	}
	return c, nil
}

// collectGroup runs the fetches in an errgroup. The first failure cancels
// the group context.
func (a *Aggregator) collectGroup(ctx context.Context) (collections, error) {
	var c collections
	g, gctx := errgroup.WithContext(ctx)
	for _, fetch := range a.fetches(&c) {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, a.fetchTimeout)
			defer cancel()
			return fetch(fctx)
		})
	}
	if err := g.Wait(); err != nil {
		return collections{}, err
	}
	return c, nil
}

// fetches returns one task per collection, each writing only its own slot.
func (a *Aggregator) fetches(c *collections) []func(context.Context) error {
	return []func(context.Context) error{
		func(ctx context.Context) error {
			return a.fetch(ctx, models.CollectionPosts, func(ctx context.Context) (n int, err error) {
				c.posts, err = a.source.Posts(ctx)
				return len(c.posts), err
			})
		},
		func(ctx context.Context) error {
			return a.fetch(ctx, models.CollectionUsers, func(ctx context.Context) (n int, err error) {
				c.users, err = a.source.Users(ctx)
				return len(c.users), err
			})
		},
		func(ctx context.Context) error {
			return a.fetch(ctx, models.CollectionComments, func(ctx context.Context) (n int, err error) {
				c.comments, err = a.source.Comments(ctx)
				return len(c.comments), err
			})
		},
	}
}

// fetch runs one collection fetch with tracing and metrics. ctx already
// carries the per-fetch deadline. A panicking source is reported as an error.
func (a *Aggregator) fetch(ctx context.Context, name string, fn func(context.Context) (int, error)) (err error) {
	ctx, span := a.tracer.Start(ctx, "fetch "+name)
	defer span.End()

	start := time.Now()
	var n int
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch %s: panic: %v", name, r)
		}
		took := time.Since(start)
		a.metrics.ObserveFetch(name, took, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetAttributes(attribute.Int("records", n))
		a.logger.Debug("fetched collection",
			logging.String("source", name),
			logging.Int("records", n),
			logging.Duration("took", took))
	}()

	n, err = fn(ctx)
	return err
}
