package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
	"github.com/vaughan-dsouza/postagg/internal/metrics"
	"github.com/vaughan-dsouza/postagg/internal/models"
	"github.com/vaughan-dsouza/postagg/internal/worker"
)

var strategies = []Strategy{StrategyPool, StrategyGroup}

func newPool(t *testing.T, cfg worker.Config) *worker.Pool {
	t.Helper()
	pool, err := worker.NewPool(cfg)
	require.NoError(t, err)
	pool.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return pool
}

func fixturePosts() []models.Post {
	return []models.Post{
		{ID: 2, UserID: 10, Title: "second"},
		{ID: 1, UserID: 10, Title: "A"},
		{ID: 3, UserID: 11, Title: "third"},
	}
}

func fixtureUsers() []models.User {
	return []models.User{{ID: 11, Name: "Bob"}, {ID: 10, Name: "Alice"}}
}

func fixtureComments() []models.Comment {
	return []models.Comment{{PostID: 1}, {PostID: 1}, {PostID: 3}}
}

func expectFixtures(src *MockSource) {
	src.EXPECT().Posts(gomock.Any()).Return(fixturePosts(), nil)
	src.EXPECT().Users(gomock.Any()).Return(fixtureUsers(), nil)
	src.EXPECT().Comments(gomock.Any()).Return(fixtureComments(), nil)
}

// blockUntilDone simulates a slow upstream that honours cancellation.
func blockUntilDone[T any](ctx context.Context) ([]T, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("pool")
	require.NoError(t, err)
	assert.Equal(t, StrategyPool, s)

	s, err = ParseStrategy("group")
	require.NoError(t, err)
	assert.Equal(t, StrategyGroup, s)

	_, err = ParseStrategy("threads")
	assert.Error(t, err)
}

func TestAggregate_Success(t *testing.T) {
	want := []models.PostResult{
		{ID: 2, Title: "second", AuthorName: "Alice", ReviewCount: 0},
		{ID: 1, Title: "A", AuthorName: "Alice", ReviewCount: 2},
		{ID: 3, Title: "third", AuthorName: "Bob", ReviewCount: 1},
	}

	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := NewMockSource(ctrl)
			expectFixtures(src)

			agg := New(src, newPool(t, worker.DefaultConfig()), Options{Metrics: metrics.New()})
			got, err := agg.Aggregate(context.Background(), strategy)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestAggregate_StrategiesAreEquivalent(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Posts(gomock.Any()).Return(fixturePosts(), nil).Times(2)
	src.EXPECT().Users(gomock.Any()).Return(fixtureUsers(), nil).Times(2)
	src.EXPECT().Comments(gomock.Any()).Return(fixtureComments(), nil).Times(2)

	agg := New(src, newPool(t, worker.DefaultConfig()), Options{})

	pooled, err := agg.Aggregate(context.Background(), StrategyPool)
	require.NoError(t, err)
	grouped, err := agg.Aggregate(context.Background(), StrategyGroup)
	require.NoError(t, err)

	pooledJSON, err := json.Marshal(pooled)
	require.NoError(t, err)
	groupedJSON, err := json.Marshal(grouped)
	require.NoError(t, err)
	assert.Equal(t, string(pooledJSON), string(groupedJSON))
}

func TestAggregate_FirstErrorWins(t *testing.T) {
	upstreamErr := apperrors.TransportError{Source: models.CollectionUsers, URL: "http://x/users", StatusCode: 502}

	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := NewMockSource(ctrl)
			src.EXPECT().Posts(gomock.Any()).DoAndReturn(blockUntilDone[models.Post]).AnyTimes()
			src.EXPECT().Users(gomock.Any()).Return(nil, upstreamErr).AnyTimes()
			src.EXPECT().Comments(gomock.Any()).DoAndReturn(blockUntilDone[models.Comment]).AnyTimes()

			agg := New(src, newPool(t, worker.DefaultConfig()), Options{FetchTimeout: 5 * time.Second})

			start := time.Now()
			got, err := agg.Aggregate(context.Background(), strategy)
			assert.Nil(t, got)

			var transportErr apperrors.TransportError
			require.True(t, errors.As(err, &transportErr), "got %v", err)
			assert.Equal(t, upstreamErr, transportErr)
			assert.Less(t, time.Since(start), 2*time.Second, "siblings must not hold up the failure")
		})
	}
}

func TestAggregate_DecodeErrorPropagates(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := NewMockSource(ctrl)
			src.EXPECT().Posts(gomock.Any()).Return(fixturePosts(), nil).AnyTimes()
			src.EXPECT().Users(gomock.Any()).Return(fixtureUsers(), nil).AnyTimes()
			src.EXPECT().Comments(gomock.Any()).
				Return(nil, apperrors.DecodeError{Source: models.CollectionComments, Cause: errors.New("bad json")}).AnyTimes()

			_, err := New(src, newPool(t, worker.DefaultConfig()), Options{}).Aggregate(context.Background(), strategy)
			var decodeErr apperrors.DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}
}

func TestAggregate_MissingAuthor(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := NewMockSource(ctrl)
			src.EXPECT().Posts(gomock.Any()).Return([]models.Post{{ID: 1, UserID: 99, Title: "orphan"}}, nil)
			src.EXPECT().Users(gomock.Any()).Return(fixtureUsers(), nil)
			src.EXPECT().Comments(gomock.Any()).Return(nil, nil)

			got, err := New(src, newPool(t, worker.DefaultConfig()), Options{}).Aggregate(context.Background(), strategy)
			assert.Nil(t, got)
			var joinErr apperrors.JoinIntegrityError
			require.True(t, errors.As(err, &joinErr))
			assert.Equal(t, int64(99), joinErr.UserID)
		})
	}
}

func TestAggregate_FetchTimeout(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := NewMockSource(ctrl)
			src.EXPECT().Posts(gomock.Any()).DoAndReturn(blockUntilDone[models.Post]).AnyTimes()
			src.EXPECT().Users(gomock.Any()).Return(fixtureUsers(), nil).AnyTimes()
			src.EXPECT().Comments(gomock.Any()).Return(fixtureComments(), nil).AnyTimes()

			agg := New(src, newPool(t, worker.DefaultConfig()), Options{FetchTimeout: 30 * time.Millisecond})
			_, err := agg.Aggregate(context.Background(), strategy)
			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestAggregate_QueueWaitCountsAgainstFetchTimeout(t *testing.T) {
	// Each fetch succeeds instantly unless its deadline has already passed.
	instant := func(ctx context.Context) error { return ctx.Err() }

	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Posts(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]models.Post, error) {
		return fixturePosts(), instant(ctx)
	}).AnyTimes()
	src.EXPECT().Users(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]models.User, error) {
		return fixtureUsers(), instant(ctx)
	}).AnyTimes()
	src.EXPECT().Comments(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]models.Comment, error) {
		return fixtureComments(), instant(ctx)
	}).AnyTimes()

	pool := newPool(t, worker.Config{Workers: 1, QueueSize: 8})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		time.Sleep(150 * time.Millisecond)
	}))
	<-started

	agg := New(src, pool, Options{FetchTimeout: 50 * time.Millisecond})
	_, err := agg.Aggregate(context.Background(), StrategyPool)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAggregate_CallerCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Posts(gomock.Any()).DoAndReturn(blockUntilDone[models.Post]).AnyTimes()
	src.EXPECT().Users(gomock.Any()).DoAndReturn(blockUntilDone[models.User]).AnyTimes()
	src.EXPECT().Comments(gomock.Any()).DoAndReturn(blockUntilDone[models.Comment]).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := New(src, newPool(t, worker.DefaultConfig()), Options{}).Aggregate(ctx, StrategyPool)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregate_SourcePanicIsAnError(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := NewMockSource(ctrl)
			src.EXPECT().Posts(gomock.Any()).DoAndReturn(func(context.Context) ([]models.Post, error) {
				panic("decoder exploded")
			}).AnyTimes()
			src.EXPECT().Users(gomock.Any()).Return(fixtureUsers(), nil).AnyTimes()
			src.EXPECT().Comments(gomock.Any()).Return(fixtureComments(), nil).AnyTimes()

			_, err := New(src, newPool(t, worker.DefaultConfig()), Options{}).Aggregate(context.Background(), strategy)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "decoder exploded")
		})
	}
}

func TestAggregate_PoolSaturated(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Posts(gomock.Any()).Return(fixturePosts(), nil).AnyTimes()
	src.EXPECT().Users(gomock.Any()).Return(fixtureUsers(), nil).AnyTimes()
	src.EXPECT().Comments(gomock.Any()).Return(fixtureComments(), nil).AnyTimes()

	pool := newPool(t, worker.Config{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	require.NoError(t, pool.Submit(func() {}))

	_, err := New(src, pool, Options{}).Aggregate(context.Background(), StrategyPool)
	assert.ErrorIs(t, err, worker.ErrQueueFull)
}

func TestAggregate_PoolStrategyWithoutPool(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)

	_, err := New(src, nil, Options{}).Aggregate(context.Background(), StrategyPool)
	assert.ErrorIs(t, err, ErrNoPool)
}

func TestAggregate_UnknownStrategy(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)

	_, err := New(src, nil, Options{}).Aggregate(context.Background(), Strategy("threads"))
	assert.Error(t, err)
}
