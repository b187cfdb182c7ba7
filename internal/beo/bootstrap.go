package beo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/store"
)

// Loader fills the store with the first page of each collection at startup.
// Transient BEO failures are retried with exponential backoff; client errors are not.
type Loader struct {
	client   *Client
	store    *store.Store
	retry    model.RetryConfig
	pageSize int
	log      *zap.SugaredLogger
}

// NewLoader creates a loader. Zero retry fields fall back to model.DefaultRetryConfig.
func NewLoader(client *Client, st *store.Store, retry model.RetryConfig, pageSize int, log *zap.SugaredLogger) *Loader {
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = model.DefaultRetryConfig.InitialDelay
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = model.DefaultRetryConfig.MaxDelay
	}
	if retry.MaxElapsedTime <= 0 {
		retry.MaxElapsedTime = model.DefaultRetryConfig.MaxElapsedTime
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = model.DefaultRetryConfig.BackoffFactor
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loader{client: client, store: st, retry: retry, pageSize: pageSize, log: log}
}

func (l *Loader) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(l.retry.InitialDelay),
		backoff.WithMaxInterval(l.retry.MaxDelay),
		backoff.WithMaxElapsedTime(l.retry.MaxElapsedTime),
		backoff.WithMultiplier(l.retry.BackoffFactor),
	)
	if l.retry.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(l.retry.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// isRetryable reports whether a failed load may succeed later
func isRetryable(err error) bool {
	var netErr *model.NetworkError
	if !errors.As(err, &netErr) {
		return false
	}
	return netErr.Status == 0 || netErr.Status >= 500 || netErr.Status == 429
}

// LoadType replaces the store's collection of t with the first page from the BEO
func (l *Loader) LoadType(ctx context.Context, t model.Type) (int, error) {
	attempt := 0
	operation := func() (model.PaginationSet[model.Entity], error) {
		attempt++
		set, err := l.client.List(ctx, t, ListQuery{PageSize: l.pageSize})
		if err != nil && !isRetryable(err) {
			return set, backoff.Permanent(err)
		}
		return set, err
	}
	notify := func(err error, wait time.Duration) {
		l.log.Warnw("Loading collection failed, retrying", "type", t, "attempt", attempt, "wait", wait, "error", err)
	}

	set, err := backoff.RetryNotifyWithData[model.PaginationSet[model.Entity]](operation, l.newBackOff(ctx), notify)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", t, err)
	}
	if err := l.store.ReplaceAll(t, set.Data); err != nil {
		return 0, fmt.Errorf("load %s: %w", t, err)
	}
	if set.HasNext {
		l.log.Infow("Loaded first page only", "type", t, "loaded", len(set.Data), "count", set.Count)
	}
	return len(set.Data), nil
}

// LoadAll loads every type concurrently. The first failure cancels the others.
func (l *Loader) LoadAll(ctx context.Context, types ...model.Type) error {
	if len(types) == 0 {
		types = model.KnownTypes
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range types {
		g.Go(func() error {
			n, err := l.LoadType(gctx, t)
			if err != nil {
				return err
			}
			l.log.Infow("Loaded collection", "type", t, "entities", n)
			return nil
		})
	}
	return g.Wait()
}
