// Package service is the ledger engine: balance and budget consistency,
// ledger membership, invitations and the account/category/report glue
// around them. Callers put the caller's identity on the context with
// reqctx before invoking an operation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/metrics"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

// Options are shared by every service.
type Options struct {
	Log            *zap.Logger
	Now            func() time.Time
	BalanceRetries int
	PageSize       int
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.BalanceRetries <= 0 {
		o.BalanceRetries = 3
	}
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
	return o
}

func (o Options) today() time.Time {
	return startOfDay(o.Now())
}

// identity returns the caller on ctx; a missing user is Unauthorized.
func identity(ctx context.Context) (reqctx.Identity, error) {
	id, ok := reqctx.From(ctx)
	if !ok || id.UserID == 0 {
		return reqctx.Identity{}, apperr.ErrUnauthorized
	}
	return id, nil
}

// ledgerIdentity additionally requires a selected ledger.
func ledgerIdentity(ctx context.Context) (reqctx.Identity, error) {
	id, err := identity(ctx)
	if err != nil {
		return id, err
	}
	if id.LedgerID == 0 {
		return id, apperr.Validation("no ledger selected")
	}
	return id, nil
}

// notFound maps store.ErrNotFound onto a typed failure and wraps anything else.
func notFound(err error, typed *apperr.Error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return typed
	}
	return fmt.Errorf("%s: %w", what, err)
}

// atomicWithRetry runs fn as one unit of work, retrying when a version
// compare-and-swap inside it lost.
func atomicWithRetry(ctx context.Context, st *store.Store, opts Options, fn func(tx *store.Store) error) error {
	for attempt := 1; ; attempt++ {
		err := st.Atomic(ctx, fn)
		if !errors.Is(err, store.ErrStaleVersion) {
			return err
		}
		if attempt >= opts.BalanceRetries {
			return apperr.ErrConflict.Wrap(err)
		}
		metrics.BalanceRetries.Inc()
		opts.Log.Debug("retrying after stale version", zap.Int("attempt", attempt))
	}
}

// Page is one page of a list result.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func pageBounds(page, size, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > 200 {
		size = 200
	}
	return page, size
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

const dateLayout = "2006-01-02"
