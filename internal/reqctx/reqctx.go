// Package reqctx carries the caller's identity through a request's context.Context.
// The identity lives and dies with the context, so nothing leaks between requests.
package reqctx

import "context"

type Identity struct {
	UserID   uint
	Username string
	LedgerID uint
}

type ctxKey struct{}

// WithIdentity returns a child context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// WithLedger returns a child context whose identity selects ledgerID.
// ctx must already carry an identity.
func WithLedger(ctx context.Context, ledgerID uint) context.Context {
	id, _ := From(ctx)
	id.LedgerID = ledgerID
	return WithIdentity(ctx, id)
}

func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) uint {
	id, _ := From(ctx)
	return id.UserID
}

func LedgerID(ctx context.Context) uint {
	id, _ := From(ctx)
	return id.LedgerID
}
