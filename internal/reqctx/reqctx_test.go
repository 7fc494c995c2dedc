package reqctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityRoundTrip(t *testing.T) {
	base := context.Background()
	_, ok := From(base)
	assert.False(t, ok)
	assert.Zero(t, UserID(base))

	ctx := WithIdentity(base, Identity{UserID: 7, Username: "alice"})
	ctx = WithLedger(ctx, 3)

	id, ok := From(ctx)
	assert.True(t, ok)
	assert.Equal(t, Identity{UserID: 7, Username: "alice", LedgerID: 3}, id)
	assert.Equal(t, uint(7), UserID(ctx))
	assert.Equal(t, uint(3), LedgerID(ctx))

	// the parent context is unaffected
	assert.Zero(t, LedgerID(base))
}
