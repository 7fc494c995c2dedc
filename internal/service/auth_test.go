package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/kvstore"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/session"
)

func newAuth(t *testing.T) (*fixture, *AuthService) {
	t.Helper()
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := session.NewGuard(kvstore.NewRedisFromClient(client),
		config.JWTConfig{Secret: "test-secret", Issuer: "test", ExpireHours: 1},
		config.SecurityConfig{LoginFailThreshold: 3, LoginFailWindowMinutes: 15},
		session.WithClock(func() time.Time { return testNow }))
	return f, NewAuthService(f.st, guard, bcrypt.MinCost, "CNY", f.opts)
}

func TestRegisterCreatesDefaultLedger(t *testing.T) {
	f, auth := newAuth(t)
	ctx := context.Background()

	u, err := auth.Register(ctx, RegisterInput{Username: "alice_01", Password: "Secret123", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.DisplayName)

	ledgerID, err := f.ledgers.DefaultLedgerID(ctx, u.ID)
	require.NoError(t, err)
	require.NotZero(t, ledgerID)

	userCtx := reqctx.WithIdentity(ctx, reqctx.Identity{UserID: u.ID, Username: u.Username, LedgerID: ledgerID})
	l, err := f.ledgers.Get(userCtx, ledgerID)
	require.NoError(t, err)
	assert.Equal(t, "owner", l.Role)
	assert.True(t, l.IsDefault)

	_, err = auth.Register(ctx, RegisterInput{Username: "ALICE_01", Password: "Secret123"})
	assert.ErrorIs(t, err, apperr.ErrUsernameExists)
	_, err = auth.Register(ctx, RegisterInput{Username: "bob", Password: "weak"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = auth.Register(ctx, RegisterInput{Username: "b!", Password: "Secret123"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLoginLogout(t *testing.T) {
	_, auth := newAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, RegisterInput{Username: "alice", Password: "Secret123"})
	require.NoError(t, err)

	res, err := auth.Login(ctx, "Alice", "Secret123", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.ExpiresAt.Equal(testNow.Add(time.Hour)))
	assert.Equal(t, "10.0.0.1", res.User.LastLoginIP)

	u, err := auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	require.NoError(t, auth.Logout(ctx, res.Token))
	_, err = auth.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestLoginLockout(t *testing.T) {
	_, auth := newAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, RegisterInput{Username: "alice", Password: "Secret123"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := auth.Login(ctx, "alice", "wrong", "")
		assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	}
	// the right password no longer helps
	_, err = auth.Login(ctx, "alice", "Secret123", "")
	assert.ErrorIs(t, err, apperr.ErrAccountLocked)

	// unknown usernames count too
	for i := 0; i < 3; i++ {
		_, err := auth.Login(ctx, "ghost", "whatever", "")
		assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	}
	_, err = auth.Login(ctx, "ghost", "whatever", "")
	assert.ErrorIs(t, err, apperr.ErrAccountLocked)
}

func TestProfileAndPassword(t *testing.T) {
	_, auth := newAuth(t)
	ctx := context.Background()
	u, err := auth.Register(ctx, RegisterInput{Username: "alice", Password: "Secret123"})
	require.NoError(t, err)
	userCtx := reqctx.WithIdentity(ctx, reqctx.Identity{UserID: u.ID, Username: u.Username})

	p, err := auth.UpdateProfile(userCtx, "  Ally ")
	require.NoError(t, err)
	assert.Equal(t, "Ally", p.DisplayName)

	assert.ErrorIs(t, auth.ChangePassword(userCtx, "nope", "Better456"), apperr.ErrInvalidCredentials)
	assert.ErrorIs(t, auth.ChangePassword(userCtx, "Secret123", "short"), apperr.ErrValidation)
	require.NoError(t, auth.ChangePassword(userCtx, "Secret123", "Better456"))

	_, err = auth.Login(ctx, "alice", "Secret123", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = auth.Login(ctx, "alice", "Better456", "")
	assert.NoError(t, err)

	_, err = auth.Profile(ctx)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
