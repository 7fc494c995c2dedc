// Package session is the session guard: login-failure lockout, signed
// session tokens and the revocation blacklist, all state kept in a TTL
// key-value store.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/kvstore"
	"github.com/tiammomo/mamoji-sub001/internal/metrics"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

const (
	loginFailPrefix = "ledger:login_fail:"
	blacklistPrefix = "ledger:token_blacklist:"
)

type Token struct {
	Value     string
	UserID    uint
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Guard struct {
	kv        kvstore.Store
	secret    string
	issuer    string
	ttl       time.Duration
	threshold int64
	window    time.Duration
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Guard)

// WithClock replaces time.Now for token timestamps and validation.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(g *Guard) { g.log = log.Named("session") }
}

func NewGuard(kv kvstore.Store, jwtCfg config.JWTConfig, secCfg config.SecurityConfig, opts ...Option) *Guard {
	g := &Guard{
		kv:        kv,
		secret:    jwtCfg.Secret,
		issuer:    jwtCfg.Issuer,
		ttl:       time.Duration(jwtCfg.ExpireHours) * time.Hour,
		threshold: int64(secCfg.LoginFailThreshold),
		window:    time.Duration(secCfg.LoginFailWindowMinutes) * time.Minute,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	if g.ttl <= 0 {
		g.ttl = 24 * time.Hour
	}
	if g.threshold <= 0 {
		g.threshold = 5
	}
	if g.window <= 0 {
		g.window = 15 * time.Minute
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func failKey(username string) string {
	return loginFailPrefix + strings.ToLower(strings.TrimSpace(username))
}

// RecordLoginFailure counts a failed login; the window starts at the first failure.
func (g *Guard) RecordLoginFailure(ctx context.Context, username string) (int64, error) {
	n, err := g.kv.Incr(ctx, failKey(username), g.window)
	if err != nil {
		return 0, apperr.ErrInternal.Wrap(err)
	}
	metrics.LoginFailures.Inc()
	if n >= g.threshold {
		g.log.Warn("account locked after repeated login failures", zap.String("username", username), zap.Int64("failures", n))
	}
	return n, nil
}

// IsAccountLocked is true once the failure count reaches the threshold and
// stays so until the window expires or ClearLoginFailure runs.
func (g *Guard) IsAccountLocked(ctx context.Context, username string) (bool, error) {
	v, ok, err := g.kv.Get(ctx, failKey(username))
	if err != nil {
		return false, apperr.ErrInternal.Wrap(err)
	}
	if !ok {
		return false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, apperr.ErrInternal.Wrap(err)
	}
	return n >= g.threshold, nil
}

func (g *Guard) ClearLoginFailure(ctx context.Context, username string) error {
	if err := g.kv.Delete(ctx, failKey(username)); err != nil {
		return apperr.ErrInternal.Wrap(err)
	}
	return nil
}

// IssueToken signs a session token for the user.
func (g *Guard) IssueToken(userID uint, username string) (*Token, error) {
	signed, claims, err := util.GenerateToken(g.secret, g.issuer, userID, username, g.now(), g.ttl)
	if err != nil {
		return nil, apperr.ErrInternal.Wrap(err)
	}
	return &Token{
		Value:     signed,
		UserID:    userID,
		Username:  username,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ValidateToken checks signature, expiry and the blacklist. Every token
// failure is the same Unauthorized error.
func (g *Guard) ValidateToken(ctx context.Context, tokenStr string) (*util.Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, apperr.ErrUnauthorized
	}
	claims, err := util.ParseToken(g.secret, tokenStr, g.now)
	if err != nil {
		if !util.IsTokenExpired(err) {
			g.log.Debug("rejected malformed token", zap.Error(err))
		}
		return nil, apperr.ErrUnauthorized
	}
	revoked, err := g.kv.Exists(ctx, blacklistKey(tokenStr))
	if err != nil {
		return nil, apperr.ErrInternal.Wrap(err)
	}
	if revoked {
		return nil, apperr.ErrUnauthorized
	}
	return claims, nil
}

// Revoke blacklists the token for the rest of its lifetime. Tokens that
// no longer validate need no entry.
func (g *Guard) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := util.ParseToken(g.secret, strings.TrimSpace(tokenStr), g.now)
	if err != nil {
		return nil
	}
	remaining := claims.ExpiresAt.Time.Sub(g.now())
	if remaining <= 0 {
		return nil
	}
	// round up so the entry never expires before the token does
	remaining = remaining.Truncate(time.Second) + time.Second
	if err := g.kv.SetWithTTL(ctx, blacklistKey(tokenStr), strconv.FormatUint(uint64(claims.UserID), 10), remaining); err != nil {
		return apperr.ErrInternal.Wrap(err)
	}
	g.log.Info("token revoked", zap.Uint("user_id", claims.UserID))
	return nil
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}
