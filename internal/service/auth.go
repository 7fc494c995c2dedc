package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/metrics"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/session"
	"github.com/tiammomo/mamoji-sub001/internal/store"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

const defaultLedgerName = "Default ledger"

type RegisterInput struct {
	Username    string
	Password    string
	DisplayName string
}

type UserView struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

func toUserView(u *models.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
		LastLoginIP: u.LastLoginIP,
	}
}

// AuthService handles registration, login and the user's own profile.
type AuthService struct {
	st              *store.Store
	guard           *session.Guard
	bcryptCost      int
	defaultCurrency string
	opts            Options
	log             *zap.Logger
}

func NewAuthService(st *store.Store, guard *session.Guard, bcryptCost int, defaultCurrency string, opts Options) *AuthService {
	opts = opts.withDefaults()
	if defaultCurrency == "" {
		defaultCurrency = "CNY"
	}
	return &AuthService{
		st:              st,
		guard:           guard,
		bcryptCost:      bcryptCost,
		defaultCurrency: defaultCurrency,
		opts:            opts,
		log:             opts.Log.Named("auth"),
	}
}

func (s *AuthService) findByUsername(ctx context.Context, username string) (*models.User, error) {
	// usernames are unique regardless of case
	return s.st.Users.SelectOne(ctx, store.Where("LOWER(username) = LOWER(?)", username))
}

// Register creates the user together with a default ledger they own.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*UserView, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := util.ValidateUsername(in.Username); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if !util.IsStrongPassword(in.Password) {
		return nil, apperr.Validation("password must be 8-32 characters with upper case, lower case and digits")
	}
	if len(in.DisplayName) > 64 {
		return nil, apperr.Validation("display name must be at most 64 characters")
	}
	hash, err := util.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperr.ErrInternal.Wrap(err)
	}

	u := &models.User{Username: in.Username, PasswordHash: hash, DisplayName: in.DisplayName}
	err = s.st.Atomic(ctx, func(tx *store.Store) error {
		n, err := tx.Users.SelectCount(ctx, store.Where("LOWER(username) = LOWER(?)", in.Username))
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrUsernameExists
		}
		if err := tx.Users.Insert(ctx, u); err != nil {
			return err
		}
		_, err = createLedger(ctx, tx, u.ID, LedgerInput{Name: defaultLedgerName, Currency: s.defaultCurrency}, true, s.opts.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Uint("user_id", u.ID), zap.String("username", u.Username))
	v := toUserView(u)
	return &v, nil
}

// Login checks the lockout first, then the credentials. Every failure,
// unknown usernames included, counts toward the lockout.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	locked, err := s.guard.IsAccountLocked(ctx, username)
	if err != nil {
		return nil, err
	}
	if locked {
		metrics.Lockouts.Inc()
		return nil, apperr.ErrAccountLocked
	}

	u, err := s.findByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil || !util.CheckPassword(password, u.PasswordHash) {
		if _, err := s.guard.RecordLoginFailure(ctx, username); err != nil {
			return nil, err
		}
		return nil, apperr.ErrInvalidCredentials
	}

	if err := s.guard.ClearLoginFailure(ctx, username); err != nil {
		return nil, err
	}
	now := s.opts.Now().UTC()
	if err := s.st.Users.Update(ctx, u.ID, map[string]any{"last_login_at": now, "last_login_ip": ip}); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	u.LastLoginAt, u.LastLoginIP = &now, ip

	tok, err := s.guard.IssueToken(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	s.log.Info("user logged in", zap.Uint("user_id", u.ID), zap.String("ip", ip))
	return &LoginResult{Token: tok.Value, ExpiresAt: tok.ExpiresAt, User: toUserView(u)}, nil
}

// Logout revokes the presented token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.guard.Revoke(ctx, token)
}

func (s *AuthService) Profile(ctx context.Context) (*UserView, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.st.Users.SelectByID(ctx, id.UserID)
	if err != nil {
		return nil, notFound(err, apperr.ErrUserNotFound, "load user")
	}
	v := toUserView(u)
	return &v, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, displayName string) (*UserView, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > 64 {
		return nil, apperr.Validation("display name must be at most 64 characters")
	}
	if err := s.st.Users.Update(ctx, id.UserID, map[string]any{"display_name": displayName}); err != nil {
		return nil, notFound(err, apperr.ErrUserNotFound, "update user")
	}
	return s.Profile(ctx)
}

func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	id, err := identity(ctx)
	if err != nil {
		return err
	}
	u, err := s.st.Users.SelectByID(ctx, id.UserID)
	if err != nil {
		return notFound(err, apperr.ErrUserNotFound, "load user")
	}
	if !util.CheckPassword(oldPassword, u.PasswordHash) {
		return apperr.ErrInvalidCredentials.WithMessage("current password is incorrect")
	}
	if !util.IsStrongPassword(newPassword) {
		return apperr.Validation("password must be 8-32 characters with upper case, lower case and digits")
	}
	hash, err := util.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperr.ErrInternal.Wrap(err)
	}
	if err := s.st.Users.Update(ctx, u.ID, map[string]any{"password_hash": hash}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.Info("password changed", zap.Uint("user_id", u.ID))
	return nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.guard.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := s.st.Users.SelectByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
