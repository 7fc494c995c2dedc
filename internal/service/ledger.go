package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

type LedgerInput struct {
	Name        string
	Description string
	Currency    string
}

type LedgerView struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     uint      `json:"owner_id"`
	IsDefault   bool      `json:"is_default"`
	Currency    string    `json:"currency"`
	Role        string    `json:"role"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type MemberView struct {
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	InvitedBy   *uint     `json:"invited_by"`
}

// LedgerService manages ledgers and their memberships.
type LedgerService struct {
	st              *store.Store
	authz           *Authority
	invites         *InvitationService
	defaultCurrency string
	opts            Options
	log             *zap.Logger
}

func NewLedgerService(st *store.Store, authz *Authority, invites *InvitationService, defaultCurrency string, opts Options) *LedgerService {
	opts = opts.withDefaults()
	if defaultCurrency == "" {
		defaultCurrency = "CNY"
	}
	return &LedgerService{
		st:              st,
		authz:           authz,
		invites:         invites,
		defaultCurrency: defaultCurrency,
		opts:            opts,
		log:             opts.Log.Named("ledger"),
	}
}

func (in *LedgerInput) normalize(defaultCurrency string) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Name == "" || len(in.Name) > 64 {
		return apperr.Validation("ledger name must be 1-64 characters")
	}
	if len(in.Description) > 255 {
		return apperr.Validation("ledger description must be at most 255 characters")
	}
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	if len(in.Currency) > 8 {
		return apperr.Validation("invalid currency")
	}
	return nil
}

// createLedger inserts a ledger owned by ownerID together with the owner membership.
func createLedger(ctx context.Context, tx *store.Store, ownerID uint, in LedgerInput, isDefault bool, now time.Time) (*models.Ledger, error) {
	l := &models.Ledger{
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     ownerID,
		IsDefault:   isDefault,
		Currency:    in.Currency,
		Status:      models.LedgerActive,
	}
	if err := tx.Ledgers.Insert(ctx, l); err != nil {
		return nil, err
	}
	m := &models.LedgerMember{
		LedgerID: l.ID,
		UserID:   ownerID,
		Role:     models.RoleOwner,
		JoinedAt: now.UTC(),
		Status:   models.MemberActive,
	}
	if err := tx.Members.Insert(ctx, m); err != nil {
		return nil, err
	}
	return l, nil
}

// Create makes a new ledger owned by the caller. It becomes the caller's
// default when they have none.
func (s *LedgerService) Create(ctx context.Context, in LedgerInput) (*LedgerView, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(s.defaultCurrency); err != nil {
		return nil, err
	}
	var l *models.Ledger
	err = s.st.Atomic(ctx, func(tx *store.Store) error {
		n, err := tx.Ledgers.SelectCount(ctx, store.Where("owner_id = ? AND is_default = ? AND status = ?",
			id.UserID, true, models.LedgerActive))
		if err != nil {
			return err
		}
		l, err = createLedger(ctx, tx, id.UserID, in, n == 0, s.opts.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("ledger created", zap.Uint("ledger_id", l.ID), zap.Uint("owner_id", id.UserID))
	return &LedgerView{
		ID: l.ID, Name: l.Name, Description: l.Description, OwnerID: l.OwnerID,
		IsDefault: l.IsDefault, Currency: l.Currency, Role: string(models.RoleOwner),
		MemberCount: 1, CreatedAt: l.CreatedAt,
	}, nil
}

func (s *LedgerService) view(ctx context.Context, l *models.Ledger, role models.Role) (LedgerView, error) {
	n, err := s.st.Members.SelectCount(ctx, store.Where("ledger_id = ? AND status = ?", l.ID, models.MemberActive))
	if err != nil {
		return LedgerView{}, err
	}
	return LedgerView{
		ID: l.ID, Name: l.Name, Description: l.Description, OwnerID: l.OwnerID,
		IsDefault: l.IsDefault, Currency: l.Currency, Role: string(role),
		MemberCount: n, CreatedAt: l.CreatedAt,
	}, nil
}

// List returns every active ledger the caller is an active member of.
func (s *LedgerService) List(ctx context.Context) ([]LedgerView, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.st.Members.SelectList(ctx,
		store.Where("user_id = ? AND status = ?", id.UserID, models.MemberActive),
		store.OrderBy("joined_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]LedgerView, 0, len(members))
	for _, m := range members {
		l, err := s.st.Ledgers.SelectOne(ctx, store.Where("id = ? AND status = ?", m.LedgerID, models.LedgerActive))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		v, err := s.view(ctx, l, m.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *LedgerService) Get(ctx context.Context, ledgerID uint) (*LedgerView, error) {
	_, role, err := s.authz.RequireOn(ctx, ledgerID, ActionView)
	if err != nil {
		return nil, err
	}
	l, err := s.st.Ledgers.SelectByID(ctx, ledgerID)
	if err != nil {
		return nil, notFound(err, apperr.ErrLedgerNotFound, "load ledger")
	}
	v, err := s.view(ctx, l, role)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *LedgerService) Update(ctx context.Context, ledgerID uint, in LedgerInput) (*LedgerView, error) {
	if _, _, err := s.authz.RequireOn(ctx, ledgerID, ActionManageLedger); err != nil {
		return nil, err
	}
	if err := in.normalize(s.defaultCurrency); err != nil {
		return nil, err
	}
	if err := s.st.Ledgers.Update(ctx, ledgerID, map[string]any{
		"name":        in.Name,
		"description": in.Description,
		"currency":    in.Currency,
	}); err != nil {
		return nil, notFound(err, apperr.ErrLedgerNotFound, "update ledger")
	}
	return s.Get(ctx, ledgerID)
}

// Delete retires a ledger. Only the owner may do it and only once every
// other member has left. Memberships end and invitations are disabled.
func (s *LedgerService) Delete(ctx context.Context, ledgerID uint) error {
	id, _, err := s.authz.RequireOn(ctx, ledgerID, ActionDeleteLedger)
	if err != nil {
		return err
	}
	err = s.st.Atomic(ctx, func(tx *store.Store) error {
		others, err := tx.Members.SelectCount(ctx, store.Where("ledger_id = ? AND status = ? AND role <> ?",
			ledgerID, models.MemberActive, models.RoleOwner))
		if err != nil {
			return err
		}
		if others > 0 {
			return apperr.ErrCannotDeleteLedgerWithMembers
		}
		l, err := tx.Ledgers.SelectByID(ctx, ledgerID)
		if err != nil {
			return notFound(err, apperr.ErrLedgerNotFound, "load ledger")
		}
		if err := tx.Ledgers.Update(ctx, ledgerID, map[string]any{
			"status":     models.LedgerDeleted,
			"is_default": false,
		}); err != nil {
			return err
		}
		if _, err := tx.Members.UpdateWhere(ctx, map[string]any{"status": models.MemberLeft},
			store.Where("ledger_id = ? AND status = ?", ledgerID, models.MemberActive)); err != nil {
			return err
		}
		if err := s.invites.DisableByLedgerID(ctx, tx, ledgerID); err != nil {
			return err
		}
		if l.IsDefault {
			return promoteDefault(ctx, tx, l.OwnerID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("ledger deleted", zap.Uint("ledger_id", ledgerID), zap.Uint("user_id", id.UserID))
	return nil
}

// promoteDefault makes the owner's oldest remaining ledger the default.
func promoteDefault(ctx context.Context, tx *store.Store, ownerID uint) error {
	next, err := tx.Ledgers.SelectOne(ctx,
		store.Where("owner_id = ? AND status = ?", ownerID, models.LedgerActive),
		store.OrderBy("id ASC"))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.Ledgers.Update(ctx, next.ID, map[string]any{"is_default": true})
}

// SetDefault makes ledgerID the owner's only default ledger.
func (s *LedgerService) SetDefault(ctx context.Context, ledgerID uint) error {
	id, _, err := s.authz.RequireOn(ctx, ledgerID, ActionSetDefault)
	if err != nil {
		return err
	}
	return s.st.Atomic(ctx, func(tx *store.Store) error {
		if _, err := tx.Ledgers.UpdateWhere(ctx, map[string]any{"is_default": false},
			store.Where("owner_id = ? AND is_default = ?", id.UserID, true)); err != nil {
			return err
		}
		return tx.Ledgers.Update(ctx, ledgerID, map[string]any{"is_default": true})
	})
}

// DefaultLedgerID picks the ledger used when a request names none: the
// user's own default ledger, else the first ledger they joined. Zero means
// the user has no ledger at all.
func (s *LedgerService) DefaultLedgerID(ctx context.Context, userID uint) (uint, error) {
	l, err := s.st.Ledgers.SelectOne(ctx, store.Where("owner_id = ? AND is_default = ? AND status = ?",
		userID, true, models.LedgerActive))
	if err == nil {
		return l.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	members, err := s.st.Members.SelectList(ctx,
		store.Where("user_id = ? AND status = ?", userID, models.MemberActive),
		store.OrderBy("joined_at ASC, id ASC"))
	if err != nil {
		return 0, err
	}
	for _, m := range members {
		n, err := s.st.Ledgers.SelectCount(ctx, store.Where("id = ? AND status = ?", m.LedgerID, models.LedgerActive))
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return m.LedgerID, nil
		}
	}
	return 0, nil
}

func (s *LedgerService) Members(ctx context.Context, ledgerID uint) ([]MemberView, error) {
	if _, _, err := s.authz.RequireOn(ctx, ledgerID, ActionView); err != nil {
		return nil, err
	}
	members, err := s.st.Members.SelectList(ctx,
		store.Where("ledger_id = ? AND status = ?", ledgerID, models.MemberActive),
		store.OrderBy("joined_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		v := MemberView{UserID: m.UserID, Role: string(m.Role), JoinedAt: m.JoinedAt, InvitedBy: m.InvitedBy}
		if u, err := s.st.Users.SelectByID(ctx, m.UserID); err == nil {
			v.Username, v.DisplayName = u.Username, u.DisplayName
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *LedgerService) activeMember(ctx context.Context, ledgerID, userID uint) (*models.LedgerMember, error) {
	m, err := s.st.Members.SelectOne(ctx, store.Where("ledger_id = ? AND user_id = ? AND status = ?",
		ledgerID, userID, models.MemberActive))
	if err != nil {
		return nil, notFound(err, apperr.ErrMemberNotFound, "load member")
	}
	return m, nil
}

// UpdateMemberRole changes a member's role. The owner's role is fixed and
// nobody can be made owner this way.
func (s *LedgerService) UpdateMemberRole(ctx context.Context, ledgerID, targetUserID uint, role models.Role) error {
	id, _, err := s.authz.RequireOn(ctx, ledgerID, ActionManageMembers)
	if err != nil {
		return err
	}
	if !role.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown role %q", role))
	}
	m, err := s.activeMember(ctx, ledgerID, targetUserID)
	if err != nil {
		return err
	}
	if m.Role == models.RoleOwner || role == models.RoleOwner {
		return apperr.ErrCannotModifyOwnerRole
	}
	if err := s.st.Members.Update(ctx, m.ID, map[string]any{"role": role}); err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	s.log.Info("member role changed",
		zap.Uint("ledger_id", ledgerID), zap.Uint("user_id", targetUserID),
		zap.String("role", string(role)), zap.Uint("operator_id", id.UserID))
	return nil
}

// RemoveMember ends another member's membership; the owner cannot be removed.
func (s *LedgerService) RemoveMember(ctx context.Context, ledgerID, targetUserID uint) error {
	id, _, err := s.authz.RequireOn(ctx, ledgerID, ActionManageMembers)
	if err != nil {
		return err
	}
	m, err := s.activeMember(ctx, ledgerID, targetUserID)
	if err != nil {
		return err
	}
	if m.Role == models.RoleOwner {
		return apperr.ErrCannotRemoveOwner
	}
	if err := s.st.Members.Update(ctx, m.ID, map[string]any{"status": models.MemberLeft}); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.log.Info("member removed", zap.Uint("ledger_id", ledgerID), zap.Uint("user_id", targetUserID), zap.Uint("operator_id", id.UserID))
	return nil
}

// Quit ends the caller's own membership; the owner cannot quit.
func (s *LedgerService) Quit(ctx context.Context, ledgerID uint) error {
	id, role, err := s.authz.RequireOn(ctx, ledgerID, ActionView)
	if err != nil {
		return err
	}
	if role == models.RoleOwner {
		return apperr.ErrCannotQuitOwner
	}
	m, err := s.activeMember(ctx, ledgerID, id.UserID)
	if err != nil {
		return err
	}
	if err := s.st.Members.Update(ctx, m.ID, map[string]any{"status": models.MemberLeft}); err != nil {
		return fmt.Errorf("quit ledger: %w", err)
	}
	s.log.Info("member quit", zap.Uint("ledger_id", ledgerID), zap.Uint("user_id", id.UserID))
	return nil
}
