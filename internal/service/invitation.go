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
	"github.com/tiammomo/mamoji-sub001/internal/store"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

const inviteCodeLength = 8

type InvitationInput struct {
	Role      models.Role
	MaxUses   int
	ExpiresAt *time.Time
}

type InvitationView struct {
	ID        uint       `json:"id"`
	LedgerID  uint       `json:"ledger_id"`
	Code      string     `json:"code"`
	InviteURL string     `json:"invite_url"`
	Role      string     `json:"role"`
	MaxUses   int        `json:"max_uses"`
	UsedCount int        `json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedBy uint       `json:"created_by"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

type JoinResult struct {
	LedgerID   uint   `json:"ledger_id"`
	LedgerName string `json:"ledger_name"`
	Role       string `json:"role"`
}

// InvitationService issues, redeems and retires invitation codes.
type InvitationService struct {
	st     *store.Store
	authz  *Authority
	domain string
	opts   Options
	log    *zap.Logger
}

func NewInvitationService(st *store.Store, authz *Authority, domain string, opts Options) *InvitationService {
	opts = opts.withDefaults()
	return &InvitationService{
		st:     st,
		authz:  authz,
		domain: strings.TrimRight(domain, "/"),
		opts:   opts,
		log:    opts.Log.Named("invitation"),
	}
}

func (s *InvitationService) toView(inv *models.Invitation) InvitationView {
	return InvitationView{
		ID:        inv.ID,
		LedgerID:  inv.LedgerID,
		Code:      inv.Code,
		InviteURL: s.domain + "/join/" + inv.Code,
		Role:      string(inv.Role),
		MaxUses:   inv.MaxUses,
		UsedCount: inv.UsedCount,
		ExpiresAt: inv.ExpiresAt,
		CreatedBy: inv.CreatedBy,
		Active:    inv.Status == models.InvitationActive,
		CreatedAt: inv.CreatedAt,
	}
}

// Create issues a fresh code granting in.Role (editor when empty) on the ledger.
func (s *InvitationService) Create(ctx context.Context, ledgerID uint, in InvitationInput) (*InvitationView, error) {
	id, _, err := s.authz.RequireOn(ctx, ledgerID, ActionInvite)
	if err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleEditor
	}
	if !in.Role.Valid() || in.Role == models.RoleOwner {
		return nil, apperr.ErrInvalidInvitationRole
	}
	if in.MaxUses < 0 {
		return nil, apperr.Validation("max uses cannot be negative")
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		if !exp.After(s.opts.Now()) {
			return nil, apperr.Validation("expiry must be in the future")
		}
		in.ExpiresAt = &exp
	}

	inv := &models.Invitation{
		LedgerID:  ledgerID,
		Role:      in.Role,
		MaxUses:   in.MaxUses,
		ExpiresAt: in.ExpiresAt,
		CreatedBy: id.UserID,
		Status:    models.InvitationActive,
	}
	for attempt := 0; ; attempt++ {
		code, err := util.GenerateInviteCode(inviteCodeLength)
		if err != nil {
			return nil, apperr.ErrInternal.Wrap(err)
		}
		n, err := s.st.Invitations.SelectCount(ctx, store.Where("code = ?", code))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			inv.Code = code
			break
		}
		if attempt >= 4 {
			return nil, apperr.ErrInternal.WithMessage("could not allocate an invitation code")
		}
	}
	if err := s.st.Invitations.Insert(ctx, inv); err != nil {
		return nil, err
	}
	s.log.Info("invitation created",
		zap.Uint("ledger_id", ledgerID), zap.Uint("invitation_id", inv.ID),
		zap.String("role", string(inv.Role)), zap.Int("max_uses", inv.MaxUses))
	v := s.toView(inv)
	return &v, nil
}

// List returns the ledger's active invitations, newest first.
func (s *InvitationService) List(ctx context.Context, ledgerID uint) ([]InvitationView, error) {
	if _, _, err := s.authz.RequireOn(ctx, ledgerID, ActionInvite); err != nil {
		return nil, err
	}
	list, err := s.st.Invitations.SelectList(ctx,
		store.Where("ledger_id = ? AND status = ?", ledgerID, models.InvitationActive),
		store.OrderBy("id DESC"))
	if err != nil {
		return nil, err
	}
	out := make([]InvitationView, 0, len(list))
	for i := range list {
		out = append(out, s.toView(&list[i]))
	}
	return out, nil
}

// Revoke disables the ledger's invitation with the given code.
func (s *InvitationService) Revoke(ctx context.Context, ledgerID uint, code string) error {
	id, _, err := s.authz.RequireOn(ctx, ledgerID, ActionInvite)
	if err != nil {
		return err
	}
	inv, err := s.st.Invitations.SelectOne(ctx, store.Where("ledger_id = ? AND code = ?", ledgerID, normalizeCode(code)))
	if err != nil {
		return notFound(err, apperr.ErrInvitationNotFound, "load invitation")
	}
	if err := s.Disable(ctx, s.st, inv.ID); err != nil {
		return err
	}
	s.log.Info("invitation revoked", zap.Uint("invitation_id", inv.ID), zap.Uint("operator_id", id.UserID))
	return nil
}

// Disable flips one invitation to disabled. Disabling twice is fine.
func (s *InvitationService) Disable(ctx context.Context, st *store.Store, invitationID uint) error {
	if _, err := st.Invitations.UpdateWhere(ctx, map[string]any{"status": models.InvitationDisabled},
		store.Where("id = ?", invitationID)); err != nil {
		return fmt.Errorf("disable invitation %d: %w", invitationID, err)
	}
	return nil
}

// DisableByLedgerID disables every invitation of a ledger.
func (s *InvitationService) DisableByLedgerID(ctx context.Context, st *store.Store, ledgerID uint) error {
	if _, err := st.Invitations.UpdateWhere(ctx, map[string]any{"status": models.InvitationDisabled},
		store.Where("ledger_id = ? AND status = ?", ledgerID, models.InvitationActive)); err != nil {
		return fmt.Errorf("disable invitations of ledger %d: %w", ledgerID, err)
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem joins the caller to the invitation's ledger with the invitation's
// role. The use count is claimed with one conditional update, so at most
// MaxUses redemptions ever succeed.
func (s *InvitationService) Redeem(ctx context.Context, code string) (*JoinResult, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	code = normalizeCode(code)
	if code == "" {
		return nil, apperr.ErrInvitationNotFound
	}

	var res *JoinResult
	err = s.st.Atomic(ctx, func(tx *store.Store) error {
		inv, err := tx.Invitations.SelectOne(ctx, store.Where("code = ?", code))
		if err != nil {
			return notFound(err, apperr.ErrInvitationNotFound, "load invitation")
		}
		if inv.Status != models.InvitationActive {
			return apperr.ErrInvitationDisabled
		}
		if inv.ExpiresAt != nil && s.opts.Now().After(*inv.ExpiresAt) {
			return apperr.ErrInvitationExpired
		}
		if inv.MaxUses > 0 && inv.UsedCount >= inv.MaxUses {
			return apperr.ErrInvitationMaxUsesReached
		}

		existing, err := tx.Members.SelectOne(ctx, store.Where("ledger_id = ? AND user_id = ?", inv.LedgerID, id.UserID))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Status == models.MemberActive {
			return apperr.ErrAlreadyMember
		}

		ok, err := tx.ConsumeInvitation(ctx, inv.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrInvitationMaxUsesReached
		}

		l, err := tx.Ledgers.SelectOne(ctx, store.Where("id = ? AND status = ?", inv.LedgerID, models.LedgerActive))
		if err != nil {
			return notFound(err, apperr.ErrLedgerNotFound, "load ledger")
		}

		now := s.opts.Now().UTC()
		inviter := inv.CreatedBy
		if existing != nil {
			err = tx.Members.Update(ctx, existing.ID, map[string]any{
				"role":       inv.Role,
				"status":     models.MemberActive,
				"joined_at":  now,
				"invited_by": inviter,
			})
		} else {
			err = tx.Members.Insert(ctx, &models.LedgerMember{
				LedgerID:  inv.LedgerID,
				UserID:    id.UserID,
				Role:      inv.Role,
				JoinedAt:  now,
				InvitedBy: &inviter,
				Status:    models.MemberActive,
			})
		}
		if err != nil {
			return err
		}
		res = &JoinResult{LedgerID: l.ID, LedgerName: l.Name, Role: string(inv.Role)}
		return nil
	})
	metrics.InvitationRedemptions.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.log.Info("member joined", zap.Uint("ledger_id", res.LedgerID), zap.Uint("user_id", id.UserID), zap.String("role", res.Role))
	return res, nil
}
