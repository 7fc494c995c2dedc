package service

import (
	"context"
	"fmt"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

// Action is a ledger operation gated by a minimum role.
type Action int

const (
	ActionView Action = iota
	ActionEditData
	ActionManageLedger
	ActionManageMembers
	ActionInvite
	ActionDeleteLedger
	ActionSetDefault
)

// MinRole is the lowest role allowed to perform a.
func (a Action) MinRole() models.Role {
	switch a {
	case ActionView:
		return models.RoleViewer
	case ActionEditData:
		return models.RoleEditor
	case ActionManageLedger, ActionManageMembers, ActionInvite:
		return models.RoleAdmin
	}
	return models.RoleOwner
}

// Authority resolves a caller's role on a ledger and gates actions on it.
type Authority struct {
	st *store.Store
}

func NewAuthority(st *store.Store) *Authority {
	return &Authority{st: st}
}

// Role returns userID's active role on ledgerID. A missing or deleted ledger
// is LedgerNotFound; no active membership is NoAccess.
func (a *Authority) Role(ctx context.Context, ledgerID, userID uint) (models.Role, error) {
	if _, err := a.st.Ledgers.SelectOne(ctx, store.Where("id = ? AND status = ?", ledgerID, models.LedgerActive)); err != nil {
		return "", notFound(err, apperr.ErrLedgerNotFound, "load ledger")
	}
	m, err := a.st.Members.SelectOne(ctx, store.Where("ledger_id = ? AND user_id = ? AND status = ?",
		ledgerID, userID, models.MemberActive))
	if err != nil {
		return "", notFound(err, apperr.ErrNoAccess, "load membership")
	}
	return m.Role, nil
}

// Check fails with NoPermission when userID's role on ledgerID is below
// what action needs.
func (a *Authority) Check(ctx context.Context, ledgerID, userID uint, action Action) (models.Role, error) {
	role, err := a.Role(ctx, ledgerID, userID)
	if err != nil {
		return "", err
	}
	if !role.AtLeast(action.MinRole()) {
		return role, apperr.ErrNoPermission.WithMessage(
			fmt.Sprintf("%s role required, have %s", action.MinRole(), role))
	}
	return role, nil
}

// Require checks action against the caller and ledger carried by ctx.
func (a *Authority) Require(ctx context.Context, action Action) (reqctx.Identity, error) {
	id, err := ledgerIdentity(ctx)
	if err != nil {
		return id, err
	}
	if _, err := a.Check(ctx, id.LedgerID, id.UserID, action); err != nil {
		return id, err
	}
	return id, nil
}

// RequireOn checks action on an explicitly named ledger.
func (a *Authority) RequireOn(ctx context.Context, ledgerID uint, action Action) (reqctx.Identity, models.Role, error) {
	id, err := identity(ctx)
	if err != nil {
		return id, "", err
	}
	role, err := a.Check(ctx, ledgerID, id.UserID, action)
	return id, role, err
}
