// Package store is the data-access layer over gorm. A Store bound to a
// database transaction (see Atomic) gives every repository the same unit of work.
package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tiammomo/mamoji-sub001/internal/models"
)

type Store struct {
	db *gorm.DB

	Users        Repo[models.User]
	Ledgers      Repo[models.Ledger]
	Members      Repo[models.LedgerMember]
	Invitations  Repo[models.Invitation]
	Accounts     Repo[models.Account]
	Categories   Repo[models.Category]
	Budgets      Repo[models.Budget]
	Transactions Repo[models.Transaction]
	AuditLogs    Repo[models.AuditLog]
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Users:        Repo[models.User]{db: db},
		Ledgers:      Repo[models.Ledger]{db: db},
		Members:      Repo[models.LedgerMember]{db: db},
		Invitations:  Repo[models.Invitation]{db: db},
		Accounts:     Repo[models.Account]{db: db},
		Categories:   Repo[models.Category]{db: db},
		Budgets:      Repo[models.Budget]{db: db},
		Transactions: Repo[models.Transaction]{db: db},
		AuditLogs:    Repo[models.AuditLog]{db: db},
	}
}

// DB exposes the underlying handle for read-only reporting queries.
func (s *Store) DB() *gorm.DB { return s.db }

// Atomic runs fn in one database transaction. Everything fn does through tx
// commits together or not at all. Inside fn, use tx only; the outer Store
// would wait on the lock tx holds.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(New(db))
	})
}

// AdjustBalance adds delta to the account balance with compare-and-swap on
// the account version. ErrStaleVersion means another writer got there first.
func (s *Store) AdjustBalance(ctx context.Context, accountID uint, delta decimal.Decimal) (*models.Account, error) {
	acc, err := s.Accounts.SelectByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	next := acc.Balance.Add(delta)
	n, err := s.Accounts.UpdateWhere(ctx, map[string]any{
		"balance": next,
		"version": gorm.Expr("version + 1"),
	}, Where("id = ? AND version = ?", acc.ID, acc.Version))
	if err != nil {
		return nil, fmt.Errorf("adjust balance of account %d: %w", accountID, err)
	}
	if n == 0 {
		return nil, ErrStaleVersion
	}
	acc.Balance = next
	acc.Version++
	return acc, nil
}

// ClaimTransaction bumps a transaction's version if it is still at the given
// version and active. Refund writers use it to serialize against each other.
func (s *Store) ClaimTransaction(ctx context.Context, id uint, version int64) error {
	n, err := s.Transactions.UpdateWhere(ctx, map[string]any{
		"version": gorm.Expr("version + 1"),
	}, Where("id = ? AND version = ? AND status = ?", id, version, models.TxActive))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleVersion
	}
	return nil
}

// DeactivateTransaction flips a transaction read at version from active to
// deleted. It reports false when the row is no longer active at that
// version, so the transition happens once no matter how many callers race.
func (s *Store) DeactivateTransaction(ctx context.Context, id uint, version int64) (bool, error) {
	n, err := s.Transactions.UpdateWhere(ctx, map[string]any{
		"status":  models.TxDeleted,
		"version": gorm.Expr("version + 1"),
	}, Where("id = ? AND version = ? AND status = ?", id, version, models.TxActive))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ConsumeInvitation increments used_count only while the invitation is
// active and under its use limit, in a single statement.
func (s *Store) ConsumeInvitation(ctx context.Context, id uint) (bool, error) {
	n, err := s.Invitations.UpdateWhere(ctx, map[string]any{
		"used_count": gorm.Expr("used_count + 1"),
	}, Where("id = ? AND status = ? AND (max_uses = 0 OR used_count < max_uses)", id, models.InvitationActive))
	if err != nil {
		return false, fmt.Errorf("consume invitation %d: %w", id, err)
	}
	return n == 1, nil
}
