package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

// Recalculator recomputes a budget's cached spent total and status.
type Recalculator struct {
	Now func() time.Time
}

// Recalculate sums the active budget-affecting transactions linked to the
// budget inside [start, endOfDay(end)], stores the sum as spent and derives
// the status. Refunds count only against expenses inside the same window. Soft-deleted budgets are still recomputed. st may be bound to
// an open unit of work.
func (r Recalculator) Recalculate(ctx context.Context, st *store.Store, budgetID uint) (*models.Budget, error) {
	b, err := st.Budgets.SelectByIDUnscoped(ctx, budgetID)
	if err != nil {
		return nil, notFound(err, apperr.ErrBudgetNotFound, "load budget")
	}

	from, to := startOfDay(b.StartDate), endOfDay(b.EndDate)
	window := store.Where("budget_id = ? AND status = ? AND occurred_at BETWEEN ? AND ?",
		b.ID, models.TxActive, from, to)
	expenses, err := st.Transactions.SumAmount(ctx, window, store.Where("type = ?", models.TxExpense))
	if err != nil {
		return nil, err
	}
	// a refund only offsets an expense that was itself counted above
	refunds, err := st.Transactions.SumAmount(ctx, window, store.Where("type = ?", models.TxRefund),
		store.Where("refund_of_id IN (SELECT id FROM transactions WHERE budget_id = ? AND type = ? AND status = ? AND occurred_at BETWEEN ? AND ?)",
			b.ID, models.TxExpense, models.TxActive, from, to))
	if err != nil {
		return nil, err
	}

	b.Spent = expenses.Sub(refunds)
	b.Status = budgetStatus(b, r.now())
	if _, err := st.Budgets.UpdateWhere(ctx, map[string]any{
		"spent":  b.Spent,
		"status": b.Status,
	}, store.Unscoped(), store.Where("id = ?", b.ID)); err != nil {
		return nil, fmt.Errorf("store budget %d: %w", b.ID, err)
	}
	return b, nil
}

func (r Recalculator) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func budgetStatus(b *models.Budget, now time.Time) models.BudgetStatus {
	if b.Status == models.BudgetCanceled {
		return models.BudgetCanceled
	}
	over := b.Spent.GreaterThan(b.Amount)
	if startOfDay(now).After(startOfDay(b.EndDate)) {
		if over {
			return models.BudgetOverBudget
		}
		return models.BudgetCompleted
	}
	if over {
		return models.BudgetOverBudget
	}
	return models.BudgetActive
}

type BudgetInput struct {
	Name      string
	Amount    decimal.Decimal
	StartDate time.Time
	EndDate   time.Time
}

type BudgetView struct {
	ID        uint   `json:"id"`
	LedgerID  uint   `json:"ledger_id"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	Spent     string `json:"spent"`
	Remaining string `json:"remaining"`
	Progress  string `json:"progress"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

func toBudgetView(b *models.Budget) BudgetView {
	progress := decimal.Zero
	if b.Amount.IsPositive() {
		progress = b.Spent.Div(b.Amount).Mul(decimal.NewFromInt(100))
	}
	return BudgetView{
		ID:        b.ID,
		LedgerID:  b.LedgerID,
		Name:      b.Name,
		Amount:    b.Amount.StringFixed(2),
		Spent:     b.Spent.StringFixed(2),
		Remaining: b.Amount.Sub(b.Spent).StringFixed(2),
		Progress:  progress.StringFixed(2),
		StartDate: b.StartDate.Format(dateLayout),
		EndDate:   b.EndDate.Format(dateLayout),
		Status:    b.Status.String(),
	}
}

type BudgetService struct {
	st     *store.Store
	authz  *Authority
	recalc Recalculator
	opts   Options
	log    *zap.Logger
}

func NewBudgetService(st *store.Store, authz *Authority, opts Options) *BudgetService {
	opts = opts.withDefaults()
	return &BudgetService{
		st:     st,
		authz:  authz,
		recalc: Recalculator{Now: opts.Now},
		opts:   opts,
		log:    opts.Log.Named("budget"),
	}
}

func (in *BudgetInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || len(in.Name) > 64 {
		return apperr.Validation("budget name must be 1-64 characters")
	}
	if !in.Amount.IsPositive() {
		return apperr.Validation("budget amount must be positive")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return apperr.Validation("budget start and end dates are required")
	}
	in.StartDate = startOfDay(in.StartDate)
	in.EndDate = startOfDay(in.EndDate)
	if in.EndDate.Before(in.StartDate) {
		return apperr.Validation("budget end date must not be before its start date")
	}
	return nil
}

func (s *BudgetService) Create(ctx context.Context, in BudgetInput) (*BudgetView, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	b := &models.Budget{
		UserID:    id.UserID,
		LedgerID:  id.LedgerID,
		Name:      in.Name,
		Amount:    in.Amount,
		Spent:     decimal.Zero,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    models.BudgetActive,
	}
	err = s.st.Atomic(ctx, func(tx *store.Store) error {
		if err := tx.Budgets.Insert(ctx, b); err != nil {
			return err
		}
		b, err = s.recalc.Recalculate(ctx, tx, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("budget created", zap.Uint("budget_id", b.ID), zap.Uint("ledger_id", b.LedgerID))
	v := toBudgetView(b)
	return &v, nil
}

// load returns a live budget of the caller's current ledger.
func (s *BudgetService) load(ctx context.Context, st *store.Store, ledgerID, budgetID uint) (*models.Budget, error) {
	b, err := st.Budgets.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", budgetID, ledgerID))
	if err != nil {
		return nil, notFound(err, apperr.ErrBudgetNotFound, "load budget")
	}
	return b, nil
}

// Update changes the descriptive fields and window, then recomputes spent.
func (s *BudgetService) Update(ctx context.Context, budgetID uint, in BudgetInput) (*BudgetView, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var b *models.Budget
	err = s.st.Atomic(ctx, func(tx *store.Store) error {
		cur, err := s.load(ctx, tx, id.LedgerID, budgetID)
		if err != nil {
			return err
		}
		if cur.Status == models.BudgetCanceled {
			return apperr.ErrBudgetCanceled
		}
		if err := tx.Budgets.Update(ctx, budgetID, map[string]any{
			"name":       in.Name,
			"amount":     in.Amount,
			"start_date": in.StartDate,
			"end_date":   in.EndDate,
		}); err != nil {
			return err
		}
		b, err = s.recalc.Recalculate(ctx, tx, budgetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	v := toBudgetView(b)
	return &v, nil
}

// Cancel moves the budget to canceled; a canceled budget stays canceled.
func (s *BudgetService) Cancel(ctx context.Context, budgetID uint) error {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, s.st, id.LedgerID, budgetID); err != nil {
		return err
	}
	if err := s.st.Budgets.Update(ctx, budgetID, map[string]any{"status": models.BudgetCanceled}); err != nil {
		return fmt.Errorf("cancel budget %d: %w", budgetID, err)
	}
	s.log.Info("budget canceled", zap.Uint("budget_id", budgetID))
	return nil
}

// Delete soft-deletes the budget. Linked transactions keep their reference.
func (s *BudgetService) Delete(ctx context.Context, budgetID uint) error {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, s.st, id.LedgerID, budgetID); err != nil {
		return err
	}
	if err := s.st.Budgets.Delete(ctx, budgetID); err != nil {
		return notFound(err, apperr.ErrBudgetNotFound, "delete budget")
	}
	return nil
}

func (s *BudgetService) Get(ctx context.Context, budgetID uint) (*BudgetView, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	b, err := s.load(ctx, s.st, id.LedgerID, budgetID)
	if err != nil {
		return nil, err
	}
	v := toBudgetView(b)
	return &v, nil
}

// List returns the current ledger's budgets, optionally only those in status.
func (s *BudgetService) List(ctx context.Context, status *models.BudgetStatus) ([]BudgetView, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	scopes := []store.Scope{store.Where("ledger_id = ?", id.LedgerID), store.OrderBy("start_date DESC, id DESC")}
	if status != nil {
		scopes = append(scopes, store.Where("status = ?", *status))
	}
	list, err := s.st.Budgets.SelectList(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	out := make([]BudgetView, 0, len(list))
	for i := range list {
		out = append(out, toBudgetView(&list[i]))
	}
	return out, nil
}

// Recalculate recomputes one budget on demand.
func (s *BudgetService) Recalculate(ctx context.Context, budgetID uint) (*BudgetView, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return nil, err
	}
	var b *models.Budget
	err = s.st.Atomic(ctx, func(tx *store.Store) error {
		if _, err := s.load(ctx, tx, id.LedgerID, budgetID); err != nil {
			return err
		}
		b, err = s.recalc.Recalculate(ctx, tx, budgetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	v := toBudgetView(b)
	return &v, nil
}
