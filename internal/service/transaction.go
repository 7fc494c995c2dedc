package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/metrics"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

type TransactionInput struct {
	Type       models.TxType
	Amount     decimal.Decimal
	AccountID  *uint
	CategoryID *uint
	BudgetID   *uint
	// RefundOfID is required for refunds and ignored otherwise.
	RefundOfID *uint
	Currency   string
	OccurredAt time.Time
	Note       string
}

type TransactionView struct {
	ID         uint      `json:"id"`
	LedgerID   uint      `json:"ledger_id"`
	UserID     uint      `json:"user_id"`
	AccountID  *uint     `json:"account_id"`
	CategoryID *uint     `json:"category_id"`
	BudgetID   *uint     `json:"budget_id"`
	RefundOfID *uint     `json:"refund_of_id,omitempty"`
	Type       string    `json:"type"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
	Note       string    `json:"note"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toTransactionView(t *models.Transaction) TransactionView {
	return TransactionView{
		ID:         t.ID,
		LedgerID:   t.LedgerID,
		UserID:     t.UserID,
		AccountID:  t.AccountID,
		CategoryID: t.CategoryID,
		BudgetID:   t.BudgetID,
		RefundOfID: t.RefundOfID,
		Type:       string(t.Type),
		Amount:     t.Amount.StringFixed(2),
		Currency:   t.Currency,
		OccurredAt: t.OccurredAt,
		Note:       t.Note,
		Status:     t.Status.String(),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// TransactionService creates, reverses and refunds transactions, keeping
// account balances and budget totals consistent with them. Each operation
// is one unit of work: the row, the balance and the budget change together.
type TransactionService struct {
	st     *store.Store
	authz  *Authority
	recalc Recalculator
	opts   Options
	log    *zap.Logger
}

func NewTransactionService(st *store.Store, authz *Authority, opts Options) *TransactionService {
	opts = opts.withDefaults()
	return &TransactionService{
		st:     st,
		authz:  authz,
		recalc: Recalculator{Now: opts.Now},
		opts:   opts,
		log:    opts.Log.Named("transaction"),
	}
}

// validateAmount requires a positive amount with at most two decimals.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be positive")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return apperr.Validation("amount must have at most two decimal places")
	}
	return nil
}

// occurredAt defaults to now and must not fall after today.
func (s *TransactionService) occurredAt(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return s.opts.Now().UTC(), nil
	}
	t = t.UTC()
	if startOfDay(t).After(s.opts.today()) {
		return t, apperr.Validation("transaction date cannot be later than today")
	}
	return t, nil
}

// CompleteTransaction records a transaction for the caller in the current
// ledger, applies its balance delta to the account and recomputes the budget.
func (s *TransactionService) CompleteTransaction(ctx context.Context, in TransactionInput) (*TransactionView, error) {
	if in.Type == models.TxRefund {
		if in.RefundOfID == nil {
			return nil, apperr.Validation("a refund must reference the refunded transaction")
		}
		return s.CreateRefund(ctx, *in.RefundOfID, RefundInput{Amount: in.Amount, OccurredAt: in.OccurredAt, Note: in.Note})
	}
	if !in.Type.Valid() {
		return nil, apperr.ErrUnsupported.WithMessage("unsupported transaction type: " + string(in.Type))
	}
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	occurred, err := s.occurredAt(in.OccurredAt)
	if err != nil {
		return nil, err
	}
	note := strings.TrimSpace(in.Note)
	if len(note) > 255 {
		return nil, apperr.Validation("note must be at most 255 characters")
	}

	var created *models.Transaction
	err = atomicWithRetry(ctx, s.st, s.opts, func(tx *store.Store) error {
		t := &models.Transaction{
			UserID:     id.UserID,
			LedgerID:   id.LedgerID,
			Type:       in.Type,
			Amount:     in.Amount,
			Currency:   strings.ToUpper(strings.TrimSpace(in.Currency)),
			OccurredAt: occurred,
			Note:       note,
			Status:     models.TxActive,
		}
		if err := s.attachRefs(ctx, tx, id.LedgerID, in, t); err != nil {
			return err
		}
		if err := tx.Transactions.Insert(ctx, t); err != nil {
			return err
		}
		delta, err := Delta(t.Type, t.Amount)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, t, delta); err != nil {
			return err
		}
		created = t
		return nil
	})
	metrics.TransactionOps.WithLabelValues("create", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.log.Info("transaction completed",
		zap.Uint("transaction_id", created.ID),
		zap.Uint("ledger_id", created.LedgerID),
		zap.String("type", string(created.Type)),
		zap.String("amount", created.Amount.String()))
	v := toTransactionView(created)
	return &v, nil
}

// attachRefs validates the optional account, category and budget against
// the ledger and copies them onto t.
func (s *TransactionService) attachRefs(ctx context.Context, tx *store.Store, ledgerID uint, in TransactionInput, t *models.Transaction) error {
	if in.AccountID != nil {
		acc, err := tx.Accounts.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", *in.AccountID, ledgerID))
		if err != nil {
			return notFound(err, apperr.ErrAccountNotFound, "load account")
		}
		if acc.Status != models.AccountActive {
			return apperr.ErrInactiveAccount
		}
		if t.Currency == "" {
			t.Currency = acc.Currency
		}
		if t.Currency != acc.Currency {
			return apperr.Validation("currency must match the account currency " + acc.Currency)
		}
		t.AccountID = &acc.ID
	}
	if in.CategoryID != nil {
		cat, err := tx.Categories.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", *in.CategoryID, ledgerID))
		if err != nil {
			return notFound(err, apperr.ErrCategoryNotFound, "load category")
		}
		if cat.Type != t.Type {
			return apperr.Validation(fmt.Sprintf("category %q is for %s", cat.Name, cat.Type))
		}
		t.CategoryID = &cat.ID
	}
	if in.BudgetID != nil {
		if !AffectsBudget(t.Type) {
			return apperr.Validation(string(t.Type) + " cannot be assigned to a budget")
		}
		b, err := tx.Budgets.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", *in.BudgetID, ledgerID))
		if err != nil {
			return notFound(err, apperr.ErrBudgetNotFound, "load budget")
		}
		if b.Status == models.BudgetCanceled {
			return apperr.ErrBudgetCanceled
		}
		t.BudgetID = &b.ID
	}
	if t.Currency == "" {
		l, err := tx.Ledgers.SelectByID(ctx, ledgerID)
		if err != nil {
			return notFound(err, apperr.ErrLedgerNotFound, "load ledger")
		}
		t.Currency = l.Currency
	}
	return nil
}

// apply moves the account balance by delta and recomputes the linked budget.
func (s *TransactionService) apply(ctx context.Context, tx *store.Store, t *models.Transaction, delta decimal.Decimal) error {
	if t.AccountID != nil {
		if _, err := tx.AdjustBalance(ctx, *t.AccountID, delta); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.ErrAccountNotFound
			}
			return err
		}
	}
	if t.BudgetID != nil {
		if _, err := s.recalc.Recalculate(ctx, tx, *t.BudgetID); err != nil {
			return err
		}
	}
	return nil
}

// RollbackTransaction reverses one of the caller's active transactions in
// the current ledger. A missing, foreign or already rolled back transaction
// is a logged no-op and reports false.
func (s *TransactionService) RollbackTransaction(ctx context.Context, transactionID uint) (bool, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return false, err
	}
	done, err := s.rollback(ctx, id, transactionID, false)
	metrics.TransactionOps.WithLabelValues("rollback", metrics.Result(err)).Inc()
	return done, err
}

func (s *TransactionService) rollback(ctx context.Context, id reqctx.Identity, transactionID uint, refundOnly bool) (bool, error) {
	var done bool
	err := atomicWithRetry(ctx, s.st, s.opts, func(tx *store.Store) error {
		done = false
		t, err := tx.Transactions.SelectByID(ctx, transactionID)
		if errors.Is(err, store.ErrNotFound) {
			if refundOnly {
				return apperr.ErrTransactionNotFound
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("load transaction %d: %w", transactionID, err)
		}
		if refundOnly && (t.Type != models.TxRefund || t.LedgerID != id.LedgerID) {
			return apperr.ErrTransactionNotFound
		}
		if t.UserID != id.UserID || t.LedgerID != id.LedgerID || t.Status != models.TxActive {
			return nil
		}

		var original *models.Transaction
		if t.Type == models.TxRefund {
			if t.RefundOfID == nil {
				return fmt.Errorf("refund %d has no original", t.ID)
			}
			if original, err = tx.Transactions.SelectByID(ctx, *t.RefundOfID); err != nil {
				return fmt.Errorf("load original of refund %d: %w", t.ID, err)
			}
		} else {
			n, err := tx.Transactions.SelectCount(ctx, store.Where("refund_of_id = ? AND status = ?", t.ID, models.TxActive))
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.ErrTransactionHasRefunds
			}
		}

		ok, err := tx.DeactivateTransaction(ctx, t.ID, t.Version)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrStaleVersion
		}
		delta, err := ResolveDelta(t, original)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, t, delta.Neg()); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if done {
		s.log.Info("transaction rolled back", zap.Uint("transaction_id", transactionID), zap.Uint("user_id", id.UserID))
	} else {
		s.log.Warn("rollback skipped: transaction missing, foreign or inactive",
			zap.Uint("transaction_id", transactionID), zap.Uint("user_id", id.UserID))
	}
	return done, nil
}

type TransactionSummary struct {
	TotalIncome  string            `json:"total_income"`
	TotalExpense string            `json:"total_expense"`
	NetAmount    string            `json:"net_amount"`
	Recent       []TransactionView `json:"recent"`
}

const recentLimit = 10

// GetTransactionSummary classifies the caller's ten most recent active
// transactions in the current ledger. Refunds count against the total of
// their original's type.
func (s *TransactionService) GetTransactionSummary(ctx context.Context) (*TransactionSummary, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	recent, err := s.st.Transactions.SelectList(ctx,
		store.Where("user_id = ? AND ledger_id = ? AND status = ?", id.UserID, id.LedgerID, models.TxActive),
		store.OrderBy("occurred_at DESC, id DESC"),
		store.Limit(recentLimit))
	if err != nil {
		return nil, err
	}
	originals, err := s.originalsOf(ctx, recent)
	if err != nil {
		return nil, err
	}

	income, expense := decimal.Zero, decimal.Zero
	views := make([]TransactionView, 0, len(recent))
	for i := range recent {
		t := &recent[i]
		kind := t.Type
		sign := decimal.NewFromInt(1)
		if t.Type == models.TxRefund && t.RefundOfID != nil {
			if o, ok := originals[*t.RefundOfID]; ok {
				kind = o.Type
				sign = sign.Neg()
			}
		}
		switch kind {
		case models.TxIncome:
			income = income.Add(t.Amount.Mul(sign))
		case models.TxExpense:
			expense = expense.Add(t.Amount.Mul(sign))
		}
		views = append(views, toTransactionView(t))
	}
	return &TransactionSummary{
		TotalIncome:  income.StringFixed(2),
		TotalExpense: expense.StringFixed(2),
		NetAmount:    income.Sub(expense).StringFixed(2),
		Recent:       views,
	}, nil
}

func (s *TransactionService) originalsOf(ctx context.Context, list []models.Transaction) (map[uint]models.Transaction, error) {
	var ids []uint
	for _, t := range list {
		if t.RefundOfID != nil {
			ids = append(ids, *t.RefundOfID)
		}
	}
	out := make(map[uint]models.Transaction, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	originals, err := s.st.Transactions.SelectList(ctx, store.Where("id IN ?", ids))
	if err != nil {
		return nil, err
	}
	for _, o := range originals {
		out[o.ID] = o
	}
	return out, nil
}

type TransactionFilter struct {
	Type       models.TxType
	AccountID  *uint
	CategoryID *uint
	BudgetID   *uint
	Start      *time.Time
	End        *time.Time
	Page       int
	PageSize   int
}

func (f TransactionFilter) scopes(ledgerID uint) []store.Scope {
	scopes := []store.Scope{store.Where("ledger_id = ? AND status = ?", ledgerID, models.TxActive)}
	if f.Type != "" {
		scopes = append(scopes, store.Where("type = ?", f.Type))
	}
	if f.AccountID != nil {
		scopes = append(scopes, store.Where("account_id = ?", *f.AccountID))
	}
	if f.CategoryID != nil {
		scopes = append(scopes, store.Where("category_id = ?", *f.CategoryID))
	}
	if f.BudgetID != nil {
		scopes = append(scopes, store.Where("budget_id = ?", *f.BudgetID))
	}
	if f.Start != nil {
		scopes = append(scopes, store.Where("occurred_at >= ?", startOfDay(*f.Start)))
	}
	if f.End != nil {
		scopes = append(scopes, store.Where("occurred_at <= ?", endOfDay(*f.End)))
	}
	return scopes
}

// List pages through the current ledger's active transactions, newest first.
func (s *TransactionService) List(ctx context.Context, f TransactionFilter) (*Page[TransactionView], error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, apperr.ErrUnsupported.WithMessage("unsupported transaction type: " + string(f.Type))
	}
	page, size := pageBounds(f.Page, f.PageSize, s.opts.PageSize)
	scopes := f.scopes(id.LedgerID)

	total, err := s.st.Transactions.SelectCount(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	list, err := s.st.Transactions.SelectList(ctx, append(scopes,
		store.OrderBy("occurred_at DESC, id DESC"),
		store.Offset((page-1)*size),
		store.Limit(size))...)
	if err != nil {
		return nil, err
	}
	items := make([]TransactionView, 0, len(list))
	for i := range list {
		items = append(items, toTransactionView(&list[i]))
	}
	return &Page[TransactionView]{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// Export returns every active transaction of the current ledger, oldest first.
func (s *TransactionService) Export(ctx context.Context) ([]TransactionView, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	list, err := s.st.Transactions.SelectList(ctx,
		store.Where("ledger_id = ? AND status = ?", id.LedgerID, models.TxActive),
		store.OrderBy("occurred_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]TransactionView, 0, len(list))
	for i := range list {
		out = append(out, toTransactionView(&list[i]))
	}
	return out, nil
}

func (s *TransactionService) Get(ctx context.Context, transactionID uint) (*TransactionView, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	t, err := s.st.Transactions.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", transactionID, id.LedgerID))
	if err != nil {
		return nil, notFound(err, apperr.ErrTransactionNotFound, "load transaction")
	}
	v := toTransactionView(t)
	return &v, nil
}
