package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/metrics"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

type RefundInput struct {
	Amount     decimal.Decimal
	OccurredAt time.Time
	Note       string
}

type RefundSummary struct {
	Original      TransactionView   `json:"original"`
	Refunds       []TransactionView `json:"refunds"`
	TotalRefunded string            `json:"total_refunded"`
	Remaining     string            `json:"remaining"`
}

// CreateRefund records a partial or full refund of one of the caller's
// active income or expense transactions. The refund takes the original's
// account, category and (for expenses) budget, and its balance effect is the
// reverse of the original's. Refunds of one original never exceed its amount.
func (s *TransactionService) CreateRefund(ctx context.Context, originalID uint, in RefundInput) (*TransactionView, error) {
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
		orig, err := tx.Transactions.SelectOne(ctx, store.Where("id = ? AND ledger_id = ? AND user_id = ? AND status = ?",
			originalID, id.LedgerID, id.UserID, models.TxActive))
		if err != nil {
			return notFound(err, apperr.ErrTransactionNotFound, "load refunded transaction")
		}
		if orig.Type == models.TxRefund {
			return apperr.Validation("a refund cannot be refunded")
		}
		if startOfDay(occurred).Before(startOfDay(orig.OccurredAt)) {
			return apperr.Validation("a refund cannot be dated before the refunded transaction")
		}
		refunded, err := tx.Transactions.SumAmount(ctx, store.Where("refund_of_id = ? AND status = ?", orig.ID, models.TxActive))
		if err != nil {
			return err
		}
		remaining := orig.Amount.Sub(refunded)
		if in.Amount.GreaterThan(remaining) {
			return apperr.ErrRefundExceedsRemaining.WithMessage("refund exceeds the refundable amount " + remaining.StringFixed(2))
		}
		// serializes concurrent refunds (and rollback) of the same original
		if err := tx.ClaimTransaction(ctx, orig.ID, orig.Version); err != nil {
			return err
		}

		r := &models.Transaction{
			UserID:     id.UserID,
			LedgerID:   id.LedgerID,
			AccountID:  orig.AccountID,
			CategoryID: orig.CategoryID,
			RefundOfID: &orig.ID,
			Type:       models.TxRefund,
			Amount:     in.Amount,
			Currency:   orig.Currency,
			OccurredAt: occurred,
			Note:       note,
			Status:     models.TxActive,
		}
		if orig.Type == models.TxExpense {
			r.BudgetID = orig.BudgetID
		}
		if err := tx.Transactions.Insert(ctx, r); err != nil {
			return err
		}
		delta, err := ResolveDelta(r, orig)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, r, delta); err != nil {
			return err
		}
		created = r
		return nil
	})
	metrics.TransactionOps.WithLabelValues("refund", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.log.Info("refund created",
		zap.Uint("refund_id", created.ID),
		zap.Uint("original_id", originalID),
		zap.String("amount", created.Amount.String()))
	v := toTransactionView(created)
	return &v, nil
}

// CancelRefund rolls back a refund of the current ledger. It reports false
// when the refund was already canceled or belongs to someone else.
func (s *TransactionService) CancelRefund(ctx context.Context, refundID uint) (bool, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return false, err
	}
	done, err := s.rollback(ctx, id, refundID, true)
	metrics.TransactionOps.WithLabelValues("cancel_refund", metrics.Result(err)).Inc()
	return done, err
}

// GetTransactionRefunds lists every refund of a transaction, canceled ones
// included, with the active total and what can still be refunded.
func (s *TransactionService) GetTransactionRefunds(ctx context.Context, originalID uint) (*RefundSummary, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	orig, err := s.st.Transactions.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", originalID, id.LedgerID))
	if err != nil {
		return nil, notFound(err, apperr.ErrTransactionNotFound, "load transaction")
	}
	refunds, err := s.st.Transactions.SelectList(ctx,
		store.Where("refund_of_id = ?", orig.ID),
		store.OrderBy("occurred_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	views := make([]TransactionView, 0, len(refunds))
	for i := range refunds {
		if refunds[i].Status == models.TxActive {
			total = total.Add(refunds[i].Amount)
		}
		views = append(views, toTransactionView(&refunds[i]))
	}
	remaining := orig.Amount.Sub(total)
	if orig.Status != models.TxActive {
		remaining = decimal.Zero
	}
	return &RefundSummary{
		Original:      toTransactionView(orig),
		Refunds:       views,
		TotalRefunded: total.StringFixed(2),
		Remaining:     remaining.StringFixed(2),
	}, nil
}
