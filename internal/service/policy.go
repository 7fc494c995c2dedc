package service

import (
	"github.com/shopspring/decimal"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
)

// Delta is the face-value balance change of a transaction of type t:
// income adds, expense and refund subtract. Persisted refunds never use the
// refund branch; their effect comes from the refunded transaction, see
// ResolveDelta.
func Delta(t models.TxType, amount decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case models.TxIncome:
		return amount, nil
	case models.TxExpense, models.TxRefund:
		return amount.Neg(), nil
	}
	return decimal.Zero, apperr.ErrUnsupported.WithMessage("unsupported transaction type: " + string(t))
}

// AffectsBudget reports whether type t counts toward a budget's spent total.
func AffectsBudget(t models.TxType) bool {
	return t == models.TxExpense || t == models.TxRefund
}

// ResolveDelta is the balance change tx actually causes. A refund undoes
// part of its original, so its delta is the negated delta of the original's
// type: refunding an expense returns money, refunding an income removes it.
func ResolveDelta(tx, original *models.Transaction) (decimal.Decimal, error) {
	if tx.Type != models.TxRefund {
		return Delta(tx.Type, tx.Amount)
	}
	if original == nil {
		return Delta(tx.Type, tx.Amount)
	}
	if original.Type == models.TxRefund {
		return decimal.Zero, apperr.Validation("a refund cannot be refunded")
	}
	d, err := Delta(original.Type, tx.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Neg(), nil
}
