package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
)

func TestRefundOfExpense(t *testing.T) {
	f := newFixture(t)
	ctx := f.owner("alice")
	acc := f.account(ctx, "100")
	budget := f.budget(ctx, "500", day(2026, 3, 1), day(2026, 3, 31))
	food, err := f.categories.Create(ctx, "Food", models.TxExpense)
	require.NoError(t, err)

	orig, err := f.txs.CompleteTransaction(ctx, TransactionInput{
		Type: models.TxExpense, Amount: dec("100"), AccountID: &acc, CategoryID: &food.ID, BudgetID: &budget,
	})
	require.NoError(t, err)
	assert.True(t, f.balance(acc).IsZero())

	r, err := f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("30"), Note: "partial"})
	require.NoError(t, err)
	assert.Equal(t, "refund", r.Type)
	assert.Equal(t, orig.ID, *r.RefundOfID)
	assert.Equal(t, acc, *r.AccountID)
	assert.Equal(t, food.ID, *r.CategoryID)
	assert.Equal(t, budget, *r.BudgetID)

	assert.True(t, f.balance(acc).Equal(dec("30")))
	assert.True(t, f.loadBudget(budget).Spent.Equal(dec("70")))

	sum, err := f.txs.GetTransactionRefunds(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", sum.TotalRefunded)
	assert.Equal(t, "70.00", sum.Remaining)
	assert.Len(t, sum.Refunds, 1)
}

func TestRefundOfIncome(t *testing.T) {
	f := newFixture(t)
	ctx := f.owner("alice")
	acc := f.account(ctx, "0")

	orig, err := f.txs.CompleteTransaction(ctx, TransactionInput{Type: models.TxIncome, Amount: dec("100"), AccountID: &acc})
	require.NoError(t, err)
	r, err := f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("40")})
	require.NoError(t, err)
	assert.Nil(t, r.BudgetID)
	assert.True(t, f.balance(acc).Equal(dec("60")))

	ok, err := f.txs.CancelRefund(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.balance(acc).Equal(dec("100")))
}

func TestRefund_CannotExceedRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := f.owner("alice")
	acc := f.account(ctx, "0")

	orig, err := f.txs.CompleteTransaction(ctx, TransactionInput{Type: models.TxExpense, Amount: dec("50"), AccountID: &acc})
	require.NoError(t, err)

	_, err = f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("50.01")})
	assert.ErrorIs(t, err, apperr.ErrRefundExceedsRemaining)

	_, err = f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("20")})
	require.NoError(t, err)
	_, err = f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("30.01")})
	assert.ErrorIs(t, err, apperr.ErrRefundExceedsRemaining)

	// refunding exactly the remainder is fine
	_, err = f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("30")})
	require.NoError(t, err)
	assert.True(t, f.balance(acc).IsZero())

	sum, err := f.txs.GetTransactionRefunds(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", sum.Remaining)
}

func TestRollback_BlockedByActiveRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := f.owner("alice")
	acc := f.account(ctx, "100")

	orig, err := f.txs.CompleteTransaction(ctx, TransactionInput{Type: models.TxExpense, Amount: dec("60"), AccountID: &acc})
	require.NoError(t, err)
	r, err := f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("10")})
	require.NoError(t, err)

	_, err = f.txs.RollbackTransaction(ctx, orig.ID)
	assert.ErrorIs(t, err, apperr.ErrTransactionHasRefunds)
	assert.True(t, f.balance(acc).Equal(dec("50")))

	ok, err := f.txs.CancelRefund(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.txs.RollbackTransaction(ctx, orig.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.balance(acc).Equal(dec("100")))

	// refunding a rolled back transaction is not possible
	_, err = f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("1")})
	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
}

func TestCancelRefund(t *testing.T) {
	f := newFixture(t)
	ctx := f.owner("alice")
	acc := f.account(ctx, "0")

	orig, err := f.txs.CompleteTransaction(ctx, TransactionInput{Type: models.TxExpense, Amount: dec("10"), AccountID: &acc})
	require.NoError(t, err)
	r, err := f.txs.CreateRefund(ctx, orig.ID, RefundInput{Amount: dec("5")})
	require.NoError(t, err)

	// only refunds can be canceled this way
	_, err = f.txs.CancelRefund(ctx, orig.ID)
	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
	_, err = f.txs.CancelRefund(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)

	ok, err := f.txs.CancelRefund(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.txs.CancelRefund(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.balance(acc).Equal(dec("-10")))
}

func TestRefund_Rules(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	bob := f.join(alice, f.user("bob"), models.RoleEditor)

	orig, err := f.txs.CompleteTransaction(alice, TransactionInput{
		Type: models.TxExpense, Amount: dec("10"), OccurredAt: testNow.AddDate(0, 0, -3),
	})
	require.NoError(t, err)

	_, err = f.txs.CreateRefund(alice, orig.ID, RefundInput{Amount: dec("1"), OccurredAt: testNow.AddDate(0, 0, -4)})
	assert.ErrorIs(t, err, apperr.ErrValidation, "dated before the original")

	_, err = f.txs.CreateRefund(bob, orig.ID, RefundInput{Amount: dec("1")})
	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound, "someone else's transaction")

	r, err := f.txs.CompleteTransaction(alice, TransactionInput{Type: models.TxRefund, RefundOfID: &orig.ID, Amount: dec("2")})
	require.NoError(t, err)
	assert.Equal(t, "refund", r.Type)

	_, err = f.txs.CreateRefund(alice, r.ID, RefundInput{Amount: dec("1")})
	assert.ErrorIs(t, err, apperr.ErrValidation, "refund of a refund")
}
