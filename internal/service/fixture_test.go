package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/store"
	"github.com/tiammomo/mamoji-sub001/internal/store/storetest"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t    *testing.T
	st   *store.Store
	opts Options

	authz      *Authority
	txs        *TransactionService
	budgets    *BudgetService
	ledgers    *LedgerService
	invites    *InvitationService
	accounts   *AccountService
	categories *CategoryService
	reports    *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New(t)
	opts := Options{Now: func() time.Time { return testNow }}
	authz := NewAuthority(st)
	invites := NewInvitationService(st, authz, "https://ledger.example.com/", opts)
	return &fixture{
		t:          t,
		st:         st,
		opts:       opts,
		authz:      authz,
		txs:        NewTransactionService(st, authz, opts),
		budgets:    NewBudgetService(st, authz, opts),
		ledgers:    NewLedgerService(st, authz, invites, "CNY", opts),
		invites:    invites,
		accounts:   NewAccountService(st, authz, "CNY", opts),
		categories: NewCategoryService(st, authz),
		reports:    NewReportService(st, authz),
	}
}

// user inserts a user and returns a context carrying them, no ledger selected.
func (f *fixture) user(name string) context.Context {
	f.t.Helper()
	u := &models.User{Username: name, PasswordHash: "x"}
	require.NoError(f.t, f.st.Users.Insert(context.Background(), u))
	return reqctx.WithIdentity(context.Background(), reqctx.Identity{UserID: u.ID, Username: name})
}

// ledger creates a ledger owned by the caller on ctx and selects it.
func (f *fixture) ledger(ctx context.Context, name string) context.Context {
	f.t.Helper()
	v, err := f.ledgers.Create(ctx, LedgerInput{Name: name})
	require.NoError(f.t, err)
	return reqctx.WithLedger(ctx, v.ID)
}

// owner is a fresh user with a fresh ledger selected.
func (f *fixture) owner(name string) context.Context {
	return f.ledger(f.user(name), name+"'s ledger")
}

// join adds the caller on ctx to the ledger selected on ownerCtx with role.
func (f *fixture) join(ownerCtx, ctx context.Context, role models.Role) context.Context {
	f.t.Helper()
	inv, err := f.invites.Create(ownerCtx, reqctx.LedgerID(ownerCtx), InvitationInput{Role: role})
	require.NoError(f.t, err)
	_, err = f.invites.Redeem(ctx, inv.Code)
	require.NoError(f.t, err)
	return reqctx.WithLedger(ctx, reqctx.LedgerID(ownerCtx))
}

func (f *fixture) account(ctx context.Context, opening string) uint {
	f.t.Helper()
	v, err := f.accounts.Create(ctx, AccountInput{Name: "wallet", Type: "cash", OpeningBalance: dec(opening)})
	require.NoError(f.t, err)
	return v.ID
}

func (f *fixture) budget(ctx context.Context, amount string, start, end time.Time) uint {
	f.t.Helper()
	v, err := f.budgets.Create(ctx, BudgetInput{Name: "monthly", Amount: dec(amount), StartDate: start, EndDate: end})
	require.NoError(f.t, err)
	return v.ID
}

func (f *fixture) balance(accountID uint) decimal.Decimal {
	f.t.Helper()
	a, err := f.st.Accounts.SelectByID(context.Background(), accountID)
	require.NoError(f.t, err)
	return a.Balance
}

func (f *fixture) loadBudget(budgetID uint) *models.Budget {
	f.t.Helper()
	b, err := f.st.Budgets.SelectByIDUnscoped(context.Background(), budgetID)
	require.NoError(f.t, err)
	return b
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
