package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

type AccountInput struct {
	Name           string
	Type           string
	SubType        string
	Currency       string
	OpeningBalance decimal.Decimal
	IncludeInTotal *bool
}

type AccountView struct {
	ID             uint      `json:"id"`
	LedgerID       uint      `json:"ledger_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	SubType        string    `json:"sub_type"`
	Currency       string    `json:"currency"`
	Balance        string    `json:"balance"`
	IncludeInTotal bool      `json:"include_in_total"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type CurrencyTotal struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type AccountSummary struct {
	AccountCount int             `json:"account_count"`
	Totals       []CurrencyTotal `json:"totals"`
}

func toAccountView(a *models.Account) AccountView {
	return AccountView{
		ID:             a.ID,
		LedgerID:       a.LedgerID,
		Name:           a.Name,
		Type:           a.Type,
		SubType:        a.SubType,
		Currency:       a.Currency,
		Balance:        a.Balance.StringFixed(2),
		IncludeInTotal: a.IncludeInTotal,
		Active:         a.Status == models.AccountActive,
		CreatedAt:      a.CreatedAt,
	}
}

// AccountService manages accounts. Balances are never written here after
// creation; only the transaction engine moves them.
type AccountService struct {
	st              *store.Store
	authz           *Authority
	defaultCurrency string
	log             *zap.Logger
}

func NewAccountService(st *store.Store, authz *Authority, defaultCurrency string, opts Options) *AccountService {
	opts = opts.withDefaults()
	return &AccountService{st: st, authz: authz, defaultCurrency: defaultCurrency, log: opts.Log.Named("account")}
}

func (in *AccountInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.SubType = strings.ToLower(strings.TrimSpace(in.SubType))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Name == "" || len(in.Name) > 64 {
		return apperr.Validation("account name must be 1-64 characters")
	}
	if in.Type == "" || len(in.Type) > 32 || len(in.SubType) > 32 {
		return apperr.Validation("account type must be 1-32 characters")
	}
	if !in.OpeningBalance.Equal(in.OpeningBalance.Truncate(2)) {
		return apperr.Validation("opening balance must have at most two decimal places")
	}
	return nil
}

func (s *AccountService) Create(ctx context.Context, in AccountInput) (*AccountView, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.Currency == "" {
		l, err := s.st.Ledgers.SelectByID(ctx, id.LedgerID)
		if err != nil {
			return nil, notFound(err, apperr.ErrLedgerNotFound, "load ledger")
		}
		in.Currency = l.Currency
	}
	include := true
	if in.IncludeInTotal != nil {
		include = *in.IncludeInTotal
	}
	a := &models.Account{
		UserID:         id.UserID,
		LedgerID:       id.LedgerID,
		Name:           in.Name,
		Type:           in.Type,
		SubType:        in.SubType,
		Currency:       in.Currency,
		Balance:        in.OpeningBalance,
		IncludeInTotal: include,
		Status:         models.AccountActive,
	}
	if err := s.st.Accounts.Insert(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("account created", zap.Uint("account_id", a.ID), zap.Uint("ledger_id", a.LedgerID))
	v := toAccountView(a)
	return &v, nil
}

func (s *AccountService) load(ctx context.Context, ledgerID, accountID uint) (*models.Account, error) {
	a, err := s.st.Accounts.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", accountID, ledgerID))
	if err != nil {
		return nil, notFound(err, apperr.ErrAccountNotFound, "load account")
	}
	return a, nil
}

// Update changes descriptive fields only. Balance and currency are left alone.
func (s *AccountService) Update(ctx context.Context, accountID uint, in AccountInput) (*AccountView, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id.LedgerID, accountID)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{"name": in.Name, "type": in.Type, "sub_type": in.SubType}
	if in.IncludeInTotal != nil {
		fields["include_in_total"] = *in.IncludeInTotal
	}
	if err := s.st.Accounts.Update(ctx, a.ID, fields); err != nil {
		return nil, notFound(err, apperr.ErrAccountNotFound, "update account")
	}
	return s.Get(ctx, accountID)
}

// Deactivate stops new transactions against the account. Existing ones and
// their rollbacks still apply.
func (s *AccountService) Deactivate(ctx context.Context, accountID uint) error {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, id.LedgerID, accountID); err != nil {
		return err
	}
	return s.st.Accounts.Update(ctx, accountID, map[string]any{"status": models.AccountInactive})
}

func (s *AccountService) Get(ctx context.Context, accountID uint) (*AccountView, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id.LedgerID, accountID)
	if err != nil {
		return nil, err
	}
	v := toAccountView(a)
	return &v, nil
}

func (s *AccountService) List(ctx context.Context, includeInactive bool) ([]AccountView, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	scopes := []store.Scope{store.Where("ledger_id = ?", id.LedgerID), store.OrderBy("id ASC")}
	if !includeInactive {
		scopes = append(scopes, store.Where("status = ?", models.AccountActive))
	}
	list, err := s.st.Accounts.SelectList(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	out := make([]AccountView, 0, len(list))
	for i := range list {
		out = append(out, toAccountView(&list[i]))
	}
	return out, nil
}

// Summary totals the balances of active accounts flagged includeInTotal,
// per currency.
func (s *AccountService) Summary(ctx context.Context) (*AccountSummary, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	list, err := s.st.Accounts.SelectList(ctx,
		store.Where("ledger_id = ? AND status = ?", id.LedgerID, models.AccountActive))
	if err != nil {
		return nil, err
	}
	totals := make(map[string]decimal.Decimal)
	for _, a := range list {
		if !a.IncludeInTotal {
			continue
		}
		totals[a.Currency] = totals[a.Currency].Add(a.Balance)
	}
	out := &AccountSummary{AccountCount: len(list), Totals: make([]CurrencyTotal, 0, len(totals))}
	for cur, total := range totals {
		out.Totals = append(out.Totals, CurrencyTotal{Currency: cur, Total: total.StringFixed(2)})
	}
	sort.Slice(out.Totals, func(i, j int) bool { return out.Totals[i].Currency < out.Totals[j].Currency })
	return out, nil
}
