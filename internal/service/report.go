package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

type ReportSummary struct {
	Start            string `json:"start"`
	End              string `json:"end"`
	TotalIncome      string `json:"total_income"`
	TotalExpense     string `json:"total_expense"`
	NetAmount        string `json:"net_amount"`
	TransactionCount int    `json:"transaction_count"`
	AccountCount     int64  `json:"account_count"`
}

type CategoryReport struct {
	CategoryID *uint  `json:"category_id"`
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Count      int    `json:"count"`
	Percent    string `json:"percent"`
}

type DayTotals struct {
	Date    string `json:"date"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
}

type MonthlyReport struct {
	Year         int              `json:"year"`
	Month        int              `json:"month"`
	TotalIncome  string           `json:"total_income"`
	TotalExpense string           `json:"total_expense"`
	NetAmount    string           `json:"net_amount"`
	Days         []DayTotals      `json:"days"`
	Expenses     []CategoryReport `json:"expenses_by_category"`
	Incomes      []CategoryReport `json:"incomes_by_category"`
}

// ReportService aggregates the current ledger's active transactions.
// Refunds count against the totals of their original's type.
type ReportService struct {
	st    *store.Store
	authz *Authority
}

func NewReportService(st *store.Store, authz *Authority) *ReportService {
	return &ReportService{st: st, authz: authz}
}

// entry is one transaction reduced to the type it counts as and a signed amount.
type entry struct {
	tx     *models.Transaction
	kind   models.TxType
	amount decimal.Decimal
}

func (s *ReportService) entries(ctx context.Context, ledgerID uint, start, end time.Time) ([]entry, error) {
	list, err := s.st.Transactions.SelectList(ctx,
		store.Where("ledger_id = ? AND status = ? AND occurred_at BETWEEN ? AND ?",
			ledgerID, models.TxActive, startOfDay(start), endOfDay(end)),
		store.OrderBy("occurred_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	var ids []uint
	for _, t := range list {
		if t.RefundOfID != nil {
			ids = append(ids, *t.RefundOfID)
		}
	}
	originals := map[uint]models.TxType{}
	if len(ids) > 0 {
		orig, err := s.st.Transactions.SelectList(ctx, store.Where("id IN ?", ids))
		if err != nil {
			return nil, err
		}
		for _, o := range orig {
			originals[o.ID] = o.Type
		}
	}
	out := make([]entry, 0, len(list))
	for i := range list {
		t := &list[i]
		e := entry{tx: t, kind: t.Type, amount: t.Amount}
		if t.Type == models.TxRefund && t.RefundOfID != nil {
			e.kind = originals[*t.RefundOfID]
			e.amount = t.Amount.Neg()
		}
		out = append(out, e)
	}
	return out, nil
}

func totals(entries []entry) (income, expense decimal.Decimal) {
	for _, e := range entries {
		switch e.kind {
		case models.TxIncome:
			income = income.Add(e.amount)
		case models.TxExpense:
			expense = expense.Add(e.amount)
		}
	}
	return income, expense
}

func checkRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start and end dates are required")
	}
	if end.Before(start) {
		return apperr.Validation("end date must not be before start date")
	}
	return nil
}

func (s *ReportService) Summary(ctx context.Context, start, end time.Time) (*ReportSummary, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	entries, err := s.entries(ctx, id.LedgerID, start, end)
	if err != nil {
		return nil, err
	}
	accounts, err := s.st.Accounts.SelectCount(ctx, store.Where("ledger_id = ? AND status = ?", id.LedgerID, models.AccountActive))
	if err != nil {
		return nil, err
	}
	income, expense := totals(entries)
	return &ReportSummary{
		Start:            startOfDay(start).Format(dateLayout),
		End:              startOfDay(end).Format(dateLayout),
		TotalIncome:      income.StringFixed(2),
		TotalExpense:     expense.StringFixed(2),
		NetAmount:        income.Sub(expense).StringFixed(2),
		TransactionCount: len(entries),
		AccountCount:     accounts,
	}, nil
}

// ByCategory breaks the income or expense total of a period down by category.
func (s *ReportService) ByCategory(ctx context.Context, start, end time.Time, kind models.TxType) ([]CategoryReport, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if kind != models.TxIncome && kind != models.TxExpense {
		return nil, apperr.Validation("report type must be income or expense")
	}
	entries, err := s.entries(ctx, id.LedgerID, start, end)
	if err != nil {
		return nil, err
	}
	return s.byCategory(ctx, id.LedgerID, entries, kind)
}

func (s *ReportService) byCategory(ctx context.Context, ledgerID uint, entries []entry, kind models.TxType) ([]CategoryReport, error) {
	cats, err := s.st.Categories.SelectList(ctx, store.Where("ledger_id = ?", ledgerID))
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	type bucket struct {
		id     *uint
		amount decimal.Decimal
		count  int
	}
	buckets := map[uint]*bucket{}
	total := decimal.Zero
	for _, e := range entries {
		if e.kind != kind {
			continue
		}
		var key uint
		if e.tx.CategoryID != nil {
			key = *e.tx.CategoryID
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{id: e.tx.CategoryID}
			buckets[key] = b
		}
		b.amount = b.amount.Add(e.amount)
		b.count++
		total = total.Add(e.amount)
	}

	out := make([]CategoryReport, 0, len(buckets))
	for key, b := range buckets {
		name := names[key]
		if b.id == nil {
			name = "uncategorized"
		}
		pct := decimal.Zero
		if total.IsPositive() {
			pct = b.amount.Div(total).Mul(decimal.NewFromInt(100))
		}
		out = append(out, CategoryReport{
			CategoryID: b.id, Name: name, Amount: b.amount.StringFixed(2),
			Count: b.count, Percent: pct.StringFixed(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := decimal.RequireFromString(out[i].Amount), decimal.RequireFromString(out[j].Amount)
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Monthly returns per-day and per-category statistics for one calendar month.
func (s *ReportService) Monthly(ctx context.Context, year, month int) (*MonthlyReport, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		return nil, apperr.Validation("invalid year or month")
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	entries, err := s.entries(ctx, id.LedgerID, start, end)
	if err != nil {
		return nil, err
	}

	days := make([]DayTotals, 0, end.Day())
	byDay := make(map[string][2]decimal.Decimal)
	for _, e := range entries {
		key := e.tx.OccurredAt.UTC().Format(dateLayout)
		d := byDay[key]
		switch e.kind {
		case models.TxIncome:
			d[0] = d[0].Add(e.amount)
		case models.TxExpense:
			d[1] = d[1].Add(e.amount)
		}
		byDay[key] = d
	}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		d := byDay[key]
		days = append(days, DayTotals{Date: key, Income: d[0].StringFixed(2), Expense: d[1].StringFixed(2)})
	}

	expenses, err := s.byCategory(ctx, id.LedgerID, entries, models.TxExpense)
	if err != nil {
		return nil, err
	}
	incomes, err := s.byCategory(ctx, id.LedgerID, entries, models.TxIncome)
	if err != nil {
		return nil, err
	}
	income, expense := totals(entries)
	return &MonthlyReport{
		Year:         year,
		Month:        month,
		TotalIncome:  income.StringFixed(2),
		TotalExpense: expense.StringFixed(2),
		NetAmount:    income.Sub(expense).StringFixed(2),
		Days:         days,
		Expenses:     expenses,
		Incomes:      incomes,
	}, nil
}

// liabilityTypes are account types whose balance is owed rather than held.
var liabilityTypes = map[string]bool{"credit": true, "debt": true}

type BalanceSheetItem struct {
	AccountID uint   `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SubType   string `json:"sub_type"`
	Balance   string `json:"balance"`
}

// CurrencyBalanceSheet holds the totals of one currency; amounts in
// different currencies are never added together.
type CurrencyBalanceSheet struct {
	Currency         string             `json:"currency"`
	TotalAssets      string             `json:"total_assets"`
	TotalLiabilities string             `json:"total_liabilities"`
	NetAssets        string             `json:"net_assets"`
	Assets           []BalanceSheetItem `json:"assets"`
	Liabilities      []BalanceSheetItem `json:"liabilities"`
}

type BalanceSheet struct {
	Currencies []CurrencyBalanceSheet `json:"currencies"`
}

// BalanceSheet splits the ledger's active accounts counted in totals into
// assets and liabilities (credit, debt). Balances are taken as magnitudes,
// so a credit card at -200 is a liability of 200.
func (s *ReportService) BalanceSheet(ctx context.Context) (*BalanceSheet, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	accounts, err := s.st.Accounts.SelectList(ctx,
		store.Where("ledger_id = ? AND status = ?", id.LedgerID, models.AccountActive),
		store.OrderBy("currency ASC, id ASC"))
	if err != nil {
		return nil, err
	}

	type sums struct {
		sheet       CurrencyBalanceSheet
		assets      decimal.Decimal
		liabilities decimal.Decimal
	}
	var order []string
	byCurrency := map[string]*sums{}
	for _, a := range accounts {
		if !a.IncludeInTotal {
			continue
		}
		cur, ok := byCurrency[a.Currency]
		if !ok {
			cur = &sums{sheet: CurrencyBalanceSheet{
				Currency: a.Currency, Assets: []BalanceSheetItem{}, Liabilities: []BalanceSheetItem{},
			}}
			byCurrency[a.Currency] = cur
			order = append(order, a.Currency)
		}
		balance := a.Balance.Abs()
		item := BalanceSheetItem{AccountID: a.ID, Name: a.Name, Type: a.Type, SubType: a.SubType, Balance: balance.StringFixed(2)}
		if liabilityTypes[a.Type] {
			cur.liabilities = cur.liabilities.Add(balance)
			cur.sheet.Liabilities = append(cur.sheet.Liabilities, item)
		} else {
			cur.assets = cur.assets.Add(balance)
			cur.sheet.Assets = append(cur.sheet.Assets, item)
		}
	}

	out := &BalanceSheet{Currencies: make([]CurrencyBalanceSheet, 0, len(order))}
	for _, c := range order {
		cur := byCurrency[c]
		cur.sheet.TotalAssets = cur.assets.StringFixed(2)
		cur.sheet.TotalLiabilities = cur.liabilities.StringFixed(2)
		cur.sheet.NetAssets = cur.assets.Sub(cur.liabilities).StringFixed(2)
		out.Currencies = append(out.Currencies, cur.sheet)
	}
	return out, nil
}

type TrendPeriod string

const (
	TrendDaily   TrendPeriod = "daily"
	TrendWeekly  TrendPeriod = "weekly"
	TrendMonthly TrendPeriod = "monthly"
	TrendYearly  TrendPeriod = "yearly"
)

// key names the bucket t falls in; weeks are ISO weeks.
func (p TrendPeriod) key(t time.Time) (string, bool) {
	t = t.UTC()
	switch p {
	case TrendDaily:
		return t.Format(dateLayout), true
	case TrendWeekly:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w), true
	case TrendMonthly:
		return t.Format("2006-01"), true
	case TrendYearly:
		return t.Format("2006"), true
	}
	return "", false
}

type TrendPoint struct {
	Period                 string `json:"period"`
	Income                 string `json:"income"`
	Expense                string `json:"expense"`
	NetIncome              string `json:"net_income"`
	TransactionCount       int    `json:"transaction_count"`
	IncomeChangePercent    string `json:"income_change_percent"`
	ExpenseChangePercent   string `json:"expense_change_percent"`
	NetIncomeChangePercent string `json:"net_income_change_percent"`
}

// Trend buckets the period's transactions by day, ISO week, month or year.
// Only buckets holding transactions are returned, oldest first, each with
// its change against the previous bucket.
func (s *ReportService) Trend(ctx context.Context, start, end time.Time, period TrendPeriod) ([]TrendPoint, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if _, ok := period.key(start); !ok {
		return nil, apperr.Validation("period must be daily, weekly, monthly or yearly")
	}
	entries, err := s.entries(ctx, id.LedgerID, start, end)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		key     string
		entries []entry
	}
	var buckets []*bucket
	for _, e := range entries {
		k, _ := period.key(e.tx.OccurredAt)
		if n := len(buckets); n == 0 || buckets[n-1].key != k {
			buckets = append(buckets, &bucket{key: k})
		}
		last := buckets[len(buckets)-1]
		last.entries = append(last.entries, e)
	}

	out := make([]TrendPoint, 0, len(buckets))
	var prevIncome, prevExpense, prevNet decimal.Decimal
	for i, b := range buckets {
		income, expense := totals(b.entries)
		net := income.Sub(expense)
		p := TrendPoint{
			Period:                 b.key,
			Income:                 income.StringFixed(2),
			Expense:                expense.StringFixed(2),
			NetIncome:              net.StringFixed(2),
			TransactionCount:       len(b.entries),
			IncomeChangePercent:    "0.00",
			ExpenseChangePercent:   "0.00",
			NetIncomeChangePercent: "0.00",
		}
		if i > 0 {
			p.IncomeChangePercent = changePercent(income, prevIncome)
			p.ExpenseChangePercent = changePercent(expense, prevExpense)
			p.NetIncomeChangePercent = changePercent(net, prevNet)
		}
		prevIncome, prevExpense, prevNet = income, expense, net
		out = append(out, p)
	}
	return out, nil
}

// changePercent is (cur-prev)/|prev| in percent; from zero it is 0 or 100.
func changePercent(cur, prev decimal.Decimal) string {
	if prev.IsZero() {
		if cur.IsZero() {
			return "0.00"
		}
		return "100.00"
	}
	return cur.Sub(prev).Mul(decimal.NewFromInt(100)).Div(prev.Abs()).StringFixed(2)
}
