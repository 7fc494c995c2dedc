package models

import "strings"

// TxType is the kind of a transaction. The set is closed: income, expense, refund.
type TxType string

const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
	TxRefund  TxType = "refund"
)

// Valid reports whether t is one of the known transaction types.
func (t TxType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxRefund:
		return true
	}
	return false
}

// NormalizeTxType lower-cases and trims user input; validity is checked separately.
func NormalizeTxType(s string) TxType {
	return TxType(strings.ToLower(strings.TrimSpace(s)))
}

// TxStatus is the lifecycle of a transaction row. The only transition is
// active -> deleted, and it happens once.
type TxStatus int

const (
	TxDeleted TxStatus = 0
	TxActive  TxStatus = 1
)

func (s TxStatus) String() string {
	if s == TxActive {
		return "active"
	}
	return "deleted"
}

type BudgetStatus int

const (
	BudgetCanceled   BudgetStatus = 0
	BudgetActive     BudgetStatus = 1
	BudgetCompleted  BudgetStatus = 2
	BudgetOverBudget BudgetStatus = 3
)

func (s BudgetStatus) String() string {
	switch s {
	case BudgetCanceled:
		return "canceled"
	case BudgetActive:
		return "active"
	case BudgetCompleted:
		return "completed"
	case BudgetOverBudget:
		return "over_budget"
	}
	return "unknown"
}

// Role is a ledger membership role, ordered viewer < editor < admin < owner.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Rank returns the role's position in the hierarchy; 0 for unknown roles.
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleAdmin:
		return 3
	case RoleOwner:
		return 4
	}
	return 0
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

type MemberStatus int

const (
	MemberLeft   MemberStatus = 0
	MemberActive MemberStatus = 1
)

type InvitationStatus int

const (
	InvitationDisabled InvitationStatus = 0
	InvitationActive   InvitationStatus = 1
)

type LedgerStatus int

const (
	LedgerDeleted LedgerStatus = 0
	LedgerActive  LedgerStatus = 1
)

type AccountStatus int

const (
	AccountInactive AccountStatus = 0
	AccountActive   AccountStatus = 1
)
