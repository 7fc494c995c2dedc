package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Money columns are stored as exact decimal text; arithmetic happens in Go.

// Account holds a balance that only the transaction engine mutates.
// Version backs compare-and-swap balance updates.
type Account struct {
	ID             uint            `gorm:"primaryKey"`
	UserID         uint            `gorm:"index;not null"`
	LedgerID       uint            `gorm:"index;not null"`
	Name           string          `gorm:"size:64;not null"`
	Type           string          `gorm:"size:32;not null"`
	SubType        string          `gorm:"size:32"`
	Currency       string          `gorm:"size:8;not null"`
	Balance        decimal.Decimal `gorm:"type:varchar(32);not null"`
	IncludeInTotal bool            `gorm:"not null"`
	Status         AccountStatus   `gorm:"index;not null"`
	Version        int64           `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transaction is immutable once active apart from Status (and Version, which
// is bumped to serialize refunds against it). RefundOfID is set only for
// refunds and points at the refunded transaction.
type Transaction struct {
	ID         uint            `gorm:"primaryKey"`
	UserID     uint            `gorm:"index;not null"`
	LedgerID   uint            `gorm:"index;not null"`
	AccountID  *uint           `gorm:"index"`
	CategoryID *uint           `gorm:"index"`
	BudgetID   *uint           `gorm:"index"`
	RefundOfID *uint           `gorm:"index"`
	Type       TxType          `gorm:"size:16;index;not null"`
	Amount     decimal.Decimal `gorm:"type:varchar(32);not null"`
	Currency   string          `gorm:"size:8;not null"`
	OccurredAt time.Time       `gorm:"index;not null"`
	Note       string          `gorm:"size:255"`
	Status     TxStatus        `gorm:"index;not null"`
	Version    int64           `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Budget caches Spent; it is recomputed from transactions, never edited by hand.
// StartDate/EndDate are calendar days (UTC midnight), both inclusive.
type Budget struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"index;not null"`
	LedgerID  uint            `gorm:"index;not null"`
	Name      string          `gorm:"size:64;not null"`
	Amount    decimal.Decimal `gorm:"type:varchar(32);not null"`
	Spent     decimal.Decimal `gorm:"type:varchar(32);not null"`
	StartDate time.Time       `gorm:"not null"`
	EndDate   time.Time       `gorm:"not null"`
	Status    BudgetStatus    `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
