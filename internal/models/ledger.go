package models

import "time"

// Ledger is an isolated scope of accounts, transactions and budgets shared by its members.
type Ledger struct {
	ID          uint         `gorm:"primaryKey"`
	Name        string       `gorm:"size:64;not null"`
	Description string       `gorm:"size:255"`
	OwnerID     uint         `gorm:"index;not null"`
	IsDefault   bool         `gorm:"index;not null"`
	Currency    string       `gorm:"size:8;not null"`
	Status      LedgerStatus `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LedgerMember links a user to a ledger with a role. One row per (ledger, user);
// leaving flips Status, re-joining reactivates the row.
type LedgerMember struct {
	ID        uint         `gorm:"primaryKey"`
	LedgerID  uint         `gorm:"uniqueIndex:idx_member_ledger_user;not null"`
	UserID    uint         `gorm:"uniqueIndex:idx_member_ledger_user;index;not null"`
	Role      Role         `gorm:"size:16;not null"`
	JoinedAt  time.Time    `gorm:"not null"`
	InvitedBy *uint
	Status    MemberStatus `gorm:"index;not null"`
	UpdatedAt time.Time
}

// Invitation grants a role on a ledger to whoever redeems Code, bounded by
// MaxUses (0 = unlimited) and ExpiresAt.
type Invitation struct {
	ID        uint             `gorm:"primaryKey"`
	LedgerID  uint             `gorm:"index;not null"`
	Code      string           `gorm:"size:16;uniqueIndex;not null"`
	Role      Role             `gorm:"size:16;not null"`
	MaxUses   int              `gorm:"not null"`
	UsedCount int              `gorm:"not null"`
	ExpiresAt *time.Time
	CreatedBy uint             `gorm:"not null"`
	Status    InvitationStatus `gorm:"index;not null"`
	CreatedAt time.Time
}
