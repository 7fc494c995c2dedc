package database

import (
	"fmt"

	"github.com/tiammomo/mamoji-sub001/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Ledger{},
		&models.LedgerMember{},
		&models.Invitation{},
		&models.Account{},
		&models.Category{},
		&models.Budget{},
		&models.Transaction{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
