package util

import (
	"path/filepath"
	"testing"

	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/database"
	"github.com/tiammomo/mamoji-sub001/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestIntegration_UserPasswordFlow 集成测试：用户密码完整流程
func TestIntegration_UserPasswordFlow(t *testing.T) {
	db := setupTestDB(t)

	password := "SecurePassword123"
	user := createTestUser(t, db, "testuser", password)

	// 从数据库查询用户
	var dbUser models.User
	if err := db.Where("username = ?", "testuser").First(&dbUser).Error; err != nil {
		t.Fatalf("Query user failed: %v", err)
	}

	if !CheckPassword(password, dbUser.PasswordHash) {
		t.Error("CheckPassword failed: should return true for correct password")
	}
	if CheckPassword("WrongPassword", dbUser.PasswordHash) {
		t.Error("CheckPassword failed: should return false for wrong password")
	}

	t.Logf("√ User password integration test passed (UserID: %d)", user.ID)
}

// TestIntegration_PasswordChange 集成测试：密码修改流程
func TestIntegration_PasswordChange(t *testing.T) {
	db := setupTestDB(t)

	oldPassword := "OldPassword123"
	user := createTestUser(t, db, "changeuser", oldPassword)

	newPassword := "NewPassword456"
	newHash, err := HashPassword(newPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Hash new password failed: %v", err)
	}
	db.Model(&user).Update("password_hash", newHash)

	var updatedUser models.User
	db.First(&updatedUser, user.ID)

	if CheckPassword(oldPassword, updatedUser.PasswordHash) {
		t.Error("Old password should not work after change")
	}
	if !CheckPassword(newPassword, updatedUser.PasswordHash) {
		t.Error("New password should work after change")
	}
}

// TestIntegration_InviteCodeUnique 集成测试：邀请码唯一索引
func TestIntegration_InviteCodeUnique(t *testing.T) {
	db := setupTestDB(t)

	code, err := GenerateInviteCode(8)
	if err != nil {
		t.Fatalf("GenerateInviteCode failed: %v", err)
	}
	first := models.Invitation{LedgerID: 1, Code: code, Role: models.RoleEditor, CreatedBy: 1, Status: models.InvitationActive}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("Create invitation failed: %v", err)
	}
	dup := models.Invitation{LedgerID: 2, Code: code, Role: models.RoleViewer, CreatedBy: 1, Status: models.InvitationActive}
	if err := db.Create(&dup).Error; err == nil {
		t.Error("duplicate invite code should violate the unique index")
	}
}

// ==================== 辅助函数 ====================

// setupTestDB 初始化测试数据库，随测试目录一起清理
func setupTestDB(t *testing.T) *gorm.DB {
	cfg := config.DatabaseConfig{
		Path:    filepath.Join(t.TempDir(), "test_crypto_integration.db"),
		LogMode: false,
	}

	db, err := database.Init(cfg)
	if err != nil {
		t.Fatalf("Init test database failed: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// createTestUser 创建测试用户
func createTestUser(t *testing.T, db *gorm.DB, username, password string) models.User {
	hashedPwd, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: hashedPwd,
		DisplayName:  username,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	return user
}
