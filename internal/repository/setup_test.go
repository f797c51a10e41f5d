package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(sqlite.Open(":memory:"), logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// every pooled connection would get its own empty :memory: database
	sqlDB, err := db.DB.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	t.Cleanup(func() { _ = db.Close(context.Background()) })
	return db
}

// createTestUser creates a user with the given role.
func createTestUser(t *testing.T, db *DB, username string, role models.Role) *models.User {
	t.Helper()

	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		DisplayName:  username,
		Role:         role,
		PasswordHash: "hash",
	}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// createTestQuest creates a quest owned by creatorID.
func createTestQuest(t *testing.T, db *DB, creatorID, title string, status models.QuestStatus) *models.Quest {
	t.Helper()

	quest := &models.Quest{
		Title:      title,
		Difficulty: models.DifficultyMedium,
		RewardGold: 50,
		Status:     status,
		CreatedBy:  creatorID,
		Tags:       []string{"escort"},
	}
	if err := NewQuestRepository(db).Create(context.Background(), quest); err != nil {
		t.Fatalf("Failed to create test quest: %v", err)
	}
	// distinct created_at for ordering assertions
	time.Sleep(2 * time.Millisecond)
	return quest
}
