package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/yeremiapane/gaming-portal/database"
	"github.com/yeremiapane/gaming-portal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory SQLite database with the schema
// migrated. A single connection keeps SQLite from reporting table locks when
// tests drive it from several goroutines.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})
	return db
}

// SeedUser inserts an account and returns it.
func SeedUser(t *testing.T, db *gorm.DB, name, role string, active bool) models.User {
	t.Helper()

	u := models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@example.com", strings.ToLower(name), uuid.NewString()[:8]),
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seeding user %s: %v", name, err)
	}
	if !active {
		// IsActive has a DB default of true, so false must be written explicitly
		if err := db.Model(&u).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivating user %s: %v", name, err)
		}
		u.IsActive = false
	}
	return u
}
