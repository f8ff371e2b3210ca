package repository_test

import (
	"os"
	"testing"

	"github.com/mohammadpnp/bulk-import/internal/infrastructure/db"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	if err := db.Migrate(sqlDB); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	if err := gdb.Exec("DELETE FROM import_jobs").Error; err != nil {
		t.Fatalf("failed to cleanup import_jobs: %v", err)
	}

	return gdb, dsn
}
