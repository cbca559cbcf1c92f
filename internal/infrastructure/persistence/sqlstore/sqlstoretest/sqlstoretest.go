// Package sqlstoretest opens migrated SQLite databases for tests.
package sqlstoretest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
	"github.com/esunday5/staff-portal/pkg/database"
)

// MigrationsDir returns the repository's migrations root
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "..", "migrations")
}

// Open creates a fresh SQLite file under t.TempDir and applies every migration
func Open(t testing.TB) (*sqlstore.DB, *database.DB) {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Driver: string(database.DialectSQLite),
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.NewMigrator(db, logger).RunMigrations(context.Background(), MigrationsDir()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	return sqlstore.NewDB(db, logger), db
}
