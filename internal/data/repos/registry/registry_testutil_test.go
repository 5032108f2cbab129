package registry

import (
	"errors"
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/gqlregistry/registry-core/internal/data/db"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// These tests run against a real Postgres instance rather than sqlite: every
// domain struct here (Target, SchemaVersion, SchemaCheck, ...) carries
// `default:uuid_generate_v4()` on its primary key, and clause.Locking is
// used by LockForUpdate, neither of which sqlite's dialect supports. See
// DESIGN.md.
var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	testDBOnce sync.Once
	testDB     *gorm.DB
	testDBErr  error

	testLogOnce sync.Once
	testLog     *logger.Logger
	testLogErr  error
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	testLogOnce.Do(func() {
		testLog, testLogErr = logger.New("test")
	})
	if testLogErr != nil {
		tb.Fatalf("failed to init test logger: %v", testLogErr)
	}
	return testLog
}

func testDatabase(tb testing.TB) *gorm.DB {
	tb.Helper()

	testDBOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			testDBErr = errMissingDSN
			return
		}

		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			testDBErr = err
			return
		}
		if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			testDBErr = err
			return
		}
		if err := db.AutoMigrateAll(gdb); err != nil {
			testDBErr = err
			return
		}
		if err := db.EnsureRegistryIndexes(gdb); err != nil {
			testDBErr = err
			return
		}
		testDB = gdb
	})

	if errors.Is(testDBErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run registry repo tests")
	}
	if testDBErr != nil {
		tb.Fatalf("failed to init test db: %v", testDBErr)
	}
	return testDB
}

func testTx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
