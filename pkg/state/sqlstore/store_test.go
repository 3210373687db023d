package sqlstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-rased/pkg/state/statetest"
)

func TestSQLiteStoreContract(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "rased.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statetest.Run(t, New(db))
}

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run postgres integration tests")
	}
	db, err := Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	statetest.Run(t, New(db))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", ""); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
