package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFailureReturnsNilInterface(t *testing.T) {
	dir, err := os.MkdirTemp("", "store-open-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	// A regular file where the database directory should go makes the
	// backend constructor fail.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("failed to create blocker file: %v", err)
	}

	st, err := Open(DBConfig{Driver: "sqlite", Path: filepath.Join(blocker, "test.db")})
	if err == nil {
		t.Fatal("expected an error opening the store")
	}
	// The interface must be nil so callers can gate on it; a typed-nil
	// backend pointer would slip past a nil check.
	if st != nil {
		t.Fatalf("expected a nil Store interface on failure, got %#v", st)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	st, err := Open(DBConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
	if st != nil {
		t.Fatalf("expected a nil Store interface, got %#v", st)
	}
}

func TestOpenReopensExistingDatabase(t *testing.T) {
	dir, err := os.MkdirTemp("", "store-open-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "test.db")

	st, err := Open(DBConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if _, err := st.CreateUser(context.Background(), "a@x.com", "hash"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := st.IncrementCredits(context.Background(), "a@x.com", 3); err != nil {
		t.Fatalf("failed to add credits: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	// Reopening runs the migration against the existing schema.
	st, err = Open(DBConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer st.Close()

	credits, err := st.GetCredits(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("failed to fetch credits: %v", err)
	}
	if credits != 3 {
		t.Fatalf("expected 3 credits after reopen, got %d", credits)
	}
}
