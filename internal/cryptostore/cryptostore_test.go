package cryptostore

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"matrix-cryptostore/internal/logger"
	"matrix-cryptostore/internal/metrics"
	"matrix-cryptostore/internal/sqlstore"
)

// newTestStore opens an unlocked, unencrypted in-memory store. Most tests
// don't care about passphrase derivation, only repository behavior.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	store, err := Open(db, sqlstore.SQLite3, logger.New("test", "error"), metrics.New())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.UnlockUnencrypted(t.Context()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	return store
}

// newTestStoreRaw opens a store without unlocking it, for exercising the
// locked-state error paths.
func newTestStoreRaw(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	store, err := Open(db, sqlstore.SQLite3, logger.New("test", "error"), metrics.New())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

// newSharedSQLiteDB opens a single in-memory database that can back more
// than one Store, for tests that check state survives across a fresh
// Store/unlock cycle on the same underlying data.
func newSharedSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db
}

// newStoreOnDB opens and unlocks a fresh, unencrypted Store against an
// already-open database handle.
func newStoreOnDB(t *testing.T, db *sql.DB) *Store {
	t.Helper()
	store, err := Open(db, sqlstore.SQLite3, logger.New("test", "error"), metrics.New())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.UnlockUnencrypted(t.Context()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	return store
}

// newEncryptedTestStore opens a store locked behind passphrase.
func newEncryptedTestStore(t *testing.T, passphrase string) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	store, err := Open(db, sqlstore.SQLite3, logger.New("test", "error"), metrics.New())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.UnlockWithPassphrase(t.Context(), passphrase); err != nil {
		t.Fatalf("unlock with passphrase: %v", err)
	}
	return store
}
