package sqlite

import (
	"context"
	"testing"
)

// newTestStore opens a Store backed by a temp-file database for the
// duration of the test. File-based databases (rather than ":memory:") are
// used for test isolation: a bare ":memory:" connection string is shared
// across every connection in the process and can leak state between
// tests.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := t.TempDir() + "/test.db"
	store, err := Open(context.Background(), dbPath, nil)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})
	return store
}
