package testsupport

import (
	"context"
	"testing"

	"cardsync/internal/assignments"
	"cardsync/internal/config"
)

// MustOpenStore opens the configured assignment store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) assignments.Store {
	t.Helper()

	store, err := assignments.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("assignments.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustPut stores a raw record value.
func MustPut(t testing.TB, store assignments.Store, tagID, value string) {
	t.Helper()

	if err := store.Put(context.Background(), tagID, value); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
}
