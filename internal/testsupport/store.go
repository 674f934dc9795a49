package testsupport

import (
	"context"
	"testing"

	"torrentrss/internal/config"
	"torrentrss/internal/history"
)

// MustOpenStore opens the history store for tests and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// StartRun inserts and returns a fresh run row.
func StartRun(t testing.TB, store *history.Store) *history.Run {
	t.Helper()

	run, err := store.StartRun(context.Background())
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	return run
}
