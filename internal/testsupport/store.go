package testsupport

import (
	"context"
	"testing"
	"time"

	"unitgo/internal/config"
	"unitgo/internal/journal"
)

// MustOpenJournal opens the config's journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordEntry journals a request with the given id and status at createdAt.
func RecordEntry(t testing.TB, store *journal.Store, requestID string, status int, createdAt time.Time) *journal.Entry {
	t.Helper()

	entry := &journal.Entry{
		RequestID: requestID,
		Method:    "GET",
		Target:    "/" + requestID,
		Status:    status,
		RC:        "ok",
		CreatedAt: createdAt,
	}
	if err := store.Record(context.Background(), entry); err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return entry
}
