package testsupport

import (
	"context"
	"testing"

	"permavid/internal/config"
	"permavid/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddItem enqueues a URL for tests using the provided store.
func AddItem(t testing.TB, store *queue.Store, url string) *queue.Item {
	t.Helper()

	item, err := store.Add(context.Background(), url)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return item
}

// MustSaveSettings persists test settings, failing the test on error.
func MustSaveSettings(t testing.TB, store *queue.Store, settings queue.Settings) {
	t.Helper()

	if err := store.SaveSettings(context.Background(), settings); err != nil {
		t.Fatalf("store.SaveSettings: %v", err)
	}
}
