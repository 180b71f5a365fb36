package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gilsadis1/rentalsbot/pkg/rental"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return store
}

func TestMarkSeenAndContains(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "seen.sqlite3"))

	listings := []*rental.Listing{
		{URL: "https://example.co.il/item/1", Source: "a"},
		{URL: "https://example.co.il/item/2", Source: "a"},
	}

	seen, err := store.Contains(ctx, listings[0].URL)
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if seen {
		t.Error("fresh store should not contain anything")
	}

	if err := store.MarkSeen(ctx, listings, time.Now()); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}

	for _, l := range listings {
		seen, err := store.Contains(ctx, l.URL)
		if err != nil {
			t.Fatalf("Contains failed: %v", err)
		}
		if !seen {
			t.Errorf("expected %s to be seen", l.URL)
		}
	}

	if n, err := store.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2, nil", n, err)
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "seen.sqlite3"))

	listings := []*rental.Listing{{URL: "https://example.co.il/item/1", Source: "a"}}

	if err := store.MarkSeen(ctx, listings, time.Now()); err != nil {
		t.Fatalf("first MarkSeen failed: %v", err)
	}
	if err := store.MarkSeen(ctx, listings, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("re-marking an already seen key must be a no-op, got: %v", err)
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count = %d after duplicate mark, want 1", n)
	}
}

func TestSeenSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.sqlite3")

	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.MarkSeen(ctx, []*rental.Listing{{URL: "u1", Source: "s"}}, time.Now()); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openTestStore(t, path)
	seen, err := reopened.Contains(ctx, "u1")
	if err != nil {
		t.Fatalf("Contains after reopen failed: %v", err)
	}
	if !seen {
		t.Error("seen-set must survive process restarts")
	}
}

// TestCorruptFileTreatedAsFresh verifies the delete-to-reset behavior:
// a state file that is not a SQLite database degrades to an empty
// history instead of failing the run.
func TestCorruptFileTreatedAsFresh(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.sqlite3")

	if err := os.WriteFile(path, []byte("this is not a sqlite database at all"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store := openTestStore(t, path)

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count on recreated store failed: %v", err)
	}
	if n != 0 {
		t.Errorf("recreated store should be empty, got %d rows", n)
	}

	if err := store.MarkSeen(ctx, []*rental.Listing{{URL: "u1", Source: "s"}}, time.Now()); err != nil {
		t.Errorf("recreated store should be writable: %v", err)
	}
}

func TestMissingFileCreatesFresh(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "does-not-exist-yet.sqlite3"))

	if n, err := store.Count(context.Background()); err != nil || n != 0 {
		t.Errorf("Count = %d, %v; want 0, nil", n, err)
	}
}
