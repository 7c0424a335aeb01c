package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestUpsertAndList(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert("favorite season", "autumn"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	memories, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("expected 1 memory, got %d", len(memories))
	}
	if memories[0].Title != "favorite season" || memories[0].Content != "autumn" {
		t.Fatalf("unexpected memory: %+v", memories[0])
	}
}

func TestUpsertOverwritesSameTitle(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert("x", "1"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert("x", "2"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	memories, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("expected idempotent overwrite, got %d entries", len(memories))
	}
	if memories[0].Content != "2" {
		t.Fatalf("expected last write to win, got %q", memories[0].Content)
	}
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert("x", "1"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	first, ok, err := store.Get("x")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if err := store.Upsert("x", "2"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, ok, err := store.Get("x")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created timestamp changed on overwrite: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert("gone", "soon"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete("gone"); err != nil {
		t.Fatalf("repeat Delete should be a no-op: %v", err)
	}
	if err := store.Delete("never existed"); err != nil {
		t.Fatalf("Delete of unknown title should be a no-op: %v", err)
	}
}

func TestDistinctTitlesSameSlug(t *testing.T) {
	store := newTestStore(t)

	// Both titles slug to "coffee-order".
	if err := store.Upsert("coffee order", "flat white"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert("coffee/order", "espresso"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	memories, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("slug collision merged distinct titles: %+v", memories)
	}
}

func TestListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Upsert("good", "fine"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.md"), []byte("no frontmatter here"), 0o644); err != nil {
		t.Fatalf("plant corrupt file: %v", err)
	}

	memories, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(memories) != 1 || memories[0].Title != "good" {
		t.Fatalf("expected corrupt file skipped, got %+v", memories)
	}
}

func TestConcurrentUpsertsDifferentTitles(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Upsert(fmt.Sprintf("title-%d", i), strings.Repeat("x", i+1))
		}(i)
	}
	wg.Wait()

	memories, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(memories) != 10 {
		t.Fatalf("expected 10 memories, got %d", len(memories))
	}
}
