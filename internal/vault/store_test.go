package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *EntryStore {
	t.Helper()
	store, err := NewEntryStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewEntryStore: %v", err)
	}
	return store
}

func TestEntryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "pass", "2026-08-30", "today I planted tomatoes"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(ctx, "pass", "2026-08-30")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "today I planted tomatoes" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestReadWrongPassphrase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "pass", "note", "secret"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Read(ctx, "other", "note"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
}

func TestReadMissingEntry(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Read(context.Background(), "pass", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteReplacesContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "pass", "note", "v1"); err != nil {
		t.Fatalf("Write v1: %v", err)
	}
	if err := store.Write(ctx, "pass", "note", "v2"); err != nil {
		t.Fatalf("Write v2: %v", err)
	}
	got, err := store.Read(ctx, "pass", "note")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "v2" {
		t.Fatalf("expected full replacement, got %q", got)
	}
}

func TestWriteWrongPassphraseOnExistingEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "pass", "note", "original"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Write(ctx, "other", "note", "hijack"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
	got, err := store.Read(ctx, "pass", "note")
	if err != nil {
		t.Fatalf("Read after rejected write: %v", err)
	}
	if got != "original" {
		t.Fatalf("rejected write mutated the entry: %q", got)
	}
}

func TestDeleteSemantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "pass", "note", "bye"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Delete(ctx, "wrong", "note"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("delete with wrong passphrase: expected ErrInvalidPassphrase, got %v", err)
	}
	if err := store.Delete(ctx, "pass", "note"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Read(ctx, "pass", "note"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting an absent entry is a no-op success.
	if err := store.Delete(ctx, "pass", "note"); err != nil {
		t.Fatalf("repeat Delete: %v", err)
	}
}

func TestListNamesOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := store.Write(ctx, "pass", name, "content-"+name); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	if err := store.Delete(ctx, "pass", "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	names, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	seen := map[string]int{}
	for _, n := range names {
		seen[n]++
	}
	if len(names) != 2 || seen["a"] != 1 || seen["c"] != 1 {
		t.Fatalf("expected {a, c} exactly once each, got %v", names)
	}
}

func TestListExcludesSentinel(t *testing.T) {
	dir := t.TempDir()
	gate, err := NewGate(dir)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if _, err := gate.Verify(context.Background(), "p"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	store, err := NewEntryStore(dir)
	if err != nil {
		t.Fatalf("NewEntryStore: %v", err)
	}
	names, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("sentinel leaked into listing: %v", names)
	}
}

func TestInvalidNamesRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", ".hidden", "../escape", "a/b", `a\b`} {
		if err := store.Write(ctx, "pass", name, "x"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Write(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestConcurrentWritesDifferentNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("entry-%d", i)
			errs[i] = store.Write(ctx, "pass", name, fmt.Sprintf("content %d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent write %d: %v", i, err)
		}
	}
	names, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(names))
	}
}

func TestConcurrentSameNameLastWriterWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Write(ctx, "pass", "shared", fmt.Sprintf("writer %d", i))
		}(i)
	}
	wg.Wait()

	// Whichever writer won, the blob must decrypt cleanly.
	got, err := store.Read(ctx, "pass", "shared")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == "" {
		t.Fatal("expected one intact winning write")
	}
}
