package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haven/internal/memory"
)

func newTestReconciler(t *testing.T) (*Reconciler, *memory.Store) {
	t.Helper()
	memories, err := memory.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewReconciler(memories), memories
}

func TestReconcilerAcceptWritesOnce(t *testing.T) {
	r, memories := newTestReconciler(t)
	r.Propose(Suggestion{ID: "sug-1", Title: "tea", Content: "drinks green tea"})

	s, ok, err := r.Accept("sug-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tea", s.Title)

	m, found, err := memories.Get("tea")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "drinks green tea", m.Content)

	// Second accept is a no-op.
	_, ok, err = r.Accept("sug-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, r.Pending())
}

func TestReconcilerDismissWritesNothing(t *testing.T) {
	r, memories := newTestReconciler(t)
	r.Propose(Suggestion{ID: "sug-1", Title: "tea", Content: "drinks green tea"})

	assert.True(t, r.Dismiss("sug-1"))
	assert.False(t, r.Dismiss("sug-1"))

	_, found, err := memories.Get("tea")
	require.NoError(t, err)
	assert.False(t, found)

	// A dismissed suggestion cannot be accepted later.
	_, ok, err := r.Accept("sug-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcilerUnknownIDIsNoOp(t *testing.T) {
	r, _ := newTestReconciler(t)

	_, ok, err := r.Accept("sug-missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, r.Dismiss("sug-missing"))
}

func TestReconcilerPendingKeepsProposalOrder(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.Propose(Suggestion{ID: "sug-1", Title: "first", Content: "a"})
	r.Propose(Suggestion{ID: "sug-2", Title: "second", Content: "b"})
	r.Propose(Suggestion{ID: "sug-3", Title: "third", Content: "c"})

	assert.True(t, r.Dismiss("sug-2"))

	pending := r.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Title)
	assert.Equal(t, "third", pending[1].Title)
}

func TestReconcilerDuplicateTitlesResolveIndependently(t *testing.T) {
	r, memories := newTestReconciler(t)
	r.Propose(Suggestion{ID: "sug-1", Title: "lunch", Content: "likes ramen"})
	r.Propose(Suggestion{ID: "sug-2", Title: "lunch", Content: "likes pho"})

	_, ok, err := r.Accept("sug-2")
	require.NoError(t, err)
	require.True(t, ok)

	// The first suggestion is still pending and can overwrite on accept.
	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "sug-1", pending[0].ID)

	m, found, err := memories.Get("lunch")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "likes pho", m.Content)
}

func TestReconcilerFailedAcceptStaysPending(t *testing.T) {
	r, _ := newTestReconciler(t)
	// An empty title is rejected by the store, so the accept fails.
	r.pending["sug-1"] = Suggestion{ID: "sug-1", Title: " ", Content: "x"}
	r.order = append(r.order, "sug-1")

	_, ok, err := r.Accept("sug-1")
	require.Error(t, err)
	assert.False(t, ok)
	require.Len(t, r.Pending(), 1)
}
