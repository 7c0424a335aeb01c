package chat

import (
	"sync"

	"haven/internal/logging"
	"haven/internal/memory"
)

// Suggestion is a proposed memory awaiting a user decision. Nothing is
// persisted until it is accepted.
type Suggestion struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Reconciler tracks pending suggestions and resolves them exactly once.
// Accepting writes through the memory store; dismissing just drops the
// suggestion. Resolutions of unknown or already-resolved IDs are no-ops, so a
// double-click or a stale view cannot write twice.
type Reconciler struct {
	memories *memory.Store
	logger   logging.Logger

	mu      sync.Mutex
	pending map[string]Suggestion
	order   []string
}

// NewReconciler builds a reconciler over the given memory store.
func NewReconciler(memories *memory.Store) *Reconciler {
	return &Reconciler{
		memories: memories,
		logger:   logging.NewComponentLogger("SuggestionReconciler"),
		pending:  make(map[string]Suggestion),
	}
}

// Propose registers a suggestion surfaced by the stream. Duplicate titles are
// allowed; each suggestion resolves independently.
func (r *Reconciler) Propose(s Suggestion) {
	if s.ID == "" || s.Title == "" {
		r.logger.Warn("ignoring suggestion with missing id or title")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[s.ID]; exists {
		return
	}
	r.pending[s.ID] = s
	r.order = append(r.order, s.ID)
	r.logger.Debug("suggestion pending id=%s title=%q", s.ID, s.Title)
}

// Pending returns unresolved suggestions in the order they were proposed.
func (r *Reconciler) Pending() []Suggestion {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Suggestion, 0, len(r.pending))
	for _, id := range r.order {
		if s, ok := r.pending[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Accept commits the suggestion to the memory store and removes it from the
// pending set. The accepted suggestion is returned so the caller can confirm
// what was saved. Unknown or already-resolved IDs return ok=false without
// writing anything.
func (r *Reconciler) Accept(id string) (Suggestion, bool, error) {
	r.mu.Lock()
	s, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		return Suggestion{}, false, nil
	}
	delete(r.pending, id)
	r.mu.Unlock()

	if err := r.memories.Upsert(s.Title, s.Content); err != nil {
		// The write failed; restore the suggestion so it can be retried.
		r.mu.Lock()
		r.pending[id] = s
		r.mu.Unlock()
		r.logger.Error("accept failed id=%s: %v", id, err)
		return Suggestion{}, false, err
	}
	r.logger.Info("suggestion accepted id=%s title=%q", id, s.Title)
	return s, true, nil
}

// Dismiss drops the suggestion without writing anything. Unknown or
// already-resolved IDs are no-ops.
func (r *Reconciler) Dismiss(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return false
	}
	delete(r.pending, id)
	r.logger.Debug("suggestion dismissed id=%s", id)
	return true
}
