package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"haven/internal/llm"
	"haven/internal/logging"
	"haven/internal/memory"
	"haven/internal/vault"
)

const defaultContextTokenBudget = 8000

// errPersistence marks a failed write-through so the terminal event can carry
// the right error code.
var errPersistence = errors.New("persistence failure")

// ExchangeRequest describes one request/response exchange. The caller supplies
// the full conversation history every time; nothing is kept between exchanges.
// The passphrase lives only inside this value for the duration of the call.
type ExchangeRequest struct {
	Model          string
	History        []llm.Message
	ContextEntries []string
	Passphrase     string
}

// Session drives exchanges against the inference backend. It owns no
// persistent state: memory writes go through the memory store, journal reads
// through the entry store, and each call to Stream is independent.
type Session struct {
	entries  *vault.EntryStore
	memories *memory.Store
	client   llm.Client
	logger   logging.Logger

	contextTokenBudget int
}

// NewSession wires a session over the given stores and backend client.
func NewSession(entries *vault.EntryStore, memories *memory.Store, client llm.Client) *Session {
	return &Session{
		entries:            entries,
		memories:           memories,
		client:             client,
		logger:             logging.NewComponentLogger("ChatSession"),
		contextTokenBudget: defaultContextTokenBudget,
	}
}

// SetContextTokenBudget overrides the journal-context truncation budget.
func (s *Session) SetContextTokenBudget(tokens int) {
	if tokens > 0 {
		s.contextTokenBudget = tokens
	}
}

// Stream runs one exchange and returns its event channel. Events arrive in
// backend order and the channel closes after the terminal done or error event.
// Cancelling ctx abandons the exchange: writes already acknowledged stay
// committed, writes not yet started are never issued.
func (s *Session) Stream(ctx context.Context, req ExchangeRequest) <-chan Event {
	events := make(chan Event, 64)

	go func() {
		defer close(events)
		s.run(ctx, req, events)
	}()

	return events
}

func (s *Session) run(ctx context.Context, req ExchangeRequest, events chan<- Event) {
	send := func(ev Event) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	journalContext := s.buildContext(ctx, req)

	delivered := 0
	ended := false
	streamErr := s.client.Stream(ctx, llm.Request{
		Model:    req.Model,
		Messages: req.History,
		Context:  journalContext,
	}, func(frame llm.Frame) error {
		if ended {
			// Anything after the end frame is ignored.
			return nil
		}
		switch frame.Type {
		case llm.FrameToken:
			if err := send(Event{Type: EventToken, Text: frame.Text}); err != nil {
				return err
			}
			delivered++
		case llm.FrameToolSave:
			// Commit before confirming: the saved event must never precede
			// the durable write.
			if err := s.memories.Upsert(frame.Title, frame.Content); err != nil {
				s.logger.Error("memory save failed title=%q: %v", frame.Title, err)
				return fmt.Errorf("%w: %v", errPersistence, err)
			}
			if err := send(Event{Type: EventMemorySaved, Title: frame.Title, Content: frame.Content}); err != nil {
				return err
			}
			delivered++
		case llm.FrameToolSuggest:
			ev := Event{
				Type:         EventMemorySuggested,
				SuggestionID: newSuggestionID(),
				Title:        frame.Title,
				Content:      frame.Content,
			}
			if err := send(ev); err != nil {
				return err
			}
			delivered++
		case llm.FrameEnd:
			ended = true
			if err := send(Event{Type: EventDone}); err != nil {
				return err
			}
		default:
			s.logger.Debug("ignoring unknown frame type %q", frame.Type)
		}
		return nil
	})

	if streamErr == nil || ended {
		return
	}
	if ctx.Err() != nil {
		// Caller abandoned the exchange; nobody is listening.
		return
	}

	ev := Event{Type: EventError, ErrorCode: ErrCodeStreamInterrupted, Message: "stream interrupted"}
	if delivered == 0 && errors.Is(streamErr, llm.ErrBackendUnreachable) {
		ev.ErrorCode = ErrCodeBackendUnreachable
		ev.Message = "assistant backend unreachable"
	}
	if errors.Is(streamErr, errPersistence) {
		ev.ErrorCode = ErrCodePersistence
		ev.Message = "failed to persist memory"
	}
	s.logger.Warn("exchange failed after %d events: %v", delivered, streamErr)
	_ = send(ev)
}

// buildContext reads the requested journal entries and concatenates them as
// best-effort enrichment. A failed read skips that entry rather than aborting
// the exchange. The result is truncated to the session's token budget.
func (s *Session) buildContext(ctx context.Context, req ExchangeRequest) string {
	if len(req.ContextEntries) == 0 {
		return ""
	}

	contents := make([]string, len(req.ContextEntries))
	var group errgroup.Group
	for i, name := range req.ContextEntries {
		group.Go(func() error {
			content, err := s.entries.Read(ctx, req.Passphrase, name)
			if err != nil {
				s.logger.Warn("skipping context entry %q: %v", name, err)
				return nil
			}
			contents[i] = fmt.Sprintf("## %s\n\n%s", name, content)
			return nil
		})
	}
	_ = group.Wait()

	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		if c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return truncateToTokens(strings.Join(parts, "\n\n"), s.contextTokenBudget)
}
