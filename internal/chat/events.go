// Package chat drives one streamed exchange with the assistant and owns the
// ordered event stream the caller consumes: text tokens interleaved with
// memory tool events, closed by a single terminal done or error event.
package chat

import (
	"crypto/rand"
	"encoding/hex"
)

// EventType discriminates stream events delivered to the caller.
type EventType string

const (
	// EventToken carries an incremental fragment of the visible reply.
	EventToken EventType = "token"
	// EventMemorySaved confirms a fact was committed; it is emitted only
	// after the write succeeded, at the tool call's position in the stream.
	EventMemorySaved EventType = "memory_saved"
	// EventMemorySuggested proposes a fact; nothing has been written.
	EventMemorySuggested EventType = "memory_suggested"
	// EventDone terminates a successful exchange.
	EventDone EventType = "done"
	// EventError terminates a failed exchange. Events delivered before it
	// remain valid; nothing is retracted.
	EventError EventType = "error"
)

// Error codes carried by EventError.
const (
	ErrCodeBackendUnreachable = "backend_unreachable"
	ErrCodeStreamInterrupted  = "stream_interrupted"
	ErrCodePersistence        = "persistence_failure"
)

// Event is one element of the exchange's ordered stream.
type Event struct {
	Type         EventType `json:"type"`
	Text         string    `json:"text,omitempty"`
	Title        string    `json:"title,omitempty"`
	Content      string    `json:"content,omitempty"`
	SuggestionID string    `json:"suggestion_id,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// newSuggestionID returns a short random identifier for a pending suggestion.
func newSuggestionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "sug-00000000"
	}
	return "sug-" + hex.EncodeToString(buf)
}
