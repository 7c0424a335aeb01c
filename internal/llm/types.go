// Package llm talks to the inference backend. The backend produces a live
// stream of line-delimited frames: text fragments interleaved with tool
// directives, terminated by an end-of-stream marker. Clients translate the
// wire protocol into Frame values delivered strictly in arrival order.
package llm

import (
	"context"
	"errors"
)

// ErrBackendUnreachable reports that the backend could not be reached or
// errored before producing any output.
var ErrBackendUnreachable = errors.New("llm: backend unreachable")

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one exchange sent to the backend.
type Request struct {
	Model    string
	Messages []Message
	// Context is optional journal text injected as a system message.
	Context string
}

// FrameType discriminates stream frames.
type FrameType string

const (
	// FrameToken carries an incremental text fragment.
	FrameToken FrameType = "token"
	// FrameToolSave is a directive to commit a memory.
	FrameToolSave FrameType = "tool_save"
	// FrameToolSuggest is a proposal for a memory, pending user approval.
	FrameToolSuggest FrameType = "tool_suggest"
	// FrameEnd terminates the stream.
	FrameEnd FrameType = "end"
)

// Frame is one parsed stream event.
type Frame struct {
	Type    FrameType
	Text    string
	Title   string
	Content string
}

// EmitFunc receives frames in arrival order. Returning an error stops the
// stream; the client propagates it unchanged.
type EmitFunc func(Frame) error

// Client streams one exchange. Implementations emit zero or more token and
// tool frames followed by exactly one end frame, unless the stream fails
// first. Frames already emitted stand regardless of a later failure.
type Client interface {
	Stream(ctx context.Context, req Request, emit EmitFunc) error
}

// Memory tool names the backend may call.
const (
	toolSaveMemory    = "save_memory"
	toolSuggestMemory = "suggest_memory"
)
