package llm

import (
	"context"
)

// ScriptedClient replays a fixed frame sequence for testing. When Err is set
// it is returned after FailAfter frames have been emitted (FailAfter 0 with a
// nil script models a backend that was never reachable).
type ScriptedClient struct {
	Frames    []Frame
	Err       error
	FailAfter int

	// LastRequest records the most recent request for assertions.
	LastRequest Request
}

var _ Client = (*ScriptedClient)(nil)

func (c *ScriptedClient) Stream(ctx context.Context, req Request, emit EmitFunc) error {
	c.LastRequest = req

	if c.Err != nil && c.FailAfter == 0 {
		return c.Err
	}
	for i, frame := range c.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(frame); err != nil {
			return err
		}
		if c.Err != nil && i+1 >= c.FailAfter {
			return c.Err
		}
	}
	return nil
}
