package gchannel

import (
	"context"
	"fmt"

	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/internal/gchan"
)

// TestSupport exposes the narrow set of hooks that tests need
// to reach past the channel's public behavior.
// Production code must not use it.
type TestSupport struct {
	c *Channel
}

// TestSupport returns the test hooks for c.
func (c *Channel) TestSupport() TestSupport {
	return TestSupport{c: c}
}

// SubmitMoveWithoutAck submits a local move exactly like
// [*Channel.SubmitMove], except the ack watchdog is never armed.
// Tests use this to play moves without scheduling timeouts
// they would then have to drain.
func (ts TestSupport) SubmitMoveWithoutAck(ctx context.Context, mv ggame.Move) error {
	req := submitRequest{
		Move:       mv,
		WithoutAck: true,
		Resp:       make(chan error, 1),
	}
	resp, ok := gchan.ReqResp(
		ctx, ts.c.log,
		ts.c.submitRequests, req,
		req.Resp,
		"submitting local move without ack",
	)
	if !ok {
		return fmt.Errorf("context finished while submitting move: %w", context.Cause(ctx))
	}
	return resp
}
