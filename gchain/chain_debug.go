//go:build debug

package gchain

import (
	"fmt"

	"github.com/goban-engine/goban/gassert"
)

// invariantChainReverifies re-verifies the entire chain after an
// append. Quadratic over a game, so only for debugging.
func invariantChainReverifies(env gassert.Env, mc *MoveChain) {
	if !env.Enabled("gchain.chain.reverify") {
		return
	}

	if err := mc.Verify(); err != nil {
		env.HandleAssertionFailure(fmt.Errorf(
			"chain failed re-verification after appending sequence %d: %w",
			mc.blobs[len(mc.blobs)-1].Sequence, err,
		))
	}
}
