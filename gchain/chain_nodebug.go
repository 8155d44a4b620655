//go:build !debug

package gchain

import "github.com/goban-engine/goban/gassert"

func invariantChainReverifies(gassert.Env, *MoveChain) {}
