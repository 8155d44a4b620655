package glog

import (
	"fmt"
	"log/slog"
)

// GS returns a copy of log that includes fields for the given
// game ID and move sequence.
//
// This is a convenient shorthand in many log calls where
// the game and sequence are pertinent details.
func GS(log *slog.Logger, gameID string, seq uint32) *slog.Logger {
	return log.With("game_id", gameID, "seq", seq)
}

// GSE is [GS] with an error field added.
func GSE(log *slog.Logger, gameID string, seq uint32, e error) *slog.Logger {
	return log.With("game_id", gameID, "seq", seq, "err", e)
}

// Hex wraps a byte slice to ensure it serializes as a hex-encoded string.
// Without this, it gets rendered as a Unicode string with embedded escape codes.
type Hex []byte

func (v Hex) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("%x", v))
}
