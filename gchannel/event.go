package gchannel

import (
	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/gscore"
)

// Event is one occurrence on a game channel, delivered to
// subscribers in the order the channel's kernel observed it.
// The concrete types are [MoveMadeEvent], [ChatEvent],
// [GameFinishedEvent], and [SyncRequestedEvent].
type Event interface {
	isEvent()
}

// MoveMadeEvent reports one move appended to the chain,
// whether it originated locally or from a peer.
type MoveMadeEvent struct {
	Record ggame.MoveRecord

	// By is the color that moved.
	By gboard.Color
}

// ChatEvent reports an in-game text message.
type ChatEvent struct {
	From    string
	Message string
}

// GameFinishedEvent reports the end of the game with the
// channel's computed score.
type GameFinishedEvent struct {
	Proof gscore.ScoreProof
}

// SyncRequestedEvent reports that the channel suspects it has
// diverged from its peers and has asked for their chain tail.
type SyncRequestedEvent struct {
	// FromSequence is the first sequence the channel asked for.
	FromSequence uint32
}

func (MoveMadeEvent) isEvent()      {}
func (ChatEvent) isEvent()          {}
func (GameFinishedEvent) isEvent()  {}
func (SyncRequestedEvent) isEvent() {}

// moverFor returns the color that plays the move at seq.
// Black always moves first and turns alternate unconditionally
// per accepted move, so parity fully determines the mover.
func moverFor(seq uint32) gboard.Color {
	if seq%2 == 0 {
		return gboard.Black
	}
	return gboard.White
}
