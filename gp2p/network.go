// Package gp2p defines the interfaces the game core consumes from
// the transport layer. The core only knows "broadcast a message to
// a game's topic" and "hand me decoded messages with a sender
// identity"; discovery, NAT traversal, and gossip fan-out are the
// transport implementation's business. See gp2plibp2p for the
// libp2p-backed implementation and gp2ptest for an in-process one.
package gp2p

import (
	"context"

	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/gexchange"
	"github.com/goban-engine/goban/gwire"
)

// PeerID is an opaque peer identity assigned by the transport.
type PeerID string

// GameMessageHandler processes one decoded message arriving from
// the network, returning feedback that drives the transport's
// propagation and peer-scoring decision.
//
// Handlers must tolerate duplicate and reordered delivery;
// at-least-once is the only delivery guarantee.
type GameMessageHandler interface {
	HandleGameMessage(ctx context.Context, from PeerID, msg gwire.GameMessage) gexchange.Feedback
}

// Connection is the generalized connection to the p2p network.
//
// A connection participates in zero or more game topics. Messages
// for joined games are decoded and dispatched to the handler set
// via SetGameHandler.
type Connection interface {
	// GameBroadcaster returns a GameBroadcaster derived from this
	// connection, or nil if the connection does not support
	// broadcasting.
	GameBroadcaster() GameBroadcaster

	// JoinGame subscribes the connection to one game's topic.
	JoinGame(ctx context.Context, id gchain.GameID) error

	// LeaveGame unsubscribes from one game's topic.
	// Messages already in flight may still be dispatched.
	LeaveGame(ctx context.Context, id gchain.GameID) error

	// SetGameHandler sets the handler for incoming game messages.
	// A nil handler means incoming messages are ignored.
	//
	// This is a method at runtime rather than a constructor
	// parameter because the connection typically must exist
	// before the channel registry consuming it can be built.
	SetGameHandler(ctx context.Context, h GameMessageHandler)

	// Disconnect the connection, rendering it unusable.
	Disconnect()

	// Disconnected returns a channel that is closed after
	// Disconnect() completes.
	Disconnected() <-chan struct{}
}

// GameBroadcaster publishes game messages to the network.
type GameBroadcaster interface {
	// OutgoingGameMessages returns a channel where game messages
	// may be sent, after which they will be broadcast on the topic
	// of the game the message addresses. The caller must have
	// joined that game first.
	OutgoingGameMessages() chan<- gwire.GameMessage
}
