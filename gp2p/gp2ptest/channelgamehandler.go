package gp2ptest

import (
	"context"
	"sync"

	"github.com/goban-engine/goban/gexchange"
	"github.com/goban-engine/goban/gp2p"
	"github.com/goban-engine/goban/gwire"
)

// ReceivedGameMessage pairs a decoded message with the peer that sent it.
type ReceivedGameMessage struct {
	From gp2p.PeerID
	Msg  gwire.GameMessage
}

// ChannelGameHandler is a [gp2p.GameMessageHandler]
// that emits messages to a channel.
//
// This is useful in tests where you have a "client-only" connection
// and you want to observe messages sent to the network,
// without interfering with a live game channel.
type ChannelGameHandler struct {
	incoming chan ReceivedGameMessage

	closeOnce sync.Once
}

// NewChannelGameHandler returns a ChannelGameHandler
// whose channel is sized according to bufSize.
func NewChannelGameHandler(bufSize int) *ChannelGameHandler {
	return &ChannelGameHandler{
		incoming: make(chan ReceivedGameMessage, bufSize),
	}
}

// HandleGameMessage implements [gp2p.GameMessageHandler].
func (h *ChannelGameHandler) HandleGameMessage(ctx context.Context, from gp2p.PeerID, msg gwire.GameMessage) gexchange.Feedback {
	select {
	case h.incoming <- ReceivedGameMessage{From: from, Msg: msg}:
		return gexchange.FeedbackAccepted
	case <-ctx.Done():
		return gexchange.FeedbackIgnored
	}
}

// Incoming returns a channel of the values that were passed to HandleGameMessage.
func (h *ChannelGameHandler) Incoming() <-chan ReceivedGameMessage {
	return h.incoming
}

// Close closes h.
// It is safe to call Close multiple times.
func (h *ChannelGameHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.incoming)
	})
}
