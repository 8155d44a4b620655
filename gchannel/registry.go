package gchannel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/gexchange"
	"github.com/goban-engine/goban/gp2p"
	"github.com/goban-engine/goban/gwire"
)

// Registry is the lobby: it routes incoming game messages to the
// channel replicating the addressed game.
//
// Set a Registry as the connection's game handler so that one
// connection can carry any number of concurrent games.
type Registry struct {
	log *slog.Logger

	mu       sync.RWMutex
	channels map[gchain.GameID]*Channel
}

var _ gp2p.GameMessageHandler = (*Registry)(nil)

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log: log,

		channels: make(map[gchain.GameID]*Channel),
	}
}

// Add registers ch under its game ID,
// replacing any previous channel for the same game.
func (r *Registry) Add(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.GameID()] = ch
}

// Remove drops the channel for id, if any.
// The channel itself keeps running; stopping it is its owner's job.
func (r *Registry) Remove(id gchain.GameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
}

// Get returns the channel replicating id.
func (r *Registry) Get(id gchain.GameID) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// HandleGameMessage implements [gp2p.GameMessageHandler]
// by routing on the message's game ID.
func (r *Registry) HandleGameMessage(ctx context.Context, from gp2p.PeerID, msg gwire.GameMessage) gexchange.Feedback {
	id := msg.GameID()
	ch, ok := r.Get(id)
	if !ok {
		r.log.Debug("Ignoring message for game with no local channel", "game_id", id)
		return gexchange.FeedbackIgnored
	}
	return ch.HandleGameMessage(ctx, from, msg)
}
