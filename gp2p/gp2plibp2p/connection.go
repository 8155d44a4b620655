// Package gp2plibp2p is the libp2p-backed [gp2p.Connection]:
// gossipsub for fan-out, one pubsub topic per game, and a kad-DHT
// peer for discovery.
package gp2plibp2p

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/gexchange"
	"github.com/goban-engine/goban/gp2p"
	"github.com/goban-engine/goban/gwire"
	"github.com/goban-engine/goban/internal/gchan"
)

// GameTopic returns the pubsub topic name for one game.
func GameTopic(id gchain.GameID) string {
	return fmt.Sprintf("goban/game/%s/v1", id)
}

type joinedGame struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

// Connection is a connection to a libp2p network,
// carrying one pubsub topic per joined game.
type Connection struct {
	log *slog.Logger

	codec gwire.MarshalCodec

	h       *Host
	dhtPeer *dht.IpfsDHT

	outgoing chan gwire.GameMessage

	joinRequests  chan joinRequest
	leaveRequests chan leaveRequest

	setHandlerRequests chan setHandlerRequest

	wg sync.WaitGroup

	disconnectOnce sync.Once
	disconnected   chan struct{}
}

type joinRequest struct {
	GameID gchain.GameID
	Resp   chan error
}

type leaveRequest struct {
	GameID gchain.GameID
	Resp   chan error
}

type setHandlerRequest struct {
	Handler gp2p.GameMessageHandler
	Ready   chan struct{}
}

// NewConnection returns a new Connection based on
// a host that has already joined a network.
func NewConnection(ctx context.Context, log *slog.Logger, h *Host, codec gwire.MarshalCodec) (*Connection, error) {
	dhtPeer, err := dht.New(
		ctx,
		h.Libp2pHost(),
		dht.ProtocolPrefix("/goban"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create DHT peer: %w", err)
	}

	c := &Connection{
		log: log,

		codec: codec,

		h:       h,
		dhtPeer: dhtPeer,

		outgoing: make(chan gwire.GameMessage, 1),

		joinRequests:  make(chan joinRequest, 1),
		leaveRequests: make(chan leaveRequest, 1),

		setHandlerRequests: make(chan setHandlerRequest, 1),

		disconnected: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.kernel(ctx)

	return c, nil
}

// kernel is the connection's single owner goroutine: it serializes
// joins, leaves, handler swaps, and outgoing publishes, so the
// joined-game map never needs a lock.
func (c *Connection) kernel(ctx context.Context) {
	defer c.wg.Done()

	joined := make(map[gchain.GameID]joinedGame)
	var handler gp2p.GameMessageHandler

	defer func() {
		for id, jg := range joined {
			jg.sub.Cancel()
			if err := jg.topic.Close(); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Info("Error closing game topic", "game_id", id, "err", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-c.joinRequests:
			req.Resp <- c.handleJoin(ctx, joined, handler, req.GameID)

		case req := <-c.leaveRequests:
			jg, ok := joined[req.GameID]
			if !ok {
				req.Resp <- fmt.Errorf("not joined to game %s", req.GameID)
				continue
			}
			delete(joined, req.GameID)

			topicName := GameTopic(req.GameID)
			if err := c.h.PubSub().UnregisterTopicValidator(topicName); err != nil {
				c.log.Warn("Failed to unregister topic validator", "game_id", req.GameID, "err", err)
			}
			jg.sub.Cancel()
			req.Resp <- jg.topic.Close()

		case req := <-c.setHandlerRequests:
			handler = req.Handler

			// Re-register the validator on every joined topic so new
			// messages are validated against the new handler.
			for id := range joined {
				c.registerValidator(id, handler)
			}
			close(req.Ready)

		case msg, ok := <-c.outgoing:
			if !ok {
				return
			}

			jg, joinedGame := joined[msg.GameID()]
			if !joinedGame {
				c.log.Warn("Dropping outgoing message for game without joined topic", "game_id", msg.GameID())
				continue
			}

			b, err := c.codec.MarshalGameMessage(msg)
			if err != nil {
				c.log.Warn("Failed to marshal game message; cannot broadcast value to network", "err", err)
				continue
			}

			if err := jg.topic.Publish(ctx, b); err != nil {
				c.log.Warn("Failed to publish game message", "game_id", msg.GameID(), "err", err)
			}
		}
	}
}

func (c *Connection) handleJoin(
	ctx context.Context,
	joined map[gchain.GameID]joinedGame,
	handler gp2p.GameMessageHandler,
	id gchain.GameID,
) error {
	if _, ok := joined[id]; ok {
		return nil
	}

	c.registerValidator(id, handler)

	topic, err := c.h.PubSub().Join(GameTopic(id))
	if err != nil {
		return fmt.Errorf("joining topic for game %s: %w", id, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return fmt.Errorf("subscribing to topic for game %s: %w", id, err)
	}

	joined[id] = joinedGame{topic: topic, sub: sub}

	c.wg.Add(1)
	go c.drainSub(ctx, sub)

	return nil
}

func (c *Connection) registerValidator(id gchain.GameID, handler gp2p.GameMessageHandler) {
	topicName := GameTopic(id)

	// There may be a previous validator; clear it first.
	_ = c.h.PubSub().UnregisterTopicValidator(topicName)

	var v pubsub.ValidatorEx
	if handler == nil {
		v = ignoreMessage
	} else {
		v = c.gameMessageValidator(handler)
	}
	if err := c.h.PubSub().RegisterTopicValidator(topicName, v); err != nil {
		c.log.Warn("Failed to register game topic validator", "game_id", id, "err", err)
	}
}

// ignoreMessage is a pubsub validator that ignores all incoming messages.
// This is the default strategy before a handler is set.
func ignoreMessage(context.Context, peer.ID, *pubsub.Message) pubsub.ValidationResult {
	return pubsub.ValidationIgnore
}

// gameMessageValidator returns a pubsub validator for a game topic.
//
// This callback runs on every new pubsub message, so it must decode
// the message and let the handler decide whether the message should
// continue to propagate through the p2p network.
func (c *Connection) gameMessageValidator(h gp2p.GameMessageHandler) pubsub.ValidatorEx {
	selfID := c.h.Libp2pHost().ID()
	return func(ctx context.Context, id peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
		if id == selfID {
			// Don't process a message we sent,
			// as our local state must have already been consistent
			// with this message before we sent it.
			return pubsub.ValidationAccept
		}

		var gm gwire.GameMessage
		if err := c.codec.UnmarshalGameMessage(msg.Data, &gm); err != nil {
			c.log.Info("Failed to unmarshal data into game message", "err", err)
			return pubsub.ValidationIgnore
		}

		f := h.HandleGameMessage(ctx, gp2p.PeerID(id.String()), gm)
		return c.exchangeFeedbackToLibp2p(f)
	}
}

func (c *Connection) exchangeFeedbackToLibp2p(f gexchange.Feedback) pubsub.ValidationResult {
	switch f {
	case gexchange.FeedbackAccepted:
		return pubsub.ValidationAccept
	case gexchange.FeedbackRejected, gexchange.FeedbackRejectAndDisconnect:
		return pubsub.ValidationReject
	case gexchange.FeedbackIgnored:
		return pubsub.ValidationIgnore
	default:
		c.log.Info("Handler returned unacceptable feedback value", "f", f)
		return pubsub.ValidationIgnore
	}
}

// drainSub continually reads from a subscription.
// Message handling happens in the topic validator;
// draining only keeps the subscription's delivery queue empty.
func (c *Connection) drainSub(ctx context.Context, sub *pubsub.Subscription) {
	defer c.wg.Done()

	for {
		_, err := sub.Next(ctx)
		if err != nil {
			// err is non-nil on context cancellation or if the
			// subscription is canceled. Neither is log-worthy.
			if err != context.Canceled && !errors.Is(err, pubsub.ErrSubscriptionCancelled) {
				c.log.Info("Quitting subscription draining due to error", "err", err)
			}
			return
		}
	}
}

// GameBroadcaster returns c, which already satisfies the
// GameBroadcaster interface.
func (c *Connection) GameBroadcaster() gp2p.GameBroadcaster {
	return c
}

// OutgoingGameMessages returns a channel where game messages may be
// sent, after which they will be broadcast on their game's topic.
func (c *Connection) OutgoingGameMessages() chan<- gwire.GameMessage {
	return c.outgoing
}

// JoinGame subscribes the connection to one game's topic.
func (c *Connection) JoinGame(ctx context.Context, id gchain.GameID) error {
	req := joinRequest{GameID: id, Resp: make(chan error, 1)}
	resp, ok := gchan.ReqResp(
		ctx, c.log,
		c.joinRequests, req,
		req.Resp,
		"joining game topic",
	)
	if !ok {
		return context.Cause(ctx)
	}
	return resp
}

// LeaveGame unsubscribes from one game's topic.
func (c *Connection) LeaveGame(ctx context.Context, id gchain.GameID) error {
	req := leaveRequest{GameID: id, Resp: make(chan error, 1)}
	resp, ok := gchan.ReqResp(
		ctx, c.log,
		c.leaveRequests, req,
		req.Resp,
		"leaving game topic",
	)
	if !ok {
		return context.Cause(ctx)
	}
	return resp
}

// SetGameHandler sets the handler for incoming game messages.
// h may be nil to ignore incoming messages.
func (c *Connection) SetGameHandler(ctx context.Context, h gp2p.GameMessageHandler) {
	req := setHandlerRequest{
		Handler: h,
		Ready:   make(chan struct{}),
	}

	_, _ = gchan.ReqResp(
		ctx, c.log,
		c.setHandlerRequests, req,
		req.Ready,
		"setting game handler",
	)
}

func (c *Connection) Disconnect() {
	c.disconnectOnce.Do(func() {
		if err := c.h.Close(); err != nil {
			c.log.Info("Error closing connection host", "err", err)
		}

		close(c.disconnected)
	})
}

// Disconnected returns a channel that is closed once
// c.Disconnect() has been called and has returned.
func (c *Connection) Disconnected() <-chan struct{} {
	return c.disconnected
}

// Host returns c's underlying Host.
// This is useful for bookkeeping in the test network.
func (c *Connection) Host() *Host {
	return c.h
}

// Codec returns c's codec.
// This is primarily useful for testing.
func (c *Connection) Codec() gwire.MarshalCodec {
	return c.codec
}
