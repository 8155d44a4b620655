package gp2ptest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/gp2p"
	"github.com/goban-engine/goban/gwire"
)

// LoopbackNetwork is a network used for testing,
// where messages never leave the current process.
//
// Messages are delivered as already-decoded values,
// so the loopback network exercises dispatch and handler semantics
// without involving any codec.
type LoopbackNetwork struct {
	// The network's logger isn't actively used,
	// as that would typically be high noise.
	// But it's available and wired up if an individual test needs network debugging.
	// Just drop in your own log calls.
	log *slog.Logger

	newConnRequests chan newConnRequest
	rmConn          chan *LoopbackConnection

	incomingMessages chan loopbackMessage

	done chan struct{}
}

type newConnRequest struct {
	conn     *LoopbackConnection
	accepted chan struct{}
}

// NewLoopbackNetwork returns an initialized LoopbackNetwork.
// Cancel the context to clean up resources.
func NewLoopbackNetwork(ctx context.Context, log *slog.Logger) *LoopbackNetwork {
	n := &LoopbackNetwork{
		log: log.With("net_idx", atomic.AddUint64(&loopbackNetworkIdxCounter, 1)),

		newConnRequests: make(chan newConnRequest, 1),
		rmConn:          make(chan *LoopbackConnection, 1),

		incomingMessages: make(chan loopbackMessage, 1),

		done: make(chan struct{}),
	}
	go n.background(ctx)
	return n
}

// Wait blocks until the network is fully stopped.
// To stop the network, cancel the context used in [NewLoopbackNetwork].
func (n *LoopbackNetwork) Wait() {
	<-n.done
}

func (n *LoopbackNetwork) background(ctx context.Context) {
	defer close(n.done)

	var conns []*LoopbackConnection

	for {
		select {
		case <-ctx.Done():
			n.log.Debug("Network closing")
			// Close all outstanding connections.
			for _, c := range conns {
				c.disconnect()
			}
			for _, c := range conns {
				<-c.Disconnected()
			}
			return
		case req := <-n.newConnRequests:
			// Add a new connection.
			conns = append(conns, req.conn)
			n.log.Debug("Network added connection", "conn_idx", req.conn.idx)
			close(req.accepted)
		case c := <-n.rmConn:
			// Remove an existing connection if found.
			idx := slices.Index(conns, c)
			if idx >= 0 {
				conns = slices.Delete(conns, idx, idx+1)
			}
		case m := <-n.incomingMessages:
			n.log.Debug("Received incoming message", "seq", m.seq)
			// Send the message to everyone else on the network.
			n.dispatchMessage(ctx, m, conns)
		}
	}
}

var (
	// Atomic counter to distinguish networks.
	loopbackNetworkIdxCounter uint64

	// Atomic counter for connection indices,
	// so that when logging, different connections can be distinguished.
	loopbackConnIdxCounter uint64

	// Atomic counter for packet sequences.
	// Probably only useful for debugging.
	loopbackSequenceCounter uint64
)

func nextLoopbackSeq() uint64 {
	return atomic.AddUint64(&loopbackSequenceCounter, 1)
}

// Connect returns a new connection to the network.
func (n *LoopbackNetwork) Connect(ctx context.Context) (*LoopbackConnection, error) {
	idx := atomic.AddUint64(&loopbackConnIdxCounter, 1)

	conn := newLoopbackConnection(n.log.With("conn_idx", idx), n, idx)
	req := newConnRequest{
		conn:     conn,
		accepted: make(chan struct{}),
	}
	select {
	case n.newConnRequests <- req:
		// Okay.
	case <-ctx.Done():
		return nil, fmt.Errorf("context finished while creating connection to network: %w", context.Cause(ctx))
	}

	select {
	case <-req.accepted:
		// Okay.
	case <-ctx.Done():
		return nil, fmt.Errorf("context finished while awaiting network connection acknowledgement: %w", context.Cause(ctx))
	}

	return conn, nil
}

// dispatchMessage sends the message to every connection on the network except the sender.
// Each receiving connection independently filters on its joined games,
// matching topic subscription semantics in a real pubsub network.
func (n *LoopbackNetwork) dispatchMessage(ctx context.Context, m loopbackMessage, conns []*LoopbackConnection) {
	for _, c := range conns {
		if m.sender == c {
			// Don't send back to self.
			continue
		}

		select {
		case c.incomingMessages <- m:
			n.log.Debug("Dispatched message", "conn_idx", c.idx, "seq", m.seq, "game_id", m.msg.GameID())
			// Okay.
		case <-ctx.Done():
			// Respect early quit.
			return
		}
	}
}

// The loopback network does not require any stabilization steps,
// so Stabilize is a no-op.
func (n *LoopbackNetwork) Stabilize(context.Context) error {
	return nil
}

// LoopbackConnection is a connection to a LoopbackNetwork.
type LoopbackConnection struct {
	log *slog.Logger

	net *LoopbackNetwork
	idx uint64

	peerID gp2p.PeerID

	incomingMessages chan loopbackMessage
	outgoingMessages chan gwire.GameMessage

	joinRequests, leaveRequests chan joinGameRequest

	setGameHandlerRequests chan setGameHandlerRequest

	handleFuncs chan func()

	disconnectOnce     sync.Once
	quit, disconnected chan struct{}
	wg                 sync.WaitGroup
}

func newLoopbackConnection(log *slog.Logger, n *LoopbackNetwork, idx uint64) *LoopbackConnection {
	c := &LoopbackConnection{
		log: log,

		net: n,
		idx: idx,

		peerID: gp2p.PeerID(fmt.Sprintf("loopback-%d", idx)),

		incomingMessages: make(chan loopbackMessage, 1),
		outgoingMessages: make(chan gwire.GameMessage, 1),

		joinRequests:  make(chan joinGameRequest, 1),
		leaveRequests: make(chan joinGameRequest, 1),

		setGameHandlerRequests: make(chan setGameHandlerRequest, 1),

		handleFuncs: make(chan func(), 4), // Slightly more buffered.

		quit:         make(chan struct{}),
		disconnected: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.background()

	for i := 0; i < cap(c.handleFuncs); i++ {
		c.wg.Add(1)
		go c.handleAsync()
	}

	return c
}

func (c *LoopbackConnection) background() {
	defer c.wg.Done()

	var h gp2p.GameMessageHandler
	joined := make(map[gchain.GameID]struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.quit
		cancel()
	}()

	for {
		select {
		case <-c.quit:
			c.log.Debug("Connection closing")
			close(c.handleFuncs)
			return
		case msg := <-c.outgoingMessages:
			m := loopbackMessage{
				sender: c,
				msg:    msg,
				seq:    nextLoopbackSeq(),
			}
			c.log.Debug(
				"Sending message out to network",
				"game_id", msg.GameID(),
				"seq", m.seq,
			)
			select {
			case c.net.incomingMessages <- m:
			case <-c.quit:
			}
		case m := <-c.incomingMessages:
			if _, ok := joined[m.msg.GameID()]; !ok {
				// Not subscribed to this game's topic.
				continue
			}
			if h != nil {
				from := m.sender.peerID
				msg := m.msg
				select {
				case c.handleFuncs <- func() {
					// TODO: respect feedback value for peer scoring.
					_ = h.HandleGameMessage(ctx, from, msg)
				}:
				case <-c.quit:
				}
			}
		case req := <-c.joinRequests:
			joined[req.ID] = struct{}{}
			close(req.Ready)
		case req := <-c.leaveRequests:
			delete(joined, req.ID)
			close(req.Ready)
		case req := <-c.setGameHandlerRequests:
			h = req.Handler
			close(req.Ready)
		}
	}
}

func (c *LoopbackConnection) handleAsync() {
	defer c.wg.Done()

	for fn := range c.handleFuncs {
		fn()
	}
}

// PeerID returns the identity other connections observe
// as the sender of this connection's messages.
func (c *LoopbackConnection) PeerID() gp2p.PeerID {
	return c.peerID
}

// JoinGame subscribes the connection to one game's messages.
func (c *LoopbackConnection) JoinGame(ctx context.Context, id gchain.GameID) error {
	req := joinGameRequest{ID: id, Ready: make(chan struct{})}
	select {
	case c.joinRequests <- req:
	case <-c.quit:
		return fmt.Errorf("connection disconnected before join request sent")
	case <-ctx.Done():
		return fmt.Errorf("context finished while joining game: %w", context.Cause(ctx))
	}

	select {
	case <-req.Ready:
		return nil
	case <-c.quit:
		return fmt.Errorf("connection disconnected before join request handled")
	case <-ctx.Done():
		return fmt.Errorf("context finished while awaiting join acknowledgement: %w", context.Cause(ctx))
	}
}

// LeaveGame unsubscribes the connection from one game's messages.
func (c *LoopbackConnection) LeaveGame(ctx context.Context, id gchain.GameID) error {
	req := joinGameRequest{ID: id, Ready: make(chan struct{})}
	select {
	case c.leaveRequests <- req:
	case <-c.quit:
		return fmt.Errorf("connection disconnected before leave request sent")
	case <-ctx.Done():
		return fmt.Errorf("context finished while leaving game: %w", context.Cause(ctx))
	}

	select {
	case <-req.Ready:
		return nil
	case <-c.quit:
		return fmt.Errorf("connection disconnected before leave request handled")
	case <-ctx.Done():
		return fmt.Errorf("context finished while awaiting leave acknowledgement: %w", context.Cause(ctx))
	}
}

// SetGameHandler sets the handler for messages arriving
// on this connection's joined games.
func (c *LoopbackConnection) SetGameHandler(ctx context.Context, h gp2p.GameMessageHandler) {
	req := setGameHandlerRequest{
		Handler: h,
		Ready:   make(chan struct{}),
	}

	select {
	case c.setGameHandlerRequests <- req:
	case <-c.quit:
		return
	case <-ctx.Done():
		return
	}

	select {
	case <-req.Ready:
	case <-c.quit:
	case <-ctx.Done():
	}
}

// Disconnect removes this connection from the network,
// and closes all of the connection's channels.
func (c *LoopbackConnection) Disconnect() {
	c.net.rmConn <- c
	c.disconnect()
}

func (c *LoopbackConnection) disconnect() {
	c.disconnectOnce.Do(func() {
		close(c.quit)
		c.wg.Wait()
		close(c.disconnected)
	})
}

// Disconnected returns a channel that is closed once Disconnect completes.
func (c *LoopbackConnection) Disconnected() <-chan struct{} {
	return c.disconnected
}

// GameBroadcaster returns c, which already satisfies the GameBroadcaster interface.
func (c *LoopbackConnection) GameBroadcaster() gp2p.GameBroadcaster {
	return c
}

// OutgoingGameMessages is a channel that accepts game messages
// to be broadcast to the rest of the network.
func (c *LoopbackConnection) OutgoingGameMessages() chan<- gwire.GameMessage {
	return c.outgoingMessages
}

type loopbackMessage struct {
	sender *LoopbackConnection
	msg    gwire.GameMessage
	seq    uint64
}

type joinGameRequest struct {
	ID    gchain.GameID
	Ready chan struct{}
}

type setGameHandlerRequest struct {
	Handler gp2p.GameMessageHandler
	Ready   chan struct{}
}
