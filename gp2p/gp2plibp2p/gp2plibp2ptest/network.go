package gp2plibp2ptest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goban-engine/goban/gp2p/gp2plibp2p"
	"github.com/goban-engine/goban/gwire"
	"github.com/goban-engine/goban/internal/gtest"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
)

// Network is an in-process libp2p network for testing.
//
// Peers cannot discover each other from nothing,
// so the network runs one extra "seed" host
// that every connection dials on creation.
type Network struct {
	log *slog.Logger

	codec gwire.MarshalCodec

	seed *gp2plibp2p.Host

	connWatchWg sync.WaitGroup

	mu    sync.Mutex
	peers []*gp2plibp2p.Connection
}

func NewNetwork(ctx context.Context, log *slog.Logger, codec gwire.MarshalCodec) (*Network, error) {
	seed, err := gp2plibp2p.NewHost(ctx, newHostOptions())
	if err != nil {
		return nil, err
	}

	n := &Network{
		log: log,

		codec: codec,

		seed: seed,
	}

	n.connWatchWg.Add(1)
	go n.disconnectAllOnContextClose(ctx)

	return n, nil
}

func newHostOptions() gp2plibp2p.HostOptions {
	gossipSubParams := pubsub.DefaultGossipSubParams()

	// Aggressive heartbeat values so the gossip mesh forms quickly.
	// With the defaults, a fresh pair of hosts can take close to a second
	// to begin propagating, which makes short tests flaky
	// under the race detector.
	gossipSubParams.HeartbeatInitialDelay = 8 * time.Millisecond
	gossipSubParams.HeartbeatInterval = 45 * time.Millisecond
	gossipSubParams.DirectConnectInitialDelay = 11 * time.Millisecond

	return gp2plibp2p.HostOptions{
		Options: []libp2p.Option{
			// Localhost TCP only. Keeping QUIC out of the picture
			// also keeps stack traces much shorter.
			libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
			libp2p.Transport(tcp.NewTCPTransport),

			// Allow localhost connections for test.
			libp2p.ForceReachabilityPublic(),
		},

		PubSubOptions: []pubsub.Option{
			pubsub.WithGossipSubParams(gossipSubParams),
		},
	}
}

func (n *Network) disconnectAllOnContextClose(ctx context.Context) {
	defer n.connWatchWg.Done()

	<-ctx.Done()

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.peers {
		c.Disconnect()
	}

	if err := n.seed.Close(); err != nil {
		n.log.Info("Error closing network's seed node", "err", err)
	}
}

func (n *Network) Connect(ctx context.Context) (*gp2plibp2p.Connection, error) {
	h, err := gp2plibp2p.NewHost(ctx, newHostOptions())
	if err != nil {
		return nil, err
	}

	seedHost := n.seed.Libp2pHost()
	ai := peer.AddrInfo{
		ID:    seedHost.ID(),
		Addrs: seedHost.Addrs(),
	}
	if err := h.Libp2pHost().Connect(ctx, ai); err != nil {
		return nil, err
	}

	connLog := n.log.With("conn_id", h.Libp2pHost().ID().ShortString())
	conn, err := gp2plibp2p.NewConnection(ctx, connLog, h, n.codec)
	if err != nil {
		return nil, err
	}

	n.connWatchWg.Add(1)
	go n.watchConnDisconnect(conn.Disconnected())

	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers = append(n.peers, conn)
	return conn, nil
}

// watchConnDisconnect runs in its own goroutine and blocks
// until ch is closed.
//
// This goroutine is started in n.Connect.
func (n *Network) watchConnDisconnect(ch <-chan struct{}) {
	defer n.connWatchWg.Done()

	<-ch
}

// Wait blocks until the network's context has been canceled
// and all peers have shut down.
//
// Once Wait is called, it is an error to continue calling other methods on n.
func (n *Network) Wait() {
	n.connWatchWg.Wait()
	if err := n.seed.Close(); err != nil {
		n.log.Info("Error closing seed host", "err", err)
	}
}

// Stabilize blocks until all peers in the network
// are aware of each other.
//
// This is useful for tests, to ensure that the network is stable
// before interactions begin.
func (n *Network) Stabilize(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	// Bound the wait so a mesh that never converges
	// fails the calling test promptly,
	// rather than holding it until the package deadline.
	ctx, cancel := context.WithTimeout(ctx, time.Duration(gtest.ScaleMs(10_000)))
	defer cancel()

	// Every peer should be aware of the seed, the other peers, AND itself.
	want := len(n.peers) + 1

	for ctx.Err() == nil {
		// Seed is handled as its own case, separate from main peers.
		if n.seed.Libp2pHost().Peerstore().Peers().Len() != want {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		allVisible := true
		for _, p := range n.peers {
			if p.Host().Libp2pHost().Peerstore().Peers().Len() != want {
				allVisible = false
				break
			}
		}

		if !allVisible {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		// Peerstore visibility alone isn't sufficient;
		// gossipsub still has background setup in flight
		// with nothing obvious to synchronize on.
		// A short settle delay has been reliable so far.
		time.Sleep(100 * time.Millisecond)
		return nil
	}

	return ctx.Err()
}
