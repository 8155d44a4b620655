package gp2ptest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/gp2p"
	"github.com/goban-engine/goban/gwire"
	"github.com/goban-engine/goban/internal/gtest"
	"github.com/stretchr/testify/require"
)

// Network is a generalized interface for an in-process network for testing.
//
// Some p2p implementations, such as [LoopbackNetwork] are a first-class network implementation.
// Others may require extra code, such as libp2p requiring a "seed node"
// for other peers to join for discovery purposes.
type Network interface {
	// Open a connection.
	Connect(context.Context) (gp2p.Connection, error)

	// Block until the network has cleaned up.
	// Typically the Network has a lifecycle associated with a context,
	// so cancel that context to stop the network.
	Wait()

	// Stabilize blocks until the current set of connections are
	// aware of other live connections in this Network.
	//
	// Some Network implementations may take time to fully set up connections,
	// so this should be called after a batch of Connect or Disconnect calls.
	Stabilize(context.Context) error
}

// NetworkConstructor is used within [TestNetworkCompliance] to create a Network.
type NetworkConstructor func(context.Context, *slog.Logger) (Network, error)

// GenericNetwork is a convenience wrapper type that allows
// a concrete network implementation to have a Connect method
// returning the appropriate concrete connection type.
//
// That is to say, you may define:
//
//	type MyNetwork struct { /* ... */ }
//
//	func (n *MyNetwork) Connect() (*MyConn, error) { /* ... */ }
//
// and then use the GenericNetwork wrapper type,
// instead of rewriting your own wrapper
// or instead of defining your Connect() method to return
// a less specific gp2p.Connection value.
type GenericNetwork[C gp2p.Connection] struct {
	Network interface {
		Connect(context.Context) (C, error)

		Wait()

		Stabilize(context.Context) error
	}
}

func (n *GenericNetwork[C]) Connect(ctx context.Context) (gp2p.Connection, error) {
	return n.Network.Connect(ctx)
}

func (n *GenericNetwork[C]) Wait() {
	n.Network.Wait()
}

func (n *GenericNetwork[C]) Stabilize(ctx context.Context) error {
	return n.Network.Stabilize(ctx)
}

// chatMessage returns a chat message addressed to id.
func chatMessage(id gchain.GameID, body string) gwire.GameMessage {
	return gwire.GameMessage{
		Chat: &gwire.ChatMessage{
			GameID:    id,
			From:      "compliance",
			Message:   body,
			Timestamp: 1700000100,
		},
	}
}

// genesisBlobMessage returns a move blob message carrying
// the first move of a fresh game.
func genesisBlobMessage(t *testing.T, id gchain.GameID) gwire.GameMessage {
	t.Helper()

	s := ggame.NewState(9)
	rec := ggame.MoveRecord{
		Move:      ggame.Place(gboard.Coord{X: 2, Y: 3}),
		Timestamp: 1700000000,
		Sequence:  0,
	}
	require.NoError(t, s.ApplyMove(rec))

	blob := gchain.NewMoveBlob(id, rec, nil, s.Snapshot(), 0)
	return gwire.GameMessage{MoveBlob: &blob}
}

func TestNetworkCompliance(t *testing.T, newNet NetworkConstructor) {
	t.Run("child connections are closed on main context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log := gtest.NewLogger(t)

		net, err := newNet(ctx, log)
		require.NoError(t, err)
		defer net.Wait()
		defer cancel()

		conn1, err := net.Connect(ctx)
		require.NoError(t, err)
		conn2, err := net.Connect(ctx)
		require.NoError(t, err)

		net.Stabilize(ctx)

		// No need to stabilize this time.
		// But do ensure the conn channels are not closed.
		select {
		case <-conn1.Disconnected():
			t.Fatal("conn1 should not have started in a disconnected state")
		default:
			// Okay.
		}
		select {
		case <-conn2.Disconnected():
			t.Fatal("conn2 should not have started in a disconnected state")
		default:
			// Okay.
		}

		// Cancel the context; wait for the network to report completion.
		cancel()
		net.Wait()

		// Now both connections' Disconnected channel should be closed.
		select {
		case <-conn1.Disconnected():
			// Okay.
		default:
			t.Fatal("conn1 did not report disconnected after network shutdown")
		}
		select {
		case <-conn2.Disconnected():
			// Okay.
		default:
			t.Fatal("conn2 did not report disconnected after network shutdown")
		}
	})

	t.Run("broadcast reaches peers joined to the game", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log := gtest.NewLogger(t)

		net, err := newNet(ctx, log)
		require.NoError(t, err)
		defer net.Wait()
		defer cancel()

		conn1, err := net.Connect(ctx)
		require.NoError(t, err)
		conn2, err := net.Connect(ctx)
		require.NoError(t, err)

		gameID := gchain.NewGameID()

		require.NoError(t, conn1.JoinGame(ctx, gameID))
		require.NoError(t, conn2.JoinGame(ctx, gameID))

		handler1 := NewChannelGameHandler(1)
		conn1.SetGameHandler(ctx, handler1)
		handler2 := NewChannelGameHandler(1)
		conn2.SetGameHandler(ctx, handler2)

		require.NoError(t, net.Stabilize(ctx))

		msg := genesisBlobMessage(t, gameID)
		conn1.GameBroadcaster().OutgoingGameMessages() <- msg

		var got ReceivedGameMessage
		select {
		case got = <-handler2.Incoming():
			// Okay.
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for message on conn2")
		}
		require.NotEmpty(t, got.From)
		require.Equal(t, msg, got.Msg, "incoming message differed from outgoing")

		select {
		case got := <-handler1.Incoming():
			t.Fatalf("got message %v back on same connection as sender", got)
		case <-time.After(25 * time.Millisecond):
			// Okay.
		}
	})

	t.Run("broadcast after one connection disconnects", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log := gtest.NewLogger(t)

		net, err := newNet(ctx, log)
		require.NoError(t, err)
		defer net.Wait()
		defer cancel()

		conn1, err := net.Connect(ctx)
		require.NoError(t, err)
		conn2, err := net.Connect(ctx)
		require.NoError(t, err)
		conn3, err := net.Connect(ctx)
		require.NoError(t, err)

		gameID := gchain.NewGameID()

		require.NoError(t, conn1.JoinGame(ctx, gameID))
		require.NoError(t, conn2.JoinGame(ctx, gameID))
		require.NoError(t, conn3.JoinGame(ctx, gameID))

		handler1 := NewChannelGameHandler(1)
		conn1.SetGameHandler(ctx, handler1)
		handler2 := NewChannelGameHandler(1)
		conn2.SetGameHandler(ctx, handler2)
		handler3 := NewChannelGameHandler(1)
		conn3.SetGameHandler(ctx, handler3)

		require.NoError(t, net.Stabilize(ctx))

		msg1 := chatMessage(gameID, "first")
		conn1.GameBroadcaster().OutgoingGameMessages() <- msg1

		for _, h := range []*ChannelGameHandler{handler2, handler3} {
			select {
			case got := <-h.Incoming():
				require.Equal(t, msg1, got.Msg, "incoming message differed from outgoing")
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for first message")
			}
		}

		// Disconnect one connection, send a new message.
		conn3.Disconnect()

		msg2 := chatMessage(gameID, "second")
		conn2.GameBroadcaster().OutgoingGameMessages() <- msg2

		// New message visible on still-connected channel.
		select {
		case got := <-handler1.Incoming():
			require.Equal(t, msg2, got.Msg, "incoming message differed from outgoing")
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for second message")
		}

		// Disconnected handler didn't receive anything.
		select {
		case <-handler3.Incoming():
			t.Fatal("handler for disconnected connection should not have received message")
		case <-time.After(25 * time.Millisecond):
			// Okay.
		}
	})

	t.Run("messages stay within their game's topic", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log := gtest.NewLogger(t)

		net, err := newNet(ctx, log)
		require.NoError(t, err)
		defer net.Wait()
		defer cancel()

		conn1, err := net.Connect(ctx)
		require.NoError(t, err)
		conn2, err := net.Connect(ctx)
		require.NoError(t, err)
		conn3, err := net.Connect(ctx)
		require.NoError(t, err)

		gameA := gchain.NewGameID()
		gameB := gchain.NewGameID()

		require.NoError(t, conn1.JoinGame(ctx, gameA))
		require.NoError(t, conn2.JoinGame(ctx, gameA))
		require.NoError(t, conn3.JoinGame(ctx, gameB))

		handler2 := NewChannelGameHandler(1)
		conn2.SetGameHandler(ctx, handler2)
		handler3 := NewChannelGameHandler(1)
		conn3.SetGameHandler(ctx, handler3)

		require.NoError(t, net.Stabilize(ctx))

		msg := chatMessage(gameA, "for game A only")
		conn1.GameBroadcaster().OutgoingGameMessages() <- msg

		select {
		case got := <-handler2.Incoming():
			require.Equal(t, msg, got.Msg, "incoming message differed from outgoing")
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for message on conn2")
		}

		select {
		case got := <-handler3.Incoming():
			t.Fatalf("conn3 is not in game A but received message %v", got)
		case <-time.After(25 * time.Millisecond):
			// Okay.
		}
	})

	t.Run("leaving a game stops delivery", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log := gtest.NewLogger(t)

		net, err := newNet(ctx, log)
		require.NoError(t, err)
		defer net.Wait()
		defer cancel()

		conn1, err := net.Connect(ctx)
		require.NoError(t, err)
		conn2, err := net.Connect(ctx)
		require.NoError(t, err)

		gameID := gchain.NewGameID()

		require.NoError(t, conn1.JoinGame(ctx, gameID))
		require.NoError(t, conn2.JoinGame(ctx, gameID))

		handler2 := NewChannelGameHandler(1)
		conn2.SetGameHandler(ctx, handler2)

		require.NoError(t, net.Stabilize(ctx))

		msg1 := chatMessage(gameID, "before leave")
		conn1.GameBroadcaster().OutgoingGameMessages() <- msg1

		select {
		case got := <-handler2.Incoming():
			require.Equal(t, msg1, got.Msg, "incoming message differed from outgoing")
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for message before leave")
		}

		require.NoError(t, conn2.LeaveGame(ctx, gameID))

		msg2 := chatMessage(gameID, "after leave")
		conn1.GameBroadcaster().OutgoingGameMessages() <- msg2

		select {
		case got := <-handler2.Incoming():
			t.Fatalf("received message %v for a game that was left", got)
		case <-time.After(100 * time.Millisecond):
			// Okay.
		}
	})
}
