package gchannel_test

import (
	"context"
	"testing"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/gchannel"
	"github.com/goban-engine/goban/gexchange"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/internal/gtest"
	"github.com/stretchr/testify/require"
)

func TestRegistry_routesByGameID(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fxA := newFixture(t, ctx, fixtureConfig{})
	fxB := newFixture(t, ctx, fixtureConfig{})

	reg := gchannel.NewRegistry(gtest.NewLogger(t))
	reg.Add(fxA.Ch)
	reg.Add(fxB.Ch)

	blobs := buildRemoteBlobs(t, fxA.GameID, []ggame.Move{
		ggame.Place(gboard.Coord{X: 2, Y: 3}),
	})

	fb := reg.HandleGameMessage(ctx, "peer-1", blobMsg(blobs[0]))
	require.Equal(t, gexchange.FeedbackAccepted, fb)

	// Only game A advanced.
	stA, ok := fxA.Ch.LatestState(ctx)
	require.True(t, ok)
	require.Equal(t, 1, stA.MoveCount())

	stB, ok := fxB.Ch.LatestState(ctx)
	require.True(t, ok)
	require.Equal(t, 0, stB.MoveCount())
	gtest.NotSending(t, fxB.Out)
}

func TestRegistry_unknownGameIgnored(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := gchannel.NewRegistry(gtest.NewLogger(t))

	fx := newFixture(t, ctx, fixtureConfig{})
	blobs := buildRemoteBlobs(t, fx.GameID, []ggame.Move{
		ggame.Place(gboard.Coord{X: 2, Y: 3}),
	})

	// fx's channel was never added, so its game is unknown.
	fb := reg.HandleGameMessage(ctx, "peer-1", blobMsg(blobs[0]))
	require.Equal(t, gexchange.FeedbackIgnored, fb)
	gtest.NotSending(t, fx.Out)
}

func TestRegistry_removeStopsRouting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := newFixture(t, ctx, fixtureConfig{})

	reg := gchannel.NewRegistry(gtest.NewLogger(t))
	reg.Add(fx.Ch)
	reg.Remove(fx.GameID)

	_, ok := reg.Get(fx.GameID)
	require.False(t, ok)

	blobs := buildRemoteBlobs(t, fx.GameID, []ggame.Move{
		ggame.Place(gboard.Coord{X: 2, Y: 3}),
	})
	fb := reg.HandleGameMessage(ctx, "peer-1", blobMsg(blobs[0]))
	require.Equal(t, gexchange.FeedbackIgnored, fb)

	// The channel itself is still running.
	require.NoError(t, fx.Ch.SubmitMove(ctx, ggame.Place(gboard.Coord{X: 4, Y: 4})))
	msg := gtest.ReceiveSoon(t, fx.Out)
	require.NotNil(t, msg.MoveBlob)
}
