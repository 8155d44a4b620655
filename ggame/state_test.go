package ggame_test

import (
	"testing"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/grules"
	"github.com/stretchr/testify/require"
)

func place(x, y int) ggame.Move {
	return ggame.Place(gboard.Coord{X: x, Y: y})
}

func TestState_AlternatingTurns(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	require.Equal(t, gboard.Black, s.CurrentPlayer())

	require.NoError(t, s.Apply(place(2, 2)))
	require.Equal(t, gboard.White, s.CurrentPlayer())

	require.NoError(t, s.Apply(place(6, 6)))
	require.Equal(t, gboard.Black, s.CurrentPlayer())

	b := s.Board()
	c, ok := b.Get(gboard.Coord{X: 2, Y: 2})
	require.True(t, ok)
	require.Equal(t, gboard.Black, c)
	c, ok = b.Get(gboard.Coord{X: 6, Y: 6})
	require.True(t, ok)
	require.Equal(t, gboard.White, c)
}

func TestState_RejectedMoveLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	require.NoError(t, s.Apply(place(4, 4)))

	before := s.Clone()

	err := s.Apply(place(4, 4))
	require.ErrorIs(t, err, grules.ErrOccupiedPosition)

	require.True(t, s.Equal(before))
	require.Equal(t, gboard.White, s.CurrentPlayer())
}

func TestState_CaptureUpdatesCounters(t *testing.T) {
	t.Parallel()

	// White stone on the corner point (0,0), Black surrounds it.
	s := ggame.NewState(9)
	require.NoError(t, s.Apply(place(1, 0))) // B
	require.NoError(t, s.Apply(place(0, 0))) // W
	require.NoError(t, s.Apply(place(0, 1))) // B captures

	black, white := s.Captures()
	require.Equal(t, 1, black)
	require.Zero(t, white)

	// The captured point reads as empty: no stone present.
	b := s.Board()
	c, ok := b.Get(gboard.Coord{X: 0, Y: 0})
	require.False(t, ok)
	require.Equal(t, gboard.None, c)
}

func TestState_TwoPassesEndGame(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	require.NoError(t, s.Apply(place(3, 3)))

	require.NoError(t, s.Apply(ggame.Pass()))
	require.False(t, s.IsGameOver())

	require.NoError(t, s.Apply(ggame.Pass()))
	require.True(t, s.IsGameOver())

	err := s.Apply(place(5, 5))
	require.ErrorIs(t, err, ggame.ErrGameOver)
}

func TestState_PassResetOnPlacement(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	require.NoError(t, s.Apply(ggame.Pass()))
	require.NoError(t, s.Apply(place(3, 3)))
	require.Zero(t, s.PassCount())

	require.NoError(t, s.Apply(ggame.Pass()))
	require.NoError(t, s.Apply(ggame.Pass()))
	require.True(t, s.IsGameOver())
}

func TestState_Resignation(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	require.NoError(t, s.Apply(place(2, 2)))

	// White resigns.
	require.NoError(t, s.Apply(ggame.Resign()))
	require.True(t, s.IsGameOver())

	res, ok := s.Result()
	require.True(t, ok)
	require.True(t, res.Resignation)
	require.Equal(t, gboard.Black, res.Winner)

	require.ErrorIs(t, s.Apply(ggame.Pass()), ggame.ErrGameOver)
}

func TestState_ReplayReconstructsIdenticalState(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	seq := []ggame.Move{
		place(2, 2), place(6, 6),
		place(3, 3), place(5, 5),
		ggame.Pass(), place(4, 4),
	}
	for _, mv := range seq {
		require.NoError(t, s.Apply(mv))
	}

	replayed := ggame.NewState(9)
	for _, rec := range s.Moves() {
		require.NoError(t, replayed.ApplyMove(rec))
	}

	require.True(t, s.Equal(replayed))
	require.Equal(t, s.PositionHash(), replayed.PositionHash())
	require.Equal(t, s.StateHash(), replayed.StateHash())
}

func TestState_MoveOrderSensitivity(t *testing.T) {
	t.Parallel()

	// Same stone set reached in two different orders: the final
	// positions hash equal, but the states are distinct because the
	// histories differ. Only Black's placement order varies, so turn
	// parity assigns each point the same color in both games.
	a := ggame.NewState(9)
	require.NoError(t, a.Apply(place(2, 3))) // B
	require.NoError(t, a.Apply(place(3, 3))) // W
	require.NoError(t, a.Apply(place(2, 4))) // B

	b := ggame.NewState(9)
	require.NoError(t, b.Apply(place(2, 4))) // B
	require.NoError(t, b.Apply(place(3, 3))) // W
	require.NoError(t, b.Apply(place(2, 3))) // B

	require.Equal(t, a.PositionHash(), b.PositionHash())
	require.NotEqual(t, a.StateHash(), b.StateHash())
	require.False(t, a.Equal(b))
}

func TestState_KoThroughGamePlay(t *testing.T) {
	t.Parallel()

	// Classic ko shape in the middle of a 9x9 board.
	//
	//   . B W .
	//   B W . W
	//   . B W .
	//
	// White captures the lone Black stone, then Black may not
	// immediately recapture at the vacated point.
	s := ggame.NewState(9)
	setup := []ggame.Move{
		place(2, 1), place(3, 1), // B W (top row)
		place(1, 2), place(4, 2), // B W (middle flanks)
		place(2, 3), place(3, 3), // B W (bottom row)
		place(3, 2), // B: the ko stone at the center right
	}
	for _, mv := range setup {
		require.NoError(t, s.Apply(mv))
	}

	// White captures the ko stone by playing (2,2).
	require.NoError(t, s.Apply(place(2, 2)))
	black, white := s.Captures()
	require.Zero(t, black)
	require.Equal(t, 1, white)

	// Immediate recapture is a ko violation.
	require.ErrorIs(t, s.Apply(place(3, 2)), grules.ErrKoViolation)

	// After a pair of moves elsewhere, the recapture is legal.
	require.NoError(t, s.Apply(place(7, 7)))
	require.NoError(t, s.Apply(place(8, 8)))
	require.NoError(t, s.Apply(place(3, 2)))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	for _, mv := range []ggame.Move{
		place(1, 0), place(0, 0), place(0, 1), // Black captures (0,0)
		ggame.Pass(), place(5, 5),
	} {
		require.NoError(t, s.Apply(mv))
	}

	snap := s.Snapshot()
	restored, err := ggame.StateFromSnapshot(snap)
	require.NoError(t, err)
	require.True(t, s.Equal(restored))
}

func TestSnapshot_TamperedCellsRejected(t *testing.T) {
	t.Parallel()

	s := ggame.NewState(9)
	require.NoError(t, s.Apply(place(4, 4)))

	snap := s.Snapshot()
	snap.Cells[0] = uint8(gboard.White)

	_, err := ggame.StateFromSnapshot(snap)
	require.Error(t, err)
}
