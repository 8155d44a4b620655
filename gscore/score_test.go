package gscore_test

import (
	"testing"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/gscore"
	"github.com/stretchr/testify/require"
)

// position is a hand-built final position for scoring,
// bypassing move-by-move play.
type position struct {
	board         *gboard.Board
	capturesBlack int
	capturesWhite int
}

func (p position) Board() *gboard.Board { return p.board.Clone() }

func (p position) Captures() (int, int) { return p.capturesBlack, p.capturesWhite }

type stone struct {
	x, y  int
	color gboard.Color
}

func makePosition(t *testing.T, size int, stones []stone) position {
	t.Helper()

	b := gboard.New(size)
	for _, s := range stones {
		require.True(t, b.SetCell(gboard.Coord{X: s.x, Y: s.y}, s.color))
	}
	return position{board: b}
}

// blackEye is a 3x3 Black wall on a 5x5 board enclosing (1,1).
var blackEye = []stone{
	{0, 0, gboard.Black}, {1, 0, gboard.Black}, {2, 0, gboard.Black},
	{0, 1, gboard.Black}, {2, 1, gboard.Black},
	{0, 2, gboard.Black}, {1, 2, gboard.Black}, {2, 2, gboard.Black},
}

func TestScore_EmptyBoardTerritory(t *testing.T) {
	t.Parallel()

	state := ggame.NewState(9)
	proof := gscore.CalculateFinalScore(state, 6.5, gscore.Territory(), nil)

	require.Zero(t, proof.TerritoryBlack)
	require.Zero(t, proof.TerritoryWhite)
	require.Zero(t, proof.CapturesBlack)
	require.Zero(t, proof.CapturesWhite)

	// 0 - 6.5 rounds away from zero.
	require.Equal(t, int16(-7), proof.FinalScore)
}

func TestScore_SimpleTerritory(t *testing.T) {
	t.Parallel()

	pos := makePosition(t, 5, blackEye)
	proof := gscore.CalculateFinalScore(pos, 6.5, gscore.Territory(), nil)

	require.Equal(t, uint16(1), proof.TerritoryBlack)
	require.Zero(t, proof.TerritoryWhite)

	// 1 - 6.5 = -5.5 rounds away from zero.
	require.Equal(t, int16(-6), proof.FinalScore)
}

func TestScore_AreaScoring(t *testing.T) {
	t.Parallel()

	pos := makePosition(t, 5, blackEye)
	proof := gscore.CalculateFinalScore(pos, 6.5, gscore.Area(), nil)

	// 8 stones + 1 territory - 6.5 = 2.5 rounds to 3.
	require.Equal(t, uint16(1), proof.TerritoryBlack)
	require.Equal(t, int16(3), proof.FinalScore)
}

func TestScore_DeadStonesRemovedBeforeCounting(t *testing.T) {
	t.Parallel()

	stones := append([]stone{{1, 1, gboard.White}}, blackEye...)
	pos := makePosition(t, 5, stones)

	dead := map[gboard.Coord]struct{}{{X: 1, Y: 1}: {}}
	proof := gscore.CalculateFinalScore(pos, 6.5, gscore.Territory(), dead)

	require.Equal(t, uint16(1), proof.TerritoryBlack)
	require.Equal(t, int16(-6), proof.FinalScore)

	// Without the dead marking the eye is occupied and scores nothing.
	alive := gscore.CalculateFinalScore(pos, 6.5, gscore.Territory(), nil)
	require.Zero(t, alive.TerritoryBlack)
	require.Equal(t, int16(-7), alive.FinalScore)
}

func TestScore_EdgeRegionsNeverScore(t *testing.T) {
	t.Parallel()

	// White walls off the column x=4; the enclosed empty points
	// (4,1),(4,3),(4,4)... touch the board edge, so they score zero.
	stones := append([]stone{
		{3, 0, gboard.White}, {4, 0, gboard.White},
		{3, 1, gboard.White},
		{3, 2, gboard.White}, {4, 2, gboard.White},
	}, blackEye...)
	pos := makePosition(t, 5, stones)

	proof := gscore.CalculateFinalScore(pos, 6.5, gscore.Territory(), nil)

	require.Equal(t, uint16(1), proof.TerritoryBlack)
	require.Zero(t, proof.TerritoryWhite)
}

func TestScore_MixedBorderRegionsNeverScore(t *testing.T) {
	t.Parallel()

	// A lone interior empty point bordered by both colors.
	pos := makePosition(t, 5, []stone{
		{2, 1, gboard.Black},
		{2, 3, gboard.White},
		{1, 2, gboard.Black},
		{3, 2, gboard.White},
	})

	proof := gscore.CalculateFinalScore(pos, 6.5, gscore.Territory(), nil)
	require.Zero(t, proof.TerritoryBlack)
	require.Zero(t, proof.TerritoryWhite)
}

func TestScore_ResignationShortCircuits(t *testing.T) {
	t.Parallel()

	state := ggame.NewState(9)

	proof := gscore.CalculateFinalScore(state, 6.5, gscore.Resignation(gboard.Black), nil)
	require.Equal(t, int16(100), proof.FinalScore)
	require.Equal(t, gscore.Resignation(gboard.Black), proof.Method)
	require.Zero(t, proof.TerritoryBlack)
	require.Zero(t, proof.TerritoryWhite)

	proof = gscore.CalculateFinalScore(state, 6.5, gscore.Resignation(gboard.White), nil)
	require.Equal(t, int16(-100), proof.FinalScore)

	proof = gscore.CalculateFinalScore(state, 6.5, gscore.TimeOut(gboard.White), nil)
	require.Equal(t, int16(-100), proof.FinalScore)
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()

	a := makePosition(t, 5, blackEye)
	b := makePosition(t, 5, blackEye)

	pa := gscore.CalculateFinalScore(a, 6.5, gscore.Territory(), nil)
	pb := gscore.CalculateFinalScore(b, 6.5, gscore.Territory(), nil)
	require.Equal(t, pa, pb)
}

func TestScore_CapturesCountUnderTerritory(t *testing.T) {
	t.Parallel()

	pos := makePosition(t, 5, blackEye)
	pos.capturesBlack = 3
	pos.capturesWhite = 1

	proof := gscore.CalculateFinalScore(pos, 6.5, gscore.Territory(), nil)
	require.Equal(t, uint16(3), proof.CapturesBlack)
	require.Equal(t, uint16(1), proof.CapturesWhite)

	// (1 + 3) - (0 + 1 + 6.5) = -3.5 rounds to -4.
	require.Equal(t, int16(-4), proof.FinalScore)
}
