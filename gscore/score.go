// Package gscore turns a finished game into a score breakdown
// that any replica can recompute and compare bit for bit.
//
// The territory rule is deliberately narrow: an empty region is
// territory only when it borders exactly one color and touches no
// board edge. Open-edge regions never score.
package gscore

import (
	"math"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/ggame"
)

// MethodKind discriminates the scoring method variants.
type MethodKind uint8

const (
	MethodTerritory MethodKind = iota
	MethodArea
	MethodResignation
	MethodTimeOut
)

// ScoringMethod selects how a finished game is scored.
// Resignation and TimeOut carry the winning color and
// short-circuit to a fixed margin.
type ScoringMethod struct {
	Kind   MethodKind   `json:"kind"`
	Winner gboard.Color `json:"winner,omitempty"`
}

func Territory() ScoringMethod { return ScoringMethod{Kind: MethodTerritory} }
func Area() ScoringMethod      { return ScoringMethod{Kind: MethodArea} }

func Resignation(winner gboard.Color) ScoringMethod {
	return ScoringMethod{Kind: MethodResignation, Winner: winner}
}

func TimeOut(winner gboard.Color) ScoringMethod {
	return ScoringMethod{Kind: MethodTimeOut, Winner: winner}
}

// ScoreProof is the full score breakdown for one finished game.
// Two replicas holding identical game states must compute
// identical proofs for the same komi, method, and dead stones.
type ScoreProof struct {
	// FinalScore is positive when Black leads,
	// negative when White leads.
	FinalScore int16 `json:"final_score"`

	TerritoryBlack uint16 `json:"territory_black"`
	TerritoryWhite uint16 `json:"territory_white"`

	CapturesBlack uint16 `json:"captures_black"`
	CapturesWhite uint16 `json:"captures_white"`

	Komi float64 `json:"komi"`

	Method ScoringMethod `json:"method"`
}

// Position is the slice of game state that scoring reads.
// *ggame.State satisfies it.
type Position interface {
	// Board returns a copy of the final board.
	Board() *gboard.Board

	// Captures returns cumulative captured-stone counts
	// for Black and White.
	Captures() (black, white int)
}

var _ Position = (*ggame.State)(nil)

// CalculateFinalScore scores a game.
//
// Dead stones are removed from a working copy of the board before
// territory is counted; the caller is responsible for the two
// players having agreed on the dead set. The final margin is
// rounded half away from zero.
func CalculateFinalScore(
	state Position,
	komi float64,
	method ScoringMethod,
	deadStones map[gboard.Coord]struct{},
) ScoreProof {
	capB, capW := state.Captures()

	proof := ScoreProof{
		CapturesBlack: uint16(capB),
		CapturesWhite: uint16(capW),
		Komi:          komi,
		Method:        method,
	}

	if method.Kind == MethodResignation || method.Kind == MethodTimeOut {
		if method.Winner == gboard.Black {
			proof.FinalScore = 100
		} else {
			proof.FinalScore = -100
		}
		return proof
	}

	board := state.Board()
	for c := range deadStones {
		board.Remove(c)
	}

	terrB, terrW := countTerritory(board)
	proof.TerritoryBlack = terrB
	proof.TerritoryWhite = terrW

	var stonesB, stonesW uint16
	for _, c := range board.Cells() {
		switch c {
		case gboard.Black:
			stonesB++
		case gboard.White:
			stonesW++
		}
	}

	var blackTotal, whiteTotal float64
	switch method.Kind {
	case MethodTerritory:
		blackTotal = float64(terrB) + float64(capB)
		whiteTotal = float64(terrW) + float64(capW) + komi
	case MethodArea:
		blackTotal = float64(terrB) + float64(stonesB)
		whiteTotal = float64(terrW) + float64(stonesW) + komi
	}

	proof.FinalScore = int16(math.Round(blackTotal - whiteTotal))
	return proof
}

// countTerritory flood-fills every maximal empty region and credits
// it to a color when that color is the region's only border and the
// region stays clear of every board edge.
func countTerritory(board *gboard.Board) (terrB, terrW uint16) {
	size := board.Size()
	seen := make(map[gboard.Coord]struct{})

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := gboard.Coord{X: x, Y: y}
			if _, ok := seen[c]; ok {
				continue
			}
			if col, _ := board.Get(c); col != gboard.None {
				continue
			}

			region, borders := regionAndBorders(board, c, seen)

			if len(borders) != 1 {
				continue
			}
			touchesEdge := false
			for rc := range region {
				if rc.X == 0 || rc.X == size-1 || rc.Y == 0 || rc.Y == size-1 {
					touchesEdge = true
					break
				}
			}
			if touchesEdge {
				continue
			}

			if _, ok := borders[gboard.Black]; ok {
				terrB += uint16(len(region))
			} else {
				terrW += uint16(len(region))
			}
		}
	}
	return terrB, terrW
}

// regionAndBorders walks one maximal empty region with an explicit
// work list, returning its coordinates and the set of stone colors
// bordering it. Visited points are recorded in seen so the caller
// never re-walks a region.
func regionAndBorders(
	board *gboard.Board,
	start gboard.Coord,
	seen map[gboard.Coord]struct{},
) (map[gboard.Coord]struct{}, map[gboard.Color]struct{}) {
	region := map[gboard.Coord]struct{}{start: {}}
	borders := make(map[gboard.Color]struct{})
	seen[start] = struct{}{}

	work := []gboard.Coord{start}
	for len(work) > 0 {
		c := work[len(work)-1]
		work = work[:len(work)-1]

		for _, n := range board.AdjacentCoords(c) {
			col, _ := board.Get(n)
			if col != gboard.None {
				borders[col] = struct{}{}
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			region[n] = struct{}{}
			work = append(work, n)
		}
	}
	return region, borders
}
