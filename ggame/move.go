package ggame

import (
	"fmt"

	"github.com/goban-engine/goban/gboard"
)

// MoveType discriminates the three kinds of move.
type MoveType uint8

const (
	// MoveTypeInvalid is the zero value; applying it is an error.
	MoveTypeInvalid MoveType = iota

	MoveTypePlace
	MoveTypePass
	MoveTypeResign
)

// Move is one player action.
// The acting color is not part of the move;
// it is always the state's current player.
type Move struct {
	Type MoveType `json:"type"`

	// Coord is only meaningful for MoveTypePlace.
	Coord gboard.Coord `json:"coord"`
}

// Place returns a stone placement at c.
func Place(c gboard.Coord) Move {
	return Move{Type: MoveTypePlace, Coord: c}
}

// Pass returns a pass move.
func Pass() Move {
	return Move{Type: MoveTypePass}
}

// Resign returns a resignation.
func Resign() Move {
	return Move{Type: MoveTypeResign}
}

func (m Move) String() string {
	switch m.Type {
	case MoveTypePlace:
		return fmt.Sprintf("place(%d,%d)", m.Coord.X, m.Coord.Y)
	case MoveTypePass:
		return "pass"
	case MoveTypeResign:
		return "resign"
	default:
		return "invalid"
	}
}

// Tag is an optional move annotation carried opaquely with a record,
// used by training tooling downstream of the core.
type Tag uint8

const (
	TagActivity   Tag = 0
	TagAvoidance  Tag = 1
	TagReactivity Tag = 2
)
