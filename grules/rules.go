// Package grules validates move legality:
// occupancy, self-capture, and the single-stone ko rule.
// It is pure board logic with no game or network state.
package grules

import (
	"errors"

	"github.com/goban-engine/goban/gboard"
)

// Rule violations returned by [Validator.CheckMove].
// These are always locally recoverable: the move is rejected
// and the board is left untouched.
var (
	ErrInvalidCoordinate = errors.New("coordinate outside the board")
	ErrOccupiedPosition  = errors.New("position already occupied")
	ErrSelfCapture       = errors.New("move would capture its own group")
	ErrKoViolation       = errors.New("move violates ko rule")
)

// Validator checks moves against a current board and the board
// as it stood before the previous move, which is what the ko rule needs.
type Validator struct {
	board    *gboard.Board
	previous *gboard.Board
}

// NewValidator returns a Validator over the given pair of boards.
// Neither board is modified by any Validator method.
func NewValidator(board, previous *gboard.Board) Validator {
	return Validator{board: board, previous: previous}
}

// CheckMove reports whether color may play at c.
//
// The ko rule implemented here is deliberately narrow:
// only a capture of exactly one stone that reproduces the board
// as of the previous move is forbidden.
// Multi-stone captures never trigger it.
// Self-capture is checked before ko, so a move that is both
// reports ErrSelfCapture.
func (v Validator) CheckMove(c gboard.Coord, color gboard.Color) error {
	if !c.Valid(v.board.Size()) {
		return ErrInvalidCoordinate
	}
	if _, occupied := v.board.Get(c); occupied {
		return ErrOccupiedPosition
	}

	scratch := v.board.Clone()
	scratch.Place(c, color)

	group := FindGroup(scratch, c)
	if Liberties(scratch, group) == 0 {
		// The new group has no liberties.
		// Legal only if it captures at least one adjacent opponent group.
		opponent := color.Opposite()
		willCapture := false
		for _, n := range v.board.AdjacentCoords(c) {
			nc, ok := v.board.Get(n)
			if !ok || nc != opponent {
				continue
			}
			if Liberties(scratch, FindGroup(scratch, n)) == 0 {
				willCapture = true
				break
			}
		}
		if !willCapture {
			return ErrSelfCapture
		}
	}

	if v.previous.Size() != scratch.Size() {
		return nil
	}

	var captured []gboard.Coord
	seen := make(map[gboard.Coord]bool)
	for _, n := range scratch.AdjacentCoords(c) {
		nc, ok := scratch.Get(n)
		if !ok || nc != color.Opposite() || seen[n] {
			continue
		}
		g := FindGroup(scratch, n)
		if Liberties(scratch, g) == 0 {
			for _, m := range g {
				seen[m] = true
			}
			captured = append(captured, g...)
		}
	}

	if len(captured) == 1 {
		afterCapture := scratch.Clone()
		for _, cc := range captured {
			afterCapture.Remove(cc)
		}
		if afterCapture.Equal(v.previous) {
			return ErrKoViolation
		}
	}

	return nil
}

// FindCaptures returns every opponent stone captured by the stone
// already placed at c: all adjacent opponent groups with zero liberties.
// It returns nil if c is empty.
func (v Validator) FindCaptures(c gboard.Coord) []gboard.Coord {
	color, ok := v.board.Get(c)
	if !ok {
		return nil
	}
	opponent := color.Opposite()

	var captures []gboard.Coord
	seen := make(map[gboard.Coord]bool)
	for _, n := range v.board.AdjacentCoords(c) {
		nc, ok := v.board.Get(n)
		if !ok || nc != opponent || seen[n] {
			continue
		}
		g := FindGroup(v.board, n)
		if Liberties(v.board, g) == 0 {
			for _, m := range g {
				seen[m] = true
			}
			captures = append(captures, g...)
		}
	}
	return captures
}

// FindGroup returns the maximal same-color group containing c,
// or nil if c is empty.
// The search is an iterative flood fill with an explicit work list,
// so it is safe on any board size.
func FindGroup(b *gboard.Board, c gboard.Coord) []gboard.Coord {
	target, ok := b.Get(c)
	if !ok {
		return nil
	}

	var group []gboard.Coord
	visited := make(map[gboard.Coord]bool)
	work := []gboard.Coord{c}

	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		group = append(group, cur)

		for _, n := range b.AdjacentCoords(cur) {
			nc, ok := b.Get(n)
			if ok && nc == target && !visited[n] {
				work = append(work, n)
			}
		}
	}

	return group
}

// Liberties counts the distinct empty intersections adjacent to
// any member of group.
func Liberties(b *gboard.Board, group []gboard.Coord) int {
	libs := make(map[gboard.Coord]bool)
	for _, c := range group {
		for _, n := range b.AdjacentCoords(c) {
			if _, occupied := b.Get(n); !occupied {
				libs[n] = true
			}
		}
	}
	return len(libs)
}
