// Package ggame owns the state of one game:
// the board, the ordered move history with metadata,
// turn and capture tracking, and game-over detection.
//
// A State is mutated only through ApplyMove.
// That single-writer discipline is what makes replay verification
// in gchain sound: replaying the same records on a fresh State
// always reconstructs an identical State.
package ggame

import (
	"encoding/binary"
	"errors"

	"github.com/cespare/xxhash/v2"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/grules"
)

// ErrGameOver is returned by ApplyMove once the game has finished.
var ErrGameOver = errors.New("game is over")

// Result is set once a game finishes by resignation.
// Games finishing by consecutive passes are scored separately (gscore).
type Result struct {
	// Winner is the color that did not resign.
	Winner gboard.Color

	Resignation bool
}

// State is the full state of one game.
// Black always moves first on a fresh State.
type State struct {
	board *gboard.Board

	// prevBoard is the board as of the move before last,
	// which is the reference position for the ko rule.
	prevBoard *gboard.Board

	moves []MoveRecord

	current gboard.Color

	capturesBlack int
	capturesWhite int

	passCount int

	result *Result
}

// NewState returns a fresh game at the given board size,
// with an empty board and Black to move.
func NewState(size int) *State {
	return &State{
		board:     gboard.New(size),
		prevBoard: gboard.New(size),
		current:   gboard.Black,
	}
}

// ApplyMove applies one move record for the current player.
//
// Placements are validated first and the state is left untouched
// on any rule violation, which is returned as the grules error kind.
// Pass and resign never fail on a live game.
func (s *State) ApplyMove(rec MoveRecord) error {
	if s.IsGameOver() {
		return ErrGameOver
	}

	switch rec.Move.Type {
	case MoveTypePlace:
		v := grules.NewValidator(s.board, s.prevBoard)
		if err := v.CheckMove(rec.Move.Coord, s.current); err != nil {
			return err
		}

		next := s.board.Clone()
		next.Place(rec.Move.Coord, s.current)

		captures := grules.NewValidator(next, s.prevBoard).FindCaptures(rec.Move.Coord)
		for _, c := range captures {
			next.Remove(c)
		}
		switch s.current {
		case gboard.Black:
			s.capturesBlack += len(captures)
		case gboard.White:
			s.capturesWhite += len(captures)
		}

		s.prevBoard = s.board
		s.board = next
		s.passCount = 0
		s.moves = append(s.moves, rec)
		s.current = s.current.Opposite()

	case MoveTypePass:
		// The board does not change, but the ko reference still advances.
		s.prevBoard = s.board.Clone()
		s.passCount++
		s.moves = append(s.moves, rec)
		s.current = s.current.Opposite()

	case MoveTypeResign:
		s.moves = append(s.moves, rec)
		s.result = &Result{
			Winner:      s.current.Opposite(),
			Resignation: true,
		}
		// Terminal: the player does not flip.

	default:
		return errors.New("invalid move type")
	}

	return nil
}

// Apply is shorthand for applying a bare move with no metadata.
func (s *State) Apply(mv Move) error {
	return s.ApplyMove(MoveRecord{Move: mv})
}

// IsGameOver reports whether the game has finished:
// two consecutive passes or a resignation.
func (s *State) IsGameOver() bool {
	return s.passCount >= 2 || s.result != nil
}

// Result returns the resignation result, if the game ended by one.
func (s *State) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// CurrentPlayer returns the color to move.
func (s *State) CurrentPlayer() gboard.Color {
	return s.current
}

// BoardSize returns the game's board size.
func (s *State) BoardSize() int {
	return s.board.Size()
}

// Board returns a copy of the current board.
// Callers may inspect or modify the copy freely.
func (s *State) Board() *gboard.Board {
	return s.board.Clone()
}

// PositionHash is the current board's stones-only digest.
func (s *State) PositionHash() uint64 {
	return s.board.PositionHash()
}

// StateHash digests the full game state including the move history,
// so two states that reached the same position by different move
// orders hash differently. Compare with [State.PositionHash],
// which looks at the stones only.
func (s *State) StateHash() uint64 {
	d := xxhash.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.board.PositionHash())
	_, _ = d.Write(buf[:])

	for _, rec := range s.moves {
		binary.BigEndian.PutUint64(buf[:], uint64(rec.Move.Type))
		_, _ = d.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(rec.Move.Coord.X))
		_, _ = d.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(rec.Move.Coord.Y))
		_, _ = d.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], rec.Timestamp)
		_, _ = d.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(rec.Sequence))
		_, _ = d.Write(buf[:])
	}

	return d.Sum64()
}

// Captures returns cumulative captured-stone counts:
// stones captured by Black, then by White.
func (s *State) Captures() (black, white int) {
	return s.capturesBlack, s.capturesWhite
}

// PassCount returns the current run of consecutive passes.
func (s *State) PassCount() int {
	return s.passCount
}

// Moves returns a copy of the applied move records in order.
func (s *State) Moves() []MoveRecord {
	out := make([]MoveRecord, len(s.moves))
	copy(out, s.moves)
	return out
}

// MoveCount returns the number of applied moves.
func (s *State) MoveCount() int {
	return len(s.moves)
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		board:         s.board.Clone(),
		prevBoard:     s.prevBoard.Clone(),
		moves:         make([]MoveRecord, len(s.moves)),
		current:       s.current,
		capturesBlack: s.capturesBlack,
		capturesWhite: s.capturesWhite,
		passCount:     s.passCount,
	}
	copy(c.moves, s.moves)
	if s.result != nil {
		r := *s.result
		c.result = &r
	}
	return c
}

// Equal reports whether two states are identical in every field,
// including per-move metadata.
func (s *State) Equal(o *State) bool {
	if !s.board.Equal(o.board) || !s.prevBoard.Equal(o.prevBoard) {
		return false
	}
	if s.current != o.current ||
		s.capturesBlack != o.capturesBlack ||
		s.capturesWhite != o.capturesWhite ||
		s.passCount != o.passCount {
		return false
	}
	if (s.result == nil) != (o.result == nil) {
		return false
	}
	if s.result != nil && *s.result != *o.result {
		return false
	}
	if len(s.moves) != len(o.moves) {
		return false
	}
	for i := range s.moves {
		if !s.moves[i].Equal(o.moves[i]) {
			return false
		}
	}
	return true
}
