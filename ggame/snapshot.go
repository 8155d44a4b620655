package ggame

import (
	"errors"
	"fmt"
)

// Snapshot is a State flattened to plain data,
// suitable for codecs and digests.
type Snapshot struct {
	Size  int     `json:"size"`
	Cells []uint8 `json:"cells"`

	Current uint8 `json:"current"`

	CapturesBlack int `json:"captures_black"`
	CapturesWhite int `json:"captures_white"`
	PassCount     int `json:"pass_count"`

	Moves []MoveRecord `json:"moves"`

	ResultWinner      uint8 `json:"result_winner,omitempty"`
	ResultResignation bool  `json:"result_resignation,omitempty"`
}

// Snapshot flattens the state.
// The previous board is not carried: StateFromSnapshot
// reconstructs it by replaying the move history.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Size:          s.board.Size(),
		Cells:         make([]uint8, 0, s.board.Size()*s.board.Size()),
		Current:       uint8(s.current),
		CapturesBlack: s.capturesBlack,
		CapturesWhite: s.capturesWhite,
		PassCount:     s.passCount,
		Moves:         make([]MoveRecord, len(s.moves)),
	}
	for _, c := range s.board.Cells() {
		snap.Cells = append(snap.Cells, uint8(c))
	}
	copy(snap.Moves, s.moves)
	if s.result != nil {
		snap.ResultWinner = uint8(s.result.Winner)
		snap.ResultResignation = s.result.Resignation
	}
	return snap
}

// StateFromSnapshot reconstructs a State by replaying the snapshot's
// move history on a fresh board, then confirms the replayed state
// matches the snapshot's recorded fields.
func StateFromSnapshot(snap Snapshot) (*State, error) {
	s := NewState(snap.Size)
	for i, rec := range snap.Moves {
		if err := s.ApplyMove(rec); err != nil {
			return nil, fmt.Errorf("replaying move %d: %w", i, err)
		}
	}

	if s.capturesBlack != snap.CapturesBlack ||
		s.capturesWhite != snap.CapturesWhite ||
		s.passCount != snap.PassCount ||
		uint8(s.current) != snap.Current {
		return nil, errors.New("replayed state does not match snapshot")
	}
	cells := s.board.Cells()
	if len(cells) != len(snap.Cells) {
		return nil, errors.New("replayed board size does not match snapshot")
	}
	for i, c := range cells {
		if uint8(c) != snap.Cells[i] {
			return nil, errors.New("replayed board does not match snapshot")
		}
	}
	if s.result != nil {
		if !snap.ResultResignation || uint8(s.result.Winner) != snap.ResultWinner {
			return nil, errors.New("replayed result does not match snapshot")
		}
	} else if snap.ResultResignation {
		return nil, errors.New("replayed result does not match snapshot")
	}

	return s, nil
}
