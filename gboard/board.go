// Package gboard provides the fixed-size grid underlying a game:
// coordinates, stone colors, occupancy queries, and a position digest
// usable to compare two boards stone-for-stone.
package gboard

import (
	"github.com/cespare/xxhash/v2"
)

// Board is a square grid of intersections.
// Reads of out-of-range coordinates are lenient;
// writes to out-of-range or conflicting coordinates report false
// rather than panicking, so a caller never has to pre-validate.
type Board struct {
	size  int
	cells []Color
}

// New returns an all-empty board of the given size.
// Typical sizes are 9, 13, and 19.
func New(size int) *Board {
	return &Board{
		size:  size,
		cells: make([]Color, size*size),
	}
}

// Size returns the board's edge length.
func (b *Board) Size() int {
	return b.size
}

func (b *Board) idx(c Coord) int {
	return c.Y*b.size + c.X
}

// Get returns the color at c and whether a stone is present.
// Out-of-range coordinates read as empty.
func (b *Board) Get(c Coord) (Color, bool) {
	if !c.Valid(b.size) {
		return None, false
	}
	col := b.cells[b.idx(c)]
	return col, col != None
}

// Place puts a stone at c.
// It reports false if c is out of range or already occupied.
func (b *Board) Place(c Coord, color Color) bool {
	if !c.Valid(b.size) {
		return false
	}
	i := b.idx(c)
	if b.cells[i] != None {
		return false
	}
	b.cells[i] = color
	return true
}

// Remove clears the stone at c.
// It reports false if c is out of range or already empty.
func (b *Board) Remove(c Coord) bool {
	if !c.Valid(b.size) {
		return false
	}
	i := b.idx(c)
	if b.cells[i] == None {
		return false
	}
	b.cells[i] = None
	return true
}

// AdjacentCoords returns the in-bounds orthogonal neighbors of c,
// at most four of them.
func (b *Board) AdjacentCoords(c Coord) []Coord {
	out := make([]Coord, 0, 4)
	if c.Y > 0 {
		out = append(out, Coord{c.X, c.Y - 1})
	}
	if c.Y < b.size-1 {
		out = append(out, Coord{c.X, c.Y + 1})
	}
	if c.X > 0 {
		out = append(out, Coord{c.X - 1, c.Y})
	}
	if c.X < b.size-1 {
		out = append(out, Coord{c.X + 1, c.Y})
	}
	return out
}

// Clone returns a deep copy of b.
func (b *Board) Clone() *Board {
	cells := make([]Color, len(b.cells))
	copy(cells, b.cells)
	return &Board{size: b.size, cells: cells}
}

// Equal reports whether b and o have the same size
// and identical cell contents.
func (b *Board) Equal(o *Board) bool {
	if b.size != o.size {
		return false
	}
	for i, c := range b.cells {
		if o.cells[i] != c {
			return false
		}
	}
	return true
}

// Cells returns a copy of the board contents in row-major order,
// with None marking empty intersections.
func (b *Board) Cells() []Color {
	out := make([]Color, len(b.cells))
	copy(out, b.cells)
	return out
}

// SetCell overwrites the cell at c unconditionally,
// including clearing it with None.
// It reports false only for out-of-range coordinates.
// This is the restore path for state snapshots;
// game play goes through Place and Remove.
func (b *Board) SetCell(c Coord, color Color) bool {
	if !c.Valid(b.size) {
		return false
	}
	b.cells[b.idx(c)] = color
	return true
}

// PositionHash returns a digest of the cell contents only,
// independent of how the position was reached.
// Two boards hash equal iff they are stone-for-stone identical.
//
// The digest is xxhash over the size-ordered cell array,
// so it is order-sensitive and stable across process restarts.
// It is not a cryptographic hash; chain integrity uses gchain hashes.
func (b *Board) PositionHash() uint64 {
	d := xxhash.New()
	var buf [1]byte
	for _, c := range b.cells {
		buf[0] = byte(c)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
