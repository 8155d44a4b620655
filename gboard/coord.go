package gboard

// Coord is an intersection on a board, with both components in [0, size).
// It is an immutable value type; validity depends on the board size.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Valid reports whether c is on a board of the given size.
func (c Coord) Valid(size int) bool {
	return c.X >= 0 && c.X < size && c.Y >= 0 && c.Y < size
}
