package gboard

// Color is a stone color.
// The zero value represents an empty intersection,
// which allows a board cell to be a plain Color value.
type Color uint8

const (
	// None is the zero value, an empty intersection.
	None Color = iota

	Black
	White
)

// Opposite returns the other player's color.
// It panics if c is not Black or White.
func (c Color) Opposite() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		panic("gboard: Opposite called on non-player color")
	}
}

func (c Color) String() string {
	switch c {
	case None:
		return "none"
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "invalid"
	}
}
