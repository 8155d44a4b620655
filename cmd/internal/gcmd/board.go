package gcmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/ggame"
)

// columnLetters follows the usual board convention of skipping I,
// so column 8 is J.
const columnLetters = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

// ParseCoord parses a human coordinate like "C4" or "k10".
// Columns are letters (I skipped), rows count from 1 at the bottom.
func ParseCoord(s string, size int) (gboard.Coord, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return gboard.Coord{}, fmt.Errorf("coordinate %q too short", s)
	}

	col := strings.IndexByte(columnLetters, s[0])
	if col < 0 || col >= size {
		return gboard.Coord{}, fmt.Errorf("column %q out of range for board size %d", s[:1], size)
	}

	row, err := strconv.Atoi(s[1:])
	if err != nil || row < 1 || row > size {
		return gboard.Coord{}, fmt.Errorf("row %q out of range for board size %d", s[1:], size)
	}

	return gboard.Coord{X: col, Y: size - row}, nil
}

// FormatCoord is the inverse of ParseCoord.
func FormatCoord(c gboard.Coord, size int) string {
	return fmt.Sprintf("%c%d", columnLetters[c.X], size-c.Y)
}

// RenderBoard draws the position as text, rows labeled from the top.
func RenderBoard(st *ggame.State) string {
	size := st.BoardSize()
	b := st.Board()

	var sb strings.Builder

	sb.WriteString("   ")
	for x := 0; x < size; x++ {
		sb.WriteByte(columnLetters[x])
		sb.WriteByte(' ')
	}
	sb.WriteByte('\n')

	for y := 0; y < size; y++ {
		fmt.Fprintf(&sb, "%2d ", size-y)
		for x := 0; x < size; x++ {
			c, _ := b.Get(gboard.Coord{X: x, Y: y})
			switch c {
			case gboard.Black:
				sb.WriteString("X ")
			case gboard.White:
				sb.WriteString("O ")
			default:
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}

	capB, capW := st.Captures()
	fmt.Fprintf(&sb, "captures: black %d, white %d; %s to play\n",
		capB, capW, st.CurrentPlayer())

	return sb.String()
}
