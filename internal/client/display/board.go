package display

import (
	"fmt"
	"io"
	"strings"
)

const emptyCell = "."

// Grid is a character board; row 0 is the top
type Grid struct {
	width, height int
	cells         []string
}

func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	cells := make([]string, width*height)
	for i := range cells {
		cells[i] = emptyCell
	}
	return &Grid{width: width, height: height, cells: cells}
}

// Set places a glyph; out-of-range coordinates are ignored
func (g *Grid) Set(x, y int, glyph string) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return
	}
	g.cells[y*g.width+x] = glyph
}

func (g *Grid) At(x, y int) string {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return ""
	}
	return g.cells[y*g.width+x]
}

// Render writes the grid framed by a border
func (g *Grid) Render(w io.Writer) {
	border := Gray + "+" + strings.Repeat("-", g.width) + "+" + Reset
	fmt.Fprintln(w, border)
	for y := 0; y < g.height; y++ {
		var b strings.Builder
		b.WriteString(Gray + "|" + Reset)
		for x := 0; x < g.width; x++ {
			b.WriteString(g.cells[y*g.width+x])
		}
		b.WriteString(Gray + "|" + Reset)
		fmt.Fprintln(w, b.String())
	}
	fmt.Fprintln(w, border)
}
