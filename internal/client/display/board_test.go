package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridSetIgnoresOutOfRange(t *testing.T) {
	g := NewGrid(3, 2)
	g.Set(1, 1, "@")
	g.Set(3, 0, "x")
	g.Set(-1, 0, "x")

	assert.Equal(t, "@", g.At(1, 1))
	assert.Equal(t, emptyCell, g.At(0, 0))
	assert.Equal(t, "", g.At(3, 0))
}

func TestGridRender(t *testing.T) {
	g := NewGrid(4, 2)
	g.Set(0, 0, "*")

	var buf bytes.Buffer
	g.Render(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[1], "*...")
	assert.Contains(t, lines[2], "....")
}
