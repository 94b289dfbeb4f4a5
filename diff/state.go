package diff

import (
	"github.com/lixenwraith/termcore/grid"
)

// TermState is the engine's model of the physical terminal, carried by the
// caller between Render calls. Each tracked datum has a validity flag; an
// invalid datum forces re-emission the next time it matters.
type TermState struct {
	X, Y     int
	PosValid bool

	Style      styleKey
	StyleValid bool

	Visible  bool
	VisValid bool

	Shape      uint8
	Blink      bool
	ShapeValid bool

	// ScreenValid is false when the terminal content is unknown (first
	// frame, post-resize, external disturbance); Render then redraws fully.
	ScreenValid bool
}

// Invalidate marks everything unknown, forcing a full redraw next Render
func (s *TermState) Invalidate() {
	*s = TermState{}
}

// Stats reports what one Render call emitted
type Stats struct {
	DirtyRows    int
	DirtyCells   int
	EmittedCells int
	Spans        int
	Scrolled     bool
	ScrollDelta  int // positive scrolls up, negative down
	Bytes        int
}

// clampCursor clamps a desired position into the grid
func clampCursor(g *grid.Grid, x, y int) (int, int) {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= g.Cols() {
		x = g.Cols() - 1
	}
	if y >= g.Rows() {
		y = g.Rows() - 1
	}
	return x, y
}
