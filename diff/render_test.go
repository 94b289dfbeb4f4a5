package diff

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/lixenwraith/termcore/fault"
	"github.com/lixenwraith/termcore/grid"
)

// plainCaps avoids scroll sequences so tests see span output only
var plainCaps = Caps{Color: ColorModeTrueColor, Attrs: grid.AttrAll, ScrollRegion: false}

func newGrid(t *testing.T, cols, rows int) *grid.Grid {
	t.Helper()
	g, err := grid.New(cols, rows)
	if err != nil {
		t.Fatalf("grid.New failed: %v", err)
	}
	return g
}

// syncedState models a terminal already showing the previous grid with a
// known default style and hidden default cursor, so only cell changes emit
func syncedState(caps Caps) TermState {
	return TermState{
		Style:       applyCaps(grid.Style{}, caps),
		StyleValid:  true,
		VisValid:    true,
		ShapeValid:  true,
		ScreenValid: true,
	}
}

func drawOn(t *testing.T, g *grid.Grid, x, y int, text string, st grid.Style) {
	t.Helper()
	p, err := grid.NewPainter(g)
	if err != nil {
		t.Fatalf("NewPainter failed: %v", err)
	}
	if _, err := p.DrawText(x, y, []byte(text), st); err != nil {
		t.Fatalf("DrawText failed: %v", err)
	}
}

func TestRenderGoldenAB(t *testing.T) {
	prev := newGrid(t, 5, 1)
	cur := newGrid(t, 5, 1)
	drawOn(t, cur, 0, 0, "AB", grid.Style{})

	st := syncedState(plainCaps)
	out, stats, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := "\x1b[1;1HAB"
	if string(out) != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
	if stats.Spans != 1 || stats.EmittedCells != 2 {
		t.Errorf("Expected 1 span of 2 cells, got %d spans, %d cells", stats.Spans, stats.EmittedCells)
	}
	if st.X != 2 || st.Y != 0 || !st.PosValid {
		t.Errorf("Cursor state not tracked: x=%d y=%d valid=%v", st.X, st.Y, st.PosValid)
	}
}

func TestRenderDeterministic(t *testing.T) {
	prev := newGrid(t, 20, 5)
	cur := newGrid(t, 20, 5)
	drawOn(t, prev, 0, 0, "old content", grid.Style{})
	drawOn(t, cur, 0, 0, "new content", grid.Style{Attrs: grid.AttrBold})
	drawOn(t, cur, 3, 2, "世界 wide", grid.Style{Fg: grid.RGB{R: 0xFF, G: 0x88}})

	run := func() []byte {
		st := syncedState(plainCaps)
		out, _, err := Render(prev, cur, plainCaps, &st, grid.Cursor{X: 1, Y: 1, Visible: true})
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		return out
	}
	first := run()
	for i := 0; i < 5; i++ {
		if next := run(); !bytes.Equal(first, next) {
			t.Fatalf("Render not deterministic on run %d:\n%q\n%q", i, first, next)
		}
	}
}

func TestRenderNoChangesEmitsNothing(t *testing.T) {
	prev := newGrid(t, 10, 4)
	cur := newGrid(t, 10, 4)
	drawOn(t, prev, 0, 0, "same", grid.Style{})
	drawOn(t, cur, 0, 0, "same", grid.Style{})

	st := syncedState(plainCaps)
	out, stats, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected no output, got %q", out)
	}
	if stats.DirtyRows != 0 || stats.Spans != 0 {
		t.Errorf("Expected clean stats, got %+v", stats)
	}
}

func TestRenderDimensionMismatch(t *testing.T) {
	prev := newGrid(t, 10, 4)
	cur := newGrid(t, 11, 4)
	st := syncedState(plainCaps)
	out, _, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if !fault.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	if out != nil {
		t.Error("Failed render must produce no output")
	}
}

func TestRenderCoalescesNearbyChanges(t *testing.T) {
	prev := newGrid(t, 10, 1)
	cur := newGrid(t, 10, 1)
	// Dirty cells at 0 and 2 with one clean cell between: one span
	drawOn(t, cur, 0, 0, "a", grid.Style{})
	drawOn(t, cur, 2, 0, "b", grid.Style{})

	st := syncedState(plainCaps)
	out, stats, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if stats.Spans != 1 {
		t.Errorf("Expected 1 coalesced span, got %d", stats.Spans)
	}
	if want := "\x1b[1;1Ha b"; string(out) != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestRenderDistantChangesSeparateSpans(t *testing.T) {
	prev := newGrid(t, 20, 1)
	cur := newGrid(t, 20, 1)
	drawOn(t, cur, 0, 0, "a", grid.Style{})
	drawOn(t, cur, 10, 0, "b", grid.Style{})

	st := syncedState(plainCaps)
	out, stats, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if stats.Spans != 2 {
		t.Errorf("Expected 2 spans, got %d", stats.Spans)
	}
	// Second span is ahead on the same row: cursor-forward, not CUP
	if want := "\x1b[1;1Ha\x1b[9Cb"; string(out) != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestRenderSkipsContinuationCells(t *testing.T) {
	prev := newGrid(t, 10, 1)
	cur := newGrid(t, 10, 1)
	drawOn(t, cur, 0, 0, "世x", grid.Style{})

	st := syncedState(plainCaps)
	out, _, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if want := "\x1b[1;1H世x"; string(out) != want {
		t.Errorf("Expected wide glyph emitted once, got %q", out)
	}
	if st.X != 3 {
		t.Errorf("Wide glyph must advance cursor by 2: x=%d", st.X)
	}
}

func TestRenderStyleDelta(t *testing.T) {
	prev := newGrid(t, 10, 1)
	cur := newGrid(t, 10, 1)
	bold := grid.Style{Attrs: grid.AttrBold}
	drawOn(t, cur, 0, 0, "a", grid.Style{})
	drawOn(t, cur, 1, 0, "b", bold)

	st := syncedState(plainCaps)
	out, _, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// Adding bold is a delta (ESC[1m); no absolute reset mid-span
	if want := "\x1b[1;1Ha\x1b[1mb"; string(out) != want {
		t.Errorf("Expected attribute delta, got %q", out)
	}
}

func TestRenderAttrRemovalForcesAbsolute(t *testing.T) {
	prev := newGrid(t, 10, 1)
	cur := newGrid(t, 10, 1)
	drawOn(t, cur, 0, 0, "a", grid.Style{Attrs: grid.AttrBold | grid.AttrUnderline})
	drawOn(t, cur, 1, 0, "b", grid.Style{Attrs: grid.AttrBold})

	st := syncedState(plainCaps)
	out, _, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// Dropping underline cannot be expressed additively; expect a reset
	// sequence between the two cells
	if !bytes.Contains(out, []byte("\x1b[0;1")) {
		t.Errorf("Expected absolute SGR after attribute removal, got %q", out)
	}
}

func TestRenderDegradedColorsDoNotReemit(t *testing.T) {
	caps := Caps{Color: ColorMode256, Attrs: grid.AttrAll}
	prev := newGrid(t, 10, 1)
	cur := newGrid(t, 10, 1)
	// Same glyph, fg differs by one bit of blue: both degrade to palette 16
	drawOn(t, prev, 0, 0, "X", grid.Style{Fg: grid.RGB{0, 0, 0}})
	drawOn(t, cur, 0, 0, "X", grid.Style{Fg: grid.RGB{1, 1, 1}})

	st := syncedState(caps)
	st.Style = applyCaps(grid.Style{Fg: grid.RGB{0, 0, 0}}, caps)
	out, _, err := Render(prev, cur, caps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if bytes.Contains(out, []byte("38;5;")) {
		t.Errorf("Degraded-equal color re-emitted: %q", out)
	}
}

func TestRenderFullRedrawWhenScreenInvalid(t *testing.T) {
	prev := newGrid(t, 4, 2)
	cur := newGrid(t, 4, 2)
	// prev and cur identical; an invalid screen must still repaint all cells
	st := syncedState(plainCaps)
	st.ScreenValid = false

	_, stats, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if stats.EmittedCells != 8 {
		t.Errorf("Expected all 8 cells emitted, got %d", stats.EmittedCells)
	}
	if !st.ScreenValid {
		t.Error("Render must mark the screen valid on success")
	}
}

func TestRenderDesiredCursor(t *testing.T) {
	prev := newGrid(t, 10, 4)
	cur := newGrid(t, 10, 4)

	st := syncedState(plainCaps)
	want := grid.Cursor{X: 3, Y: 2, Visible: true, Shape: grid.ShapeBar, Blink: true}
	out, _, err := Render(prev, cur, plainCaps, &st, want)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, seq := range []string{"\x1b[?25h", "\x1b[5 q", "\x1b[3;4H"} {
		if !bytes.Contains(out, []byte(seq)) {
			t.Errorf("Expected %q in output %q", seq, out)
		}
	}
	if !st.Visible || st.Shape != grid.ShapeBar || !st.Blink {
		t.Errorf("Cursor state not updated: %+v", st)
	}

	// Unchanged desired state emits nothing further
	out2, _, err := Render(cur, cur.Clone(), plainCaps, &st, want)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(out2) != 0 {
		t.Errorf("Expected no output for settled cursor, got %q", out2)
	}
}

func TestRenderCursorLeaveSentinel(t *testing.T) {
	prev := newGrid(t, 10, 4)
	cur := newGrid(t, 10, 4)

	st := syncedState(plainCaps)
	st.X, st.Y, st.PosValid = 7, 3, true
	out, _, err := Render(prev, cur, plainCaps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected no output with -1 sentinels, got %q", out)
	}
	if st.X != 7 || st.Y != 3 {
		t.Error("Leave-unchanged sentinel moved the tracked cursor")
	}
}

func TestRenderScrollOptimization(t *testing.T) {
	caps := Caps{Color: ColorModeTrueColor, Attrs: grid.AttrAll, ScrollRegion: true}
	prev := newGrid(t, 40, 30)
	cur := newGrid(t, 40, 30)
	for y := 0; y < 30; y++ {
		drawOn(t, prev, 0, y, fmt.Sprintf("log line %02d padding padding padding", y), grid.Style{})
	}
	// Content scrolls up by 2: row y shows what row y+2 showed
	for y := 0; y < 28; y++ {
		drawOn(t, cur, 0, y, fmt.Sprintf("log line %02d padding padding padding", y+2), grid.Style{})
	}
	drawOn(t, cur, 0, 28, "fresh line A", grid.Style{})
	drawOn(t, cur, 0, 29, "fresh line B", grid.Style{})

	st := syncedState(caps)
	out, stats, err := Render(prev, cur, caps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !stats.Scrolled || stats.ScrollDelta != 2 {
		t.Fatalf("Expected scroll by 2, got %+v", stats)
	}
	if !bytes.Contains(out, []byte("\x1b[1;30r")) || !bytes.Contains(out, []byte("\x1b[2S")) {
		t.Errorf("Expected DECSTBM region and SU sequence, got prefix %q", out[:min(len(out), 40)])
	}
	if !bytes.Contains(out, []byte("\x1b[r")) {
		t.Error("Expected region reset")
	}
	if !bytes.Contains(out, []byte("fresh line A")) || !bytes.Contains(out, []byte("fresh line B")) {
		t.Error("Exposed rows must be redrawn")
	}
	// Moved rows must not be re-emitted
	if bytes.Contains(out, []byte("log line 05")) {
		t.Error("Scrolled row content re-emitted")
	}

	// The span-based fallback stays available and covers the same frame
	st2 := syncedState(plainCaps)
	out2, stats2, err := Render(prev, cur, plainCaps, &st2, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Fallback render failed: %v", err)
	}
	if stats2.Scrolled {
		t.Error("Scroll emitted without capability")
	}
	if len(out2) == 0 || !bytes.Contains(out2, []byte("log line 02")) {
		t.Error("Fallback must repaint moved rows as spans")
	}
}

func TestRenderScrollBelowThresholdFallsBack(t *testing.T) {
	caps := Caps{Color: ColorModeTrueColor, Attrs: grid.AttrAll, ScrollRegion: true}
	prev := newGrid(t, 10, 6)
	cur := newGrid(t, 10, 6)
	for y := 0; y < 6; y++ {
		drawOn(t, prev, 0, y, fmt.Sprintf("r%d", y), grid.Style{})
	}
	for y := 0; y < 5; y++ {
		drawOn(t, cur, 0, y, fmt.Sprintf("r%d", y+1), grid.Style{})
	}

	st := syncedState(caps)
	_, stats, err := Render(prev, cur, caps, &st, grid.DefaultCursor())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// 5 moved rows x 10 cols saves 50 cells, under the minimum saving
	if stats.Scrolled {
		t.Error("Scroll below saving threshold must fall back to spans")
	}
}
