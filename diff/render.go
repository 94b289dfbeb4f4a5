package diff

import (
	"github.com/pkg/errors"

	"github.com/lixenwraith/termcore/fault"
	"github.com/lixenwraith/termcore/grid"
)

// coalesceGap merges changed spans separated by at most this many unchanged
// cells: re-emitting one cell is cheaper than the cursor jump around it.
// Tunable, pinned by golden-byte fixtures.
const coalesceGap = 1

// sweepDensityPct switches from per-dirty-row scanning to a full sweep when
// at least this percentage of rows changed; the prepass bookkeeping stops
// paying for itself around there.
const sweepDensityPct = 35

// FNV-1a 64-bit constants for the row hash prepass
const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// row diff modes for one render pass
const (
	rowModeNormal   = 0 // compare against the same prev row
	rowModeSkip     = 1 // scroll moved it into place, nothing to do
	rowModeDirtyAll = 2 // terminal content unknown, emit every cell
)

// Render diffs cur against prev and returns the bytes that bring a terminal
// currently showing prev in sync with cur, followed by the desired cursor
// state. st is the terminal model carried between calls and is updated in
// place on success; on error no output is produced and st is untouched.
//
// Pure and deterministic: identical inputs yield byte-identical output.
func Render(prev, cur *grid.Grid, caps Caps, st *TermState, want grid.Cursor) ([]byte, Stats, error) {
	var stats Stats
	if prev == nil || cur == nil || st == nil {
		return nil, stats, errors.Wrap(fault.ErrInvalidArgument, "nil render input")
	}
	if prev.Cols() != cur.Cols() || prev.Rows() != cur.Rows() {
		return nil, stats, errors.Wrapf(fault.ErrInvalidArgument,
			"grid dimensions %dx%d vs %dx%d", prev.Cols(), prev.Rows(), cur.Cols(), cur.Rows())
	}

	cols, rows := cur.Cols(), cur.Rows()
	e := newEmitter(caps, st)
	var dmg damage
	dmg.beginFrame(cols, rows)

	rowMode := make([]uint8, rows)

	if !st.ScreenValid {
		for y := range rowMode {
			rowMode[y] = rowModeDirtyAll
		}
	} else {
		prevHash := rowHashes(prev)
		curHash := rowHashes(cur)
		rowDirty := make([]bool, rows)
		dirtyRows := 0
		for y := 0; y < rows; y++ {
			if prevHash[y] != curHash[y] || !grid.RowEqual(prev, cur, y) {
				rowDirty[y] = true
				dirtyRows++
			}
		}
		stats.DirtyRows = dirtyRows

		if caps.ScrollRegion {
			if plan, ok := findScroll(prev, cur, prevHash, curHash, rowDirty); ok {
				top, bot := plan.regionBounds()
				e.scrollRegion(top, bot, plan.delta)
				stats.Scrolled = true
				stats.ScrollDelta = plan.delta
				for y := plan.top; y < plan.top+plan.moved; y++ {
					rowMode[y] = rowModeSkip
				}
				lo, hi := plan.exposedRows()
				for y := lo; y <= hi; y++ {
					rowMode[y] = rowModeDirtyAll
				}
			}
		}

		// Low density: only walk rows the prepass flagged. High density: the
		// sweep visits every remaining row; span scanning skips clean cells
		// either way, so both paths emit identical bytes.
		if dirtyRows*100 < rows*sweepDensityPct {
			for y := 0; y < rows; y++ {
				if rowMode[y] == rowModeNormal && !rowDirty[y] {
					rowMode[y] = rowModeSkip
				}
			}
		}
	}

	for y := 0; y < rows; y++ {
		if rowMode[y] == rowModeSkip {
			continue
		}
		renderRow(e, prev, cur, y, rowMode[y] == rowModeDirtyAll, &dmg, &stats)
	}

	emitDesiredCursor(e, cur, st, want)

	out := e.buf.Bytes()
	stats.DirtyCells = dmg.cells()
	stats.Bytes = len(out)

	st.X, st.Y, st.PosValid = e.x, e.y, e.posValid
	st.Style, st.StyleValid = e.last, e.styleValid
	st.ScreenValid = true
	return out, stats, nil
}

// rowHashes computes an FNV-1a 64 hash of every row's cell content
func rowHashes(g *grid.Grid) []uint64 {
	hashes := make([]uint64, g.Rows())
	for y := 0; y < g.Rows(); y++ {
		h := uint64(fnvOffset)
		mix := func(b byte) {
			h ^= uint64(b)
			h *= fnvPrime
		}
		for x := 0; x < g.Cols(); x++ {
			c, _ := g.At(x, y)
			mix(c.GlyphLen)
			mix(c.Width)
			for i := uint8(0); i < c.GlyphLen; i++ {
				mix(c.Glyph[i])
			}
			mix(c.Style.Fg.R)
			mix(c.Style.Fg.G)
			mix(c.Style.Fg.B)
			mix(c.Style.Bg.R)
			mix(c.Style.Bg.G)
			mix(c.Style.Bg.B)
			mix(byte(c.Style.Attrs))
		}
		hashes[y] = h
	}
	return hashes
}

// renderRow finds the changed spans of row y and emits them
func renderRow(e *emitter, prev, cur *grid.Grid, y int, allDirty bool, dmg *damage, stats *Stats) {
	cols := cur.Cols()

	dirtyAt := func(x int) bool {
		if allDirty {
			return true
		}
		c, _ := cur.At(x, y)
		p, _ := prev.At(x, y)
		return !c.Equal(p)
	}

	x := 0
	for x < cols {
		if !dirtyAt(x) {
			x++
			continue
		}
		start := x
		end := x
		// Extend the span, coalescing across small clean gaps
		for probe := x + 1; probe < cols; probe++ {
			if dirtyAt(probe) {
				end = probe
				continue
			}
			if probe-end > coalesceGap {
				break
			}
		}
		start, end = expandSpan(cur, y, start, end)
		emitSpan(e, cur, y, start, end)
		dmg.addSpan(y, start, end)
		stats.Spans++
		stats.EmittedCells += end - start + 1
		x = end + 1
	}
}

// expandSpan widens [start, end] to whole wide pairs: a continuation at the
// start pulls in its lead, a lead at the end pulls in its continuation
func expandSpan(cur *grid.Grid, y, start, end int) (int, int) {
	if c, ok := cur.At(start, y); ok && c.Width == grid.WidthContinuation && start > 0 {
		start--
	}
	if c, ok := cur.At(end, y); ok && c.Width == grid.WidthWide && end+1 < cur.Cols() {
		end++
	}
	return start, end
}

// emitSpan writes the cells of [start, end] on row y, positioning first
func emitSpan(e *emitter, cur *grid.Grid, y, start, end int) {
	e.cup(start, y)
	for x := start; x <= end; x++ {
		c, _ := cur.At(x, y)
		if c.Width == grid.WidthContinuation {
			continue
		}
		e.cell(&c)
	}
}

// emitDesiredCursor brings visibility, shape and position to the requested
// state, after all cell output so nothing disturbs it
func emitDesiredCursor(e *emitter, cur *grid.Grid, st *TermState, want grid.Cursor) {
	if !st.VisValid || want.Visible != st.Visible {
		e.cursorVisible(want.Visible)
		st.Visible = want.Visible
		st.VisValid = true
	}
	if !st.ShapeValid || want.Shape != st.Shape || want.Blink != st.Blink {
		e.cursorShape(want.Shape, want.Blink)
		st.Shape = want.Shape
		st.Blink = want.Blink
		st.ShapeValid = true
	}
	if want.X >= 0 && want.Y >= 0 {
		x, y := clampCursor(cur, want.X, want.Y)
		e.cup(x, y)
	}
}
