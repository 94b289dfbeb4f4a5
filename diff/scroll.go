package diff

import (
	"github.com/lixenwraith/termcore/grid"
)

// Scroll optimization thresholds. Tunables: below these the escape overhead
// and exposed-row redraw outweigh the span savings.
const (
	maxScrollDelta  = 64
	minScrollRows   = 4
	minScrollSaving = 256
)

// scrollPlan is a detected vertical shift: rows [top, top+moved) of the
// current grid equal rows shifted by delta in the previous grid.
// delta > 0 means content moved up (terminal SU), delta < 0 down (SD).
type scrollPlan struct {
	delta int
	top   int
	moved int
	saved int // dirty cells the scroll avoids re-emitting
}

// findScroll searches for the best scroll plan. Deterministic tie-breaks:
// larger saving wins, then smaller absolute delta, then scroll-up over
// scroll-down, then smaller top. Returns ok=false when no plan clears the
// thresholds.
func findScroll(prev, cur *grid.Grid, prevHash, curHash []uint64, rowDirty []bool) (scrollPlan, bool) {
	rows := cur.Rows()
	cols := cur.Cols()
	var best scrollPlan
	found := false

	better := func(p scrollPlan) bool {
		if !found {
			return true
		}
		if p.saved != best.saved {
			return p.saved > best.saved
		}
		pa, ba := abs(p.delta), abs(best.delta)
		if pa != ba {
			return pa < ba
		}
		if p.delta != best.delta {
			return p.delta > 0
		}
		return p.top < best.top
	}

	limit := maxScrollDelta
	if limit > rows-1 {
		limit = rows - 1
	}
	for d := 1; d <= limit; d++ {
		for _, delta := range [2]int{d, -d} {
			p, ok := scanDelta(prev, cur, prevHash, curHash, rowDirty, cols, rows, delta)
			if ok && better(p) {
				best = p
				found = true
			}
		}
	}
	if !found || best.moved < minScrollRows || best.saved < minScrollSaving {
		return scrollPlan{}, false
	}
	return best, true
}

// scanDelta finds the longest run of rows y where cur[y] == prev[y+delta],
// counting only rows that are dirty in place (clean rows gain nothing).
func scanDelta(prev, cur *grid.Grid, prevHash, curHash []uint64, rowDirty []bool, cols, rows, delta int) (scrollPlan, bool) {
	var best scrollPlan
	found := false

	run := 0
	saved := 0
	flush := func(end int) {
		if run == 0 {
			return
		}
		p := scrollPlan{delta: delta, top: end - run, moved: run, saved: saved}
		if !found || p.saved > best.saved || (p.saved == best.saved && p.top < best.top) {
			best = p
			found = true
		}
		run = 0
		saved = 0
	}

	for y := 0; y < rows; y++ {
		src := y + delta
		if src < 0 || src >= rows || !rowsMatch(prev, cur, prevHash, curHash, src, y) {
			flush(y)
			continue
		}
		run++
		if rowDirty[y] {
			saved += cols
		}
	}
	flush(rows)
	return best, found
}

// rowsMatch compares prev row src against cur row dst, hash first with an
// exact compare to guard collisions
func rowsMatch(prev, cur *grid.Grid, prevHash, curHash []uint64, src, dst int) bool {
	if prevHash[src] != curHash[dst] {
		return false
	}
	return rowEqualAcross(prev, cur, src, dst)
}

// rowEqualAcross compares one row of prev against one row of cur cell by cell
func rowEqualAcross(prev, cur *grid.Grid, src, dst int) bool {
	cols := cur.Cols()
	for x := 0; x < cols; x++ {
		a, _ := prev.At(x, src)
		b, _ := cur.At(x, dst)
		if !a.Equal(b) {
			return false
		}
	}
	return true
}

// regionBounds returns the DECSTBM region [top, bot] covering the moved rows
// plus the rows the scroll exposes
func (p scrollPlan) regionBounds() (int, int) {
	if p.delta > 0 {
		return p.top, p.top + p.moved + p.delta - 1
	}
	return p.top + p.delta, p.top + p.moved - 1
}

// exposedRows returns the row range [lo, hi] left undefined by the scroll
func (p scrollPlan) exposedRows() (int, int) {
	if p.delta > 0 {
		return p.top + p.moved, p.top + p.moved + p.delta - 1
	}
	return p.top + p.delta, p.top - 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
