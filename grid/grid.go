package grid

import (
	"github.com/pkg/errors"

	"github.com/lixenwraith/termcore/fault"
)

// MaxDim caps either grid dimension. Keeps worst-case work bounded so no
// validator or diff call can run unbounded.
const MaxDim = 4096

// Grid is a fixed-size two-dimensional cell array plus cursor metadata.
// Cells are row-major: cells[y*cols+x]. The engine owns the backing store;
// no slice aliasing the cells escapes the package API.
type Grid struct {
	cols, rows int
	cells      []Cell
	cursor     Cursor
}

// New allocates a cols x rows grid cleared to space cells with zero style
func New(cols, rows int) (*Grid, error) {
	cells, err := allocCells(cols, rows)
	if err != nil {
		return nil, err
	}
	g := &Grid{cols: cols, rows: rows, cells: cells, cursor: DefaultCursor()}
	g.Clear(Style{})
	return g, nil
}

func allocCells(cols, rows int) ([]Cell, error) {
	if cols <= 0 || rows <= 0 {
		return nil, errors.Wrap(fault.ErrInvalidArgument, "grid dimensions must be positive")
	}
	if cols > MaxDim || rows > MaxDim {
		return nil, errors.Wrapf(fault.ErrLimit, "grid %dx%d exceeds max dimension %d", cols, rows, MaxDim)
	}
	return make([]Cell, cols*rows), nil
}

// Cols returns the column count
func (g *Grid) Cols() int { return g.cols }

// Rows returns the row count
func (g *Grid) Rows() int { return g.rows }

// Bounds returns the full-grid rectangle
func (g *Grid) Bounds() Rect {
	return Rect{X: 0, Y: 0, W: g.cols, H: g.rows}
}

// InBounds reports whether (x, y) is a valid cell position
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.cols && y < g.rows
}

// At returns a copy of the cell at (x, y); ok is false out of bounds
func (g *Grid) At(x, y int) (Cell, bool) {
	if !g.InBounds(x, y) {
		return Cell{}, false
	}
	return g.cells[y*g.cols+x], true
}

// cell returns the backing cell, nil when out of bounds
func (g *Grid) cell(x, y int) *Cell {
	if !g.InBounds(x, y) {
		return nil
	}
	return &g.cells[y*g.cols+x]
}

// Row returns a copy of row y's cells into dst, growing it as needed
func (g *Grid) Row(y int, dst []Cell) []Cell {
	if y < 0 || y >= g.rows {
		return dst[:0]
	}
	dst = append(dst[:0], g.cells[y*g.cols:(y+1)*g.cols]...)
	return dst
}

// RowEqual reports whether row y holds identical cells in both grids.
// Both grids must share dimensions; callers check that once up front.
func RowEqual(a, b *Grid, y int) bool {
	ra := a.cells[y*a.cols : (y+1)*a.cols]
	rb := b.cells[y*b.cols : (y+1)*b.cols]
	for i := range ra {
		if !ra[i].Equal(rb[i]) {
			return false
		}
	}
	return true
}

// Cursor returns the grid's cursor metadata
func (g *Grid) Cursor() Cursor { return g.cursor }

// SetCursor replaces the cursor metadata. Cell content is untouched.
func (g *Grid) SetCursor(c Cursor) { g.cursor = c }

// Clear fills every cell with a space in the given style, ignoring any clip
func (g *Grid) Clear(st Style) {
	if len(g.cells) == 0 {
		return
	}
	// Exponential fill: seed one cell, then double with copy
	g.cells[0] = SpaceCell(st)
	for filled := 1; filled < len(g.cells); filled *= 2 {
		copy(g.cells[filled:], g.cells[:filled])
	}
}

// CopyFrom overwrites this grid's cells and cursor from src.
// Dimensions must match.
func (g *Grid) CopyFrom(src *Grid) error {
	if src == nil || src.cols != g.cols || src.rows != g.rows {
		return errors.Wrap(fault.ErrInvalidArgument, "grid copy dimension mismatch")
	}
	copy(g.cells, src.cells)
	g.cursor = src.cursor
	return nil
}

// Clone returns an independent copy of the grid
func (g *Grid) Clone() *Grid {
	n := &Grid{cols: g.cols, rows: g.rows, cursor: g.cursor}
	n.cells = make([]Cell, len(g.cells))
	copy(n.cells, g.cells)
	return n
}

// EqualCells reports whether both grids hold identical cell content
func EqualCells(a, b *Grid) bool {
	if a.cols != b.cols || a.rows != b.rows {
		return false
	}
	for i := range a.cells {
		if !a.cells[i].Equal(b.cells[i]) {
			return false
		}
	}
	return true
}

// Resize reallocates the backing store to cols x rows. The intersection with
// the old content is preserved, wide pairs broken by the new right edge are
// repaired, and the rest is cleared. No partial effects: on failure the grid
// is unchanged.
func (g *Grid) Resize(cols, rows int) error {
	if cols == g.cols && rows == g.rows {
		return nil
	}
	cells, err := allocCells(cols, rows)
	if err != nil {
		return err
	}
	resizeInto(cells, cols, rows, g)
	g.cells = cells
	g.cols = cols
	g.rows = rows
	return nil
}

// ResizePair resizes two grid generations together, all-or-nothing: both
// backing stores are allocated before either grid is touched, so the pair
// never ends up at mismatched dimensions.
func ResizePair(a, b *Grid, cols, rows int) error {
	if a == nil || b == nil {
		return errors.Wrap(fault.ErrInvalidArgument, "nil grid in resize pair")
	}
	if cols == a.cols && rows == a.rows && cols == b.cols && rows == b.rows {
		return nil
	}
	ca, err := allocCells(cols, rows)
	if err != nil {
		return err
	}
	cb, err := allocCells(cols, rows)
	if err != nil {
		return err
	}
	resizeInto(ca, cols, rows, a)
	resizeInto(cb, cols, rows, b)
	a.cells, a.cols, a.rows = ca, cols, rows
	b.cells, b.cols, b.rows = cb, cols, rows
	return nil
}

// resizeInto fills dst (cols x rows) with cleared cells, copies the
// intersection from src, and repairs each copied row's wide pairs.
func resizeInto(dst []Cell, cols, rows int, src *Grid) {
	blank := SpaceCell(Style{})
	for i := range dst {
		dst[i] = blank
	}
	copyCols := min(cols, src.cols)
	copyRows := min(rows, src.rows)
	for y := 0; y < copyRows; y++ {
		copy(dst[y*cols:y*cols+copyCols], src.cells[y*src.cols:y*src.cols+copyCols])
		repairRow(dst[y*cols : (y+1)*cols])
	}
}

// repairRow restores the wide-pair invariant along one row: a lead whose
// continuation is missing or cut off becomes a space, and an orphan
// continuation becomes a space.
func repairRow(row []Cell) {
	for x := 0; x < len(row); x++ {
		c := &row[x]
		switch c.Width {
		case WidthWide:
			if x+1 >= len(row) || row[x+1].Width != WidthContinuation {
				*c = SpaceCell(c.Style)
			}
		case WidthContinuation:
			if x == 0 || row[x-1].Width != WidthWide {
				*c = SpaceCell(c.Style)
			}
		}
	}
}
