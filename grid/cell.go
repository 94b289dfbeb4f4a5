// Package grid implements the character-cell grid: cells holding one grapheme
// cluster each, a painter with a bounded clip stack, clip-aware draw
// primitives, an overlap-safe rectangle blit, and atomic resize.
package grid

// RGB represents a 24-bit color
type RGB struct {
	R, G, B uint8
}

// RGBBlack is the zero value black color
var RGBBlack = RGB{0, 0, 0}

// Attr represents text attributes (bitmask)
type Attr uint8

const (
	AttrNone      Attr = 0
	AttrBold      Attr = 1 << 0
	AttrItalic    Attr = 1 << 1
	AttrUnderline Attr = 1 << 2
	AttrReverse   Attr = 1 << 3
	AttrStrike    Attr = 1 << 4
)

// AttrAll masks every attribute bit the engine understands
const AttrAll = AttrBold | AttrItalic | AttrUnderline | AttrReverse | AttrStrike

// Style is the full cell styling: colors plus attribute bits
type Style struct {
	Fg    RGB
	Bg    RGB
	Attrs Attr
}

// GlyphMax is the byte capacity for one grapheme cluster.
// Clusters longer than this are replaced, never truncated mid-sequence.
const GlyphMax = 32

// Cell widths
const (
	WidthContinuation = 0 // trailing half of a wide pair
	WidthNormal       = 1
	WidthWide         = 2 // leading half of a wide pair
)

// Cell is one grid position: the UTF-8 bytes of a single grapheme cluster,
// its display width, and its style. A width-2 cell is always followed in the
// same row by exactly one continuation cell.
type Cell struct {
	Glyph    [GlyphMax]byte
	GlyphLen uint8
	Width    uint8
	Style    Style
}

// SpaceCell returns a width-1 space cell with the given style
func SpaceCell(st Style) Cell {
	c := Cell{GlyphLen: 1, Width: WidthNormal, Style: st}
	c.Glyph[0] = ' '
	return c
}

// GlyphBytes returns the cluster bytes; empty for continuation cells
func (c *Cell) GlyphBytes() []byte {
	return c.Glyph[:c.GlyphLen]
}

// Equal compares content, width and style
func (c Cell) Equal(o Cell) bool {
	if c.Width != o.Width || c.GlyphLen != o.GlyphLen || c.Style != o.Style {
		return false
	}
	for i := uint8(0); i < c.GlyphLen; i++ {
		if c.Glyph[i] != o.Glyph[i] {
			return false
		}
	}
	return true
}

// Rect is the shared rectangle type for clip and draw ops
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rect covers no cells
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains reports whether (x, y) lies inside the rect
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

// Intersect returns the overlap of two rects; empty when they do not meet
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.W, o.X+o.W)
	y1 := min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Cursor shapes
const (
	ShapeDefault   = 0
	ShapeBlock     = 1
	ShapeUnderline = 2
	ShapeBar       = 3
)

// Cursor is the grid's cursor metadata. X/Y of -1 mean "leave unchanged".
// Cursor state is carried alongside cell content but never affects diffing
// of cells themselves.
type Cursor struct {
	X, Y    int
	Shape   uint8
	Visible bool
	Blink   bool
}

// DefaultCursor leaves position untouched and the cursor hidden
func DefaultCursor() Cursor {
	return Cursor{X: -1, Y: -1}
}
