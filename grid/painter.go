package grid

import (
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"
	"github.com/rivo/uniseg"

	"github.com/lixenwraith/termcore/fault"
)

// MaxClipDepth caps the painter clip stack
const MaxClipDepth = 64

// TabWidth is the tab stop interval used by text runs
const TabWidth = 8

// Painter draws into a grid through a clip stack. The effective clip is the
// intersection of the grid bounds and every pushed rectangle; it is stored
// pre-intersected per entry so the top is always the effective region.
//
// Invariant-repair exception: overwriting one half of a wide pair clears
// exactly the one adjacent pair cell, even when that cell lies outside the
// clip. No other out-of-clip mutation occurs.
type Painter struct {
	g    *Grid
	clip []Rect
}

// NewPainter begins painting on g with the full grid bounds as the base clip
func NewPainter(g *Grid) (*Painter, error) {
	if g == nil {
		return nil, errors.Wrap(fault.ErrInvalidArgument, "nil grid")
	}
	p := &Painter{g: g, clip: make([]Rect, 1, 8)}
	p.clip[0] = g.Bounds()
	return p, nil
}

// Depth returns the number of pushed clips (the base bounds excluded)
func (p *Painter) Depth() int { return len(p.clip) - 1 }

// Clip returns the current effective clip rectangle
func (p *Painter) Clip() Rect { return p.clip[len(p.clip)-1] }

// PushClip narrows the effective clip to its intersection with r
func (p *Painter) PushClip(r Rect) error {
	if p.Depth() >= MaxClipDepth {
		return errors.Wrapf(fault.ErrLimit, "clip stack depth %d", MaxClipDepth)
	}
	p.clip = append(p.clip, p.Clip().Intersect(r))
	return nil
}

// PopClip restores the previous clip. Popping the base bounds is an error.
func (p *Painter) PopClip() error {
	if p.Depth() == 0 {
		return errors.Wrap(fault.ErrLimit, "clip stack underflow")
	}
	p.clip = p.clip[:len(p.clip)-1]
	return nil
}

// clearPairCell blanks one cell during pair repair, keeping its style
func (p *Painter) clearPairCell(x, y int) {
	if c := p.g.cell(x, y); c != nil {
		*c = SpaceCell(c.Style)
	}
}

// writeWidth1 stores a width-1 cell at (x, y), repairing any wide pair it
// overwrites. The caller has already clip-checked (x, y).
func (p *Painter) writeWidth1(x, y int, c Cell) {
	dst := p.g.cell(x, y)
	if dst == nil {
		return
	}
	switch dst.Width {
	case WidthContinuation:
		p.clearPairCell(x-1, y)
	case WidthWide:
		p.clearPairCell(x+1, y)
	}
	*dst = c
}

// writeWidth2 stores a wide pair at (x, y) and (x+1, y). The caller has
// already verified both positions are inside bounds and clip.
func (p *Painter) writeWidth2(x, y int, lead Cell) {
	dst := p.g.cell(x, y)
	next := p.g.cell(x+1, y)
	if dst == nil || next == nil {
		return
	}
	if dst.Width == WidthContinuation {
		p.clearPairCell(x-1, y)
	}
	if next.Width == WidthWide {
		p.clearPairCell(x+2, y)
	}
	*dst = lead
	*next = Cell{Width: WidthContinuation, Style: lead.Style}
}

// replacementCell is a U+FFFD width-1 cell in the given style
func replacementCell(st Style) Cell {
	c := Cell{Width: WidthNormal, Style: st}
	c.GlyphLen = uint8(utf8.EncodeRune(c.Glyph[:], utf8.RuneError))
	return c
}

// PutGrapheme writes one already-segmented grapheme cluster at (x, y).
// width must be 1 or 2. Replacement policy:
//   - empty cluster becomes a single space
//   - cluster longer than GlyphMax becomes U+FFFD width 1
//   - a wide cluster whose continuation cell cannot fit inside bounds and
//     clip becomes U+FFFD width 1
//
// Writes fully outside the clip are dropped silently.
func (p *Painter) PutGrapheme(x, y int, cluster []byte, width int, st Style) error {
	if width != WidthNormal && width != WidthWide {
		return errors.Wrapf(fault.ErrInvalidArgument, "grapheme width %d", width)
	}
	clip := p.Clip()
	if !clip.Contains(x, y) {
		return nil
	}
	if len(cluster) == 0 {
		p.writeWidth1(x, y, SpaceCell(st))
		return nil
	}
	if len(cluster) > GlyphMax {
		p.writeWidth1(x, y, replacementCell(st))
		return nil
	}
	if width == WidthWide {
		if !clip.Contains(x+1, y) {
			p.writeWidth1(x, y, replacementCell(st))
			return nil
		}
		lead := Cell{GlyphLen: uint8(len(cluster)), Width: WidthWide, Style: st}
		copy(lead.Glyph[:], cluster)
		p.writeWidth2(x, y, lead)
		return nil
	}
	c := Cell{GlyphLen: uint8(len(cluster)), Width: WidthNormal, Style: st}
	copy(c.Glyph[:], cluster)
	p.writeWidth1(x, y, c)
	return nil
}

// FillRect fills the clipped rectangle with styled space cells
func (p *Painter) FillRect(r Rect, st Style) error {
	eff := p.Clip().Intersect(r)
	if eff.Empty() {
		return nil
	}
	blank := SpaceCell(st)
	for y := eff.Y; y < eff.Y+eff.H; y++ {
		for x := eff.X; x < eff.X+eff.W; x++ {
			p.writeWidth1(x, y, blank)
		}
	}
	return nil
}

// HLine draws a horizontal run of one cluster starting at (x, y)
func (p *Painter) HLine(x, y, length int, cluster []byte, st Style) error {
	for i := 0; i < length; i++ {
		if err := p.PutGrapheme(x+i, y, cluster, WidthNormal, st); err != nil {
			return err
		}
	}
	return nil
}

// VLine draws a vertical run of one cluster starting at (x, y)
func (p *Painter) VLine(x, y, length int, cluster []byte, st Style) error {
	for i := 0; i < length; i++ {
		if err := p.PutGrapheme(x, y+i, cluster, WidthNormal, st); err != nil {
			return err
		}
	}
	return nil
}

// Box draws a single-line box along the edges of r
func (p *Painter) Box(r Rect, st Style) error {
	if r.W < 2 || r.H < 2 {
		return nil
	}
	x1 := r.X + r.W - 1
	y1 := r.Y + r.H - 1
	p.PutGrapheme(r.X, r.Y, []byte("┌"), WidthNormal, st)
	p.PutGrapheme(x1, r.Y, []byte("┐"), WidthNormal, st)
	p.PutGrapheme(r.X, y1, []byte("└"), WidthNormal, st)
	p.PutGrapheme(x1, y1, []byte("┘"), WidthNormal, st)
	p.HLine(r.X+1, r.Y, r.W-2, []byte("─"), st)
	p.HLine(r.X+1, y1, r.W-2, []byte("─"), st)
	p.VLine(r.X, r.Y+1, r.H-2, []byte("│"), st)
	p.VLine(x1, r.Y+1, r.H-2, []byte("│"), st)
	return nil
}

// safeScalar rejects scalars a terminal would interpret as control data
func safeScalar(r rune) bool {
	if r < 0x20 || r == 0x7F {
		return false
	}
	if r >= 0x80 && r <= 0x9F {
		return false
	}
	return true
}

// clusterSafe reports whether every scalar in the cluster is printable
func clusterSafe(cluster []byte) bool {
	for i := 0; i < len(cluster); {
		r, n := utf8.DecodeRune(cluster[i:])
		if r == utf8.RuneError && n <= 1 {
			return false
		}
		if !safeScalar(r) {
			return false
		}
		i += n
	}
	return true
}

// ClusterWidth returns the display width (1 or 2) of one grapheme cluster.
// Zero-width clusters occupy one cell; nothing in a cell grid renders at
// width zero on its own.
func ClusterWidth(cluster []byte) int {
	w := runewidth.StringWidth(string(cluster))
	if w >= 2 {
		return WidthWide
	}
	return WidthNormal
}

// DrawText writes UTF-8 text as grapheme clusters starting at (x, y).
// Tabs advance to the next TabWidth stop without writing. Control scalars
// and invalid UTF-8 render as U+FFFD. Cursor advancement never depends on
// clipping: clipped clusters still advance x so unclipped text keeps its
// layout. Returns the column after the last cluster.
func (p *Painter) DrawText(x, y int, text []byte, st Style) (int, error) {
	state := -1
	rest := text
	for len(rest) > 0 {
		var cluster []byte
		cluster, rest, _, state = uniseg.FirstGraphemeCluster(rest, state)
		if len(cluster) == 1 && cluster[0] == '\t' {
			x = ((x / TabWidth) + 1) * TabWidth
			continue
		}
		if !clusterSafe(cluster) {
			// Replacement for unsafe input, not a blank
			if err := p.PutGrapheme(x, y, []byte("�"), WidthNormal, st); err != nil {
				return x, err
			}
			x++
			continue
		}
		w := ClusterWidth(cluster)
		if err := p.PutGrapheme(x, y, cluster, w, st); err != nil {
			return x, err
		}
		x += w
	}
	return x, nil
}

// CountCells returns the number of columns DrawText would advance for text,
// starting from column x (tab stops depend on the start column).
func CountCells(x int, text []byte) int {
	start := x
	state := -1
	rest := text
	for len(rest) > 0 {
		var cluster []byte
		cluster, rest, _, state = uniseg.FirstGraphemeCluster(rest, state)
		if len(cluster) == 1 && cluster[0] == '\t' {
			x = ((x / TabWidth) + 1) * TabWidth
			continue
		}
		if !clusterSafe(cluster) {
			x++
			continue
		}
		x += ClusterWidth(cluster)
	}
	return x - start
}
