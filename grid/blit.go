package grid

import (
	"github.com/pkg/errors"

	"github.com/lixenwraith/termcore/fault"
)

// BlitRect copies the cells of src to dst within the same grid, memmove-like:
// overlapping regions produce the same result as copying through a detached
// scratch buffer. Copy direction is chosen from the relative position of the
// rectangles so no source cell is read after it has been overwritten.
// Continuation cells are skipped as sources; a wide lead writes its whole
// pair, subject to the destination clip and the usual replacement policy.
func (p *Painter) BlitRect(dst, src Rect) error {
	if dst.W != src.W || dst.H != src.H {
		return errors.Wrap(fault.ErrInvalidArgument, "blit rect shape mismatch")
	}
	if src.Empty() {
		return nil
	}

	// Clamp the source to grid bounds and shift the destination to match
	bounds := p.g.Bounds()
	clamped := src.Intersect(bounds)
	if clamped.Empty() {
		return nil
	}
	dst.X += clamped.X - src.X
	dst.Y += clamped.Y - src.Y
	dst.W, dst.H = clamped.W, clamped.H
	src = clamped

	bottomUp := dst.Y > src.Y
	rightToLeft := dst.Y == src.Y && dst.X > src.X

	for row := 0; row < src.H; row++ {
		y := row
		if bottomUp {
			y = src.H - 1 - row
		}
		p.blitRow(dst, src, y, rightToLeft)
	}
	return nil
}

// blitRow copies one row of the blit, honoring the column direction
func (p *Painter) blitRow(dst, src Rect, row int, rightToLeft bool) {
	sy := src.Y + row
	dy := dst.Y + row
	for col := 0; col < src.W; col++ {
		x := col
		if rightToLeft {
			x = src.W - 1 - col
		}
		sc, ok := p.g.At(src.X+x, sy)
		if !ok || sc.Width == WidthContinuation {
			continue
		}
		dx := dst.X + x
		clip := p.Clip()
		if !clip.Contains(dx, dy) {
			continue
		}
		if sc.Width == WidthWide {
			// The pair must land whole inside the destination rect too,
			// otherwise the trailing cell would escape the copied region
			if dx+1 >= dst.X+dst.W || !clip.Contains(dx+1, dy) {
				p.writeWidth1(dx, dy, replacementCell(sc.Style))
				continue
			}
			p.writeWidth2(dx, dy, sc)
			continue
		}
		p.writeWidth1(dx, dy, sc)
	}
}
