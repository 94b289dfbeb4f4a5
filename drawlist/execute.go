package drawlist

import (
	"github.com/pkg/errors"

	"github.com/lixenwraith/termcore/fault"
	"github.com/lixenwraith/termcore/grid"
)

// Execute validates buf and applies it to g. The whole stream applies or
// none of it is observable: commands run against a detached scratch copy
// which is committed only after every record succeeds. On any error the
// caller's grid is byte-identical to its pre-call contents.
func Execute(buf []byte, g *grid.Grid) error {
	d, err := Validate(buf)
	if err != nil {
		return err
	}
	return d.Apply(g)
}

// Apply runs an already-validated stream against g with the same
// no-partial-effects guarantee as Execute. It clones a scratch grid per
// call; frame loops that must not allocate use ApplyInto with a retained
// scratch instead.
func (d *Drawlist) Apply(g *grid.Grid) error {
	if g == nil {
		return errors.Wrap(fault.ErrInvalidArgument, "nil grid")
	}
	return d.ApplyInto(g, g.Clone())
}

// ApplyInto is Apply with a caller-owned scratch grid of the same
// dimensions as g, reused across frames. scratch's prior contents are
// overwritten; on error g is untouched and scratch holds partial state.
func (d *Drawlist) ApplyInto(g, scratch *grid.Grid) error {
	if g == nil || scratch == nil {
		return errors.Wrap(fault.ErrInvalidArgument, "nil grid")
	}
	if err := scratch.CopyFrom(g); err != nil {
		return err
	}
	p, err := grid.NewPainter(scratch)
	if err != nil {
		return err
	}

	for i := range d.Records {
		if err := d.apply(p, scratch, &d.Records[i]); err != nil {
			return errors.Wrapf(err, "command %d", i)
		}
	}
	return g.CopyFrom(scratch)
}

// apply dispatches one validated record. Framing and payload shape were
// checked by Validate; only grid-level effects happen here.
func (d *Drawlist) apply(p *grid.Painter, g *grid.Grid, rec *Record) error {
	data := rec.Data
	switch rec.Opcode {
	case OpClear:
		g.Clear(grid.Style{})
		return nil

	case OpFillRect:
		return p.FillRect(rectAt(data, 8), styleAt(data, 24))

	case OpDrawText:
		st := styleAt(data, 16)
		s := d.String(u32At(data, 32))
		text := s[u32At(data, 36) : u32At(data, 36)+u32At(data, 40)]
		_, err := p.DrawText(int(i32At(data, 8)), int(i32At(data, 12)), text, st)
		return err

	case OpPushClip:
		return p.PushClip(rectAt(data, 8))

	case OpPopClip:
		// Balance was simulated during validation; a failure here means the
		// stream view was built by hand, treat it as malformed
		if err := p.PopClip(); err != nil {
			return errors.Wrap(fault.ErrFormat, "unbalanced clip pop")
		}
		return nil

	case OpDrawTextRun:
		return d.applyTextRun(p, data)

	case OpSetCursor:
		g.SetCursor(grid.Cursor{
			X:       int(i32At(data, 8)),
			Y:       int(i32At(data, 12)),
			Shape:   data[16],
			Visible: data[17] != 0,
			Blink:   data[18] != 0,
		})
		return nil

	case OpCopyRect:
		return p.BlitRect(rectAt(data, 8), rectAt(data, 24))

	default:
		return errors.Wrapf(fault.ErrUnsupported, "opcode %d", rec.Opcode)
	}
}

// applyTextRun draws each styled segment of a run in order, advancing the
// write column across segments. Advancement never depends on clipping, so a
// clipped prefix keeps the visible suffix aligned.
func (d *Drawlist) applyTextRun(p *grid.Painter, data []byte) error {
	x := int(i32At(data, 8))
	y := int(i32At(data, 12))
	blob := d.Blob(u32At(data, 16))

	segs := u32At(blob, 0)
	for s := uint32(0); s < segs; s++ {
		off := 4 + s*textRunSegSize
		st := styleAt(blob, off)
		str := d.String(u32At(blob, off+16))
		text := str[u32At(blob, off+20) : u32At(blob, off+20)+u32At(blob, off+24)]
		var err error
		x, err = p.DrawText(x, y, text, st)
		if err != nil {
			return err
		}
	}
	return nil
}
