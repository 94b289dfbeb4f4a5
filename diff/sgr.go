package diff

import (
	"bytes"

	"github.com/lixenwraith/termcore/grid"
)

// Pre-allocated escape sequence fragments (avoid allocations during render)
var (
	csi     = []byte("\x1b[")
	csiSGR0 = []byte("\x1b[0m")

	csiCursorShow = []byte("\x1b[?25h")
	csiCursorHide = []byte("\x1b[?25l")

	csiRegionReset = []byte("\x1b[r")
)

// emitter assembles the output byte stream while tracking the terminal
// model: cursor position and the last emitted (already degraded) style.
type emitter struct {
	buf  bytes.Buffer
	caps Caps

	x, y     int
	posValid bool

	last       styleKey
	styleValid bool
}

func newEmitter(caps Caps, st *TermState) *emitter {
	return &emitter{
		caps:       caps,
		x:          st.X,
		y:          st.Y,
		posValid:   st.PosValid,
		last:       st.Style,
		styleValid: st.StyleValid,
	}
}

// writeInt writes an integer without allocation
// Optimized for terminal values (0-255 common, 0-9999 typical max)
func (e *emitter) writeInt(n int) {
	if n < 0 {
		n = 0
	}
	if n < 10 {
		e.buf.WriteByte(byte(n) + '0')
		return
	}
	if n < 100 {
		e.buf.WriteByte(byte(n/10) + '0')
		e.buf.WriteByte(byte(n%10) + '0')
		return
	}
	if n < 1000 {
		e.buf.WriteByte(byte(n/100) + '0')
		e.buf.WriteByte(byte(n/10%10) + '0')
		e.buf.WriteByte(byte(n%10) + '0')
		return
	}
	var tmp [8]byte
	i := 7
	for n > 0 {
		tmp[i] = byte(n%10) + '0'
		n /= 10
		i--
	}
	e.buf.Write(tmp[i+1:])
}

// cup positions the cursor at (x, y), 0-indexed. Skipped entirely when the
// tracked cursor is already there; a short forward move is used when the
// target is ahead on the same row.
func (e *emitter) cup(x, y int) {
	if e.posValid && x == e.x && y == e.y {
		return
	}
	if e.posValid && y == e.y && x > e.x {
		n := x - e.x
		if n == 1 {
			e.buf.WriteString("\x1b[C")
		} else {
			e.buf.Write(csi)
			e.writeInt(n)
			e.buf.WriteByte('C')
		}
	} else {
		e.buf.Write(csi)
		e.writeInt(y + 1)
		e.buf.WriteByte(';')
		e.writeInt(x + 1)
		e.buf.WriteByte('H')
	}
	e.x, e.y = x, y
	e.posValid = true
}

// attrCodes in SGR parameter order
var attrCodes = []struct {
	bit  grid.Attr
	code byte
}{
	{grid.AttrBold, '1'},
	{grid.AttrItalic, '3'},
	{grid.AttrUnderline, '4'},
	{grid.AttrReverse, '7'},
	{grid.AttrStrike, '9'},
}

// style brings the terminal's style to k, emitting nothing when it already
// matches. Attribute removals force an absolute sequence; additions and
// color changes go out as a delta.
func (e *emitter) style(k styleKey) {
	if e.styleValid && k == e.last {
		return
	}
	if !e.styleValid || e.last.attrs&^k.attrs != 0 {
		e.sgrAbsolute(k)
	} else {
		e.sgrDelta(k)
	}
	e.last = k
	e.styleValid = true
}

// sgrAbsolute emits a single reset-based combined SGR sequence
func (e *emitter) sgrAbsolute(k styleKey) {
	e.buf.Write(csi)
	e.buf.WriteByte('0')
	for _, a := range attrCodes {
		if k.attrs&a.bit != 0 {
			e.buf.WriteByte(';')
			e.buf.WriteByte(a.code)
		}
	}
	e.colorParams(k.fg, true)
	e.colorParams(k.bg, false)
	e.buf.WriteByte('m')
}

// sgrDelta emits only added attributes and changed colors
func (e *emitter) sgrDelta(k styleKey) {
	e.buf.Write(csi)
	first := true
	sep := func() {
		if !first {
			e.buf.WriteByte(';')
		}
		first = false
	}
	added := k.attrs &^ e.last.attrs
	for _, a := range attrCodes {
		if added&a.bit != 0 {
			sep()
			e.buf.WriteByte(a.code)
		}
	}
	if k.fg != e.last.fg {
		sep()
		e.colorParamsBare(k.fg, true)
	}
	if k.bg != e.last.bg {
		sep()
		e.colorParamsBare(k.bg, false)
	}
	if first {
		// Nothing actually differed at this tier; keep the stream clean
		e.buf.Truncate(e.buf.Len() - len(csi))
		return
	}
	e.buf.WriteByte('m')
}

// colorParams writes ";<params>" for one encoded color, nothing for mono
func (e *emitter) colorParams(c uint32, fg bool) {
	if c&0xFF000000 == colorTagNone {
		return
	}
	e.buf.WriteByte(';')
	e.colorParamsBare(c, fg)
}

// colorParamsBare writes the SGR parameters for one encoded color
func (e *emitter) colorParamsBare(c uint32, fg bool) {
	switch c & 0xFF000000 {
	case colorTagRGB:
		if fg {
			e.buf.WriteString("38;2;")
		} else {
			e.buf.WriteString("48;2;")
		}
		e.writeInt(int(c >> 16 & 0xFF))
		e.buf.WriteByte(';')
		e.writeInt(int(c >> 8 & 0xFF))
		e.buf.WriteByte(';')
		e.writeInt(int(c & 0xFF))
	case colorTag256:
		if fg {
			e.buf.WriteString("38;5;")
		} else {
			e.buf.WriteString("48;5;")
		}
		e.writeInt(int(c & 0xFF))
	case colorTag16:
		idx := int(c & 0xFF)
		base := 30
		if idx >= 8 {
			base = 90
			idx -= 8
		}
		if !fg {
			base += 10
		}
		e.writeInt(base + idx)
	}
}

// cell writes one cell's glyph, advancing the tracked cursor by its width.
// Continuation cells are never passed here.
func (e *emitter) cell(c *grid.Cell) {
	e.style(applyCaps(c.Style, e.caps))
	if c.GlyphLen == 0 {
		e.buf.WriteByte(' ')
	} else {
		e.buf.Write(c.GlyphBytes())
	}
	e.x += int(c.Width)
}

// scrollRegion emits a DECSTBM-bracketed scroll: region [top, bot]
// (0-indexed, inclusive), n lines up (n > 0) or down (n < 0).
// DECSTBM homes the cursor, so the tracked position becomes invalid.
func (e *emitter) scrollRegion(top, bot, n int) {
	e.buf.Write(csi)
	e.writeInt(top + 1)
	e.buf.WriteByte(';')
	e.writeInt(bot + 1)
	e.buf.WriteByte('r')
	e.buf.Write(csi)
	if n > 0 {
		e.writeInt(n)
		e.buf.WriteByte('S')
	} else {
		e.writeInt(-n)
		e.buf.WriteByte('T')
	}
	e.buf.Write(csiRegionReset)
	e.posValid = false
}

// cursorVisible emits show/hide
func (e *emitter) cursorVisible(v bool) {
	if v {
		e.buf.Write(csiCursorShow)
	} else {
		e.buf.Write(csiCursorHide)
	}
}

// cursorShape emits DECSCUSR: ESC [ n SP q
func (e *emitter) cursorShape(shape uint8, blink bool) {
	n := 0
	switch shape {
	case grid.ShapeBlock:
		n = 2
	case grid.ShapeUnderline:
		n = 4
	case grid.ShapeBar:
		n = 6
	}
	if n != 0 && blink {
		n--
	}
	e.buf.Write(csi)
	e.writeInt(n)
	e.buf.WriteString(" q")
}
