package drawlist

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/lixenwraith/termcore/fault"
	"github.com/lixenwraith/termcore/grid"
)

// Builder assembles a well-formed command stream: commands, an interned
// string table and a blob table, each 4-aligned, with the header emitted
// last by Build. A built stream always passes Validate as long as the
// builder's limits were respected.
type Builder struct {
	version uint32

	cmd      []byte
	cmdCount uint32

	strings    []byte
	stringSpan []uint32 // off, len pairs
	interned   map[string]uint32

	blobs    []byte
	blobSpan []uint32

	err error
}

// NewBuilder creates a builder targeting the given stream version
func NewBuilder(version uint32) *Builder {
	return &Builder{version: version, interned: make(map[string]uint32)}
}

// Err returns the first recording error, if any. Build also reports it.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func align4(buf []byte) []byte {
	for len(buf)&3 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func putU16(buf []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(buf, v)
}

func putU32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

func putI32(buf []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(v))
}

func putRect(buf []byte, r grid.Rect) []byte {
	buf = putI32(buf, int32(r.X))
	buf = putI32(buf, int32(r.Y))
	buf = putI32(buf, int32(r.W))
	return putI32(buf, int32(r.H))
}

func putStyle(buf []byte, st grid.Style) []byte {
	buf = putU32(buf, rgbToWire(st.Fg))
	buf = putU32(buf, rgbToWire(st.Bg))
	buf = putU32(buf, uint32(st.Attrs))
	return putU32(buf, 0)
}

// record appends a command header and returns the builder for payload writes
func (b *Builder) record(opcode uint16, size uint32) {
	if b.cmdCount >= MaxCommands {
		b.fail(errors.Wrapf(fault.ErrLimit, "%d commands", b.cmdCount))
		return
	}
	b.cmd = putU16(b.cmd, opcode)
	b.cmd = putU16(b.cmd, 0)
	b.cmd = putU32(b.cmd, size)
	b.cmdCount++
}

// Intern adds s to the string table once and returns its index
func (b *Builder) Intern(s string) uint32 {
	if idx, ok := b.interned[s]; ok {
		return idx
	}
	idx := uint32(len(b.stringSpan) / 2)
	if idx >= MaxStrings {
		b.fail(errors.Wrapf(fault.ErrLimit, "%d strings", idx))
		return 0
	}
	b.stringSpan = append(b.stringSpan, uint32(len(b.strings)), uint32(len(s)))
	b.strings = append(b.strings, s...)
	b.strings = align4(b.strings)
	b.interned[s] = idx
	return idx
}

// addBlob appends raw to the blob table and returns its index
func (b *Builder) addBlob(raw []byte) uint32 {
	idx := uint32(len(b.blobSpan) / 2)
	if idx >= MaxBlobs {
		b.fail(errors.Wrapf(fault.ErrLimit, "%d blobs", idx))
		return 0
	}
	b.blobSpan = append(b.blobSpan, uint32(len(b.blobs)), uint32(len(raw)))
	b.blobs = append(b.blobs, raw...)
	b.blobs = align4(b.blobs)
	return idx
}

// Clear records a whole-grid clear to the default style
func (b *Builder) Clear() *Builder {
	b.record(OpClear, sizeClear)
	return b
}

// FillRect records a styled rectangle fill
func (b *Builder) FillRect(r grid.Rect, st grid.Style) *Builder {
	b.record(OpFillRect, sizeFillRect)
	b.cmd = putRect(b.cmd, r)
	b.cmd = putStyle(b.cmd, st)
	return b
}

// DrawText records a styled text write at (x, y)
func (b *Builder) DrawText(x, y int, st grid.Style, text string) *Builder {
	idx := b.Intern(text)
	b.record(OpDrawText, sizeDrawText)
	b.cmd = putI32(b.cmd, int32(x))
	b.cmd = putI32(b.cmd, int32(y))
	b.cmd = putStyle(b.cmd, st)
	b.cmd = putU32(b.cmd, idx)
	b.cmd = putU32(b.cmd, 0)
	b.cmd = putU32(b.cmd, uint32(len(text)))
	b.cmd = putU32(b.cmd, 0)
	return b
}

// PushClip records a clip push
func (b *Builder) PushClip(r grid.Rect) *Builder {
	b.record(OpPushClip, sizePushClip)
	b.cmd = putRect(b.cmd, r)
	return b
}

// PopClip records a clip pop
func (b *Builder) PopClip() *Builder {
	b.record(OpPopClip, sizePopClip)
	return b
}

// RunSeg is one styled segment of a text run
type RunSeg struct {
	Style grid.Style
	Text  string
}

// DrawTextRun records a multi-segment styled run starting at (x, y)
func (b *Builder) DrawTextRun(x, y int, segs []RunSeg) *Builder {
	if uint32(len(segs)) > MaxRunSegs {
		b.fail(errors.Wrapf(fault.ErrLimit, "%d run segments", len(segs)))
		return b
	}
	blob := putU32(nil, uint32(len(segs)))
	for _, seg := range segs {
		idx := b.Intern(seg.Text)
		blob = putStyle(blob, seg.Style)
		blob = putU32(blob, idx)
		blob = putU32(blob, 0)
		blob = putU32(blob, uint32(len(seg.Text)))
	}
	blobIdx := b.addBlob(blob)

	b.record(OpDrawTextRun, sizeDrawTextRun)
	b.cmd = putI32(b.cmd, int32(x))
	b.cmd = putI32(b.cmd, int32(y))
	b.cmd = putU32(b.cmd, blobIdx)
	b.cmd = putU32(b.cmd, 0)
	return b
}

// SetCursor records desired cursor state (version 2 streams only)
func (b *Builder) SetCursor(c grid.Cursor) *Builder {
	if b.version < 2 {
		b.fail(errors.Wrap(fault.ErrUnsupported, "set_cursor requires version 2"))
		return b
	}
	b.record(OpSetCursor, sizeSetCursor)
	b.cmd = putI32(b.cmd, int32(c.X))
	b.cmd = putI32(b.cmd, int32(c.Y))
	flags := [4]byte{c.Shape, 0, 0, 0}
	if c.Visible {
		flags[1] = 1
	}
	if c.Blink {
		flags[2] = 1
	}
	b.cmd = append(b.cmd, flags[:]...)
	b.cmd = putU32(b.cmd, 0)
	return b
}

// CopyRect records an overlap-safe rectangle copy (version 2 streams only)
func (b *Builder) CopyRect(dst, src grid.Rect) *Builder {
	if b.version < 2 {
		b.fail(errors.Wrap(fault.ErrUnsupported, "copy_rect requires version 2"))
		return b
	}
	b.record(OpCopyRect, sizeCopyRect)
	b.cmd = putRect(b.cmd, dst)
	b.cmd = putRect(b.cmd, src)
	return b
}

// Build lays out the sections and emits the final stream
func (b *Builder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	stringsCount := uint32(len(b.stringSpan) / 2)
	blobsCount := uint32(len(b.blobSpan) / 2)

	off := uint32(HeaderSize)
	place := func(size uint32) uint32 {
		if size == 0 {
			return 0
		}
		o := off
		off += size
		return o
	}

	cmdOff := place(uint32(len(b.cmd)))
	strSpanOff := place(stringsCount * 8)
	strBytesOff := place(uint32(len(b.strings)))
	blobSpanOff := place(blobsCount * 8)
	blobBytesOff := place(uint32(len(b.blobs)))
	total := off

	if total > MaxTotalSize {
		return nil, errors.Wrapf(fault.ErrLimit, "stream %d bytes exceeds %d", total, MaxTotalSize)
	}

	out := make([]byte, 0, total)
	for _, v := range []uint32{
		Magic, b.version, HeaderSize, total,
		cmdOff, uint32(len(b.cmd)), b.cmdCount,
		strSpanOff, stringsCount, strBytesOff, uint32(len(b.strings)),
		blobSpanOff, blobsCount, blobBytesOff, uint32(len(b.blobs)),
		0,
	} {
		out = putU32(out, v)
	}
	out = append(out, b.cmd...)
	for _, v := range b.stringSpan {
		out = putU32(out, v)
	}
	out = append(out, b.strings...)
	for _, v := range b.blobSpan {
		out = putU32(out, v)
	}
	out = append(out, b.blobs...)

	if uint32(len(out)) != total {
		return nil, errors.Wrap(fault.ErrInvalidArgument, "builder layout mismatch")
	}
	return out, nil
}
