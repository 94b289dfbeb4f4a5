package drawlist

import (
	"github.com/pkg/errors"

	"github.com/lixenwraith/termcore/fault"
	"github.com/lixenwraith/termcore/grid"
)

// Record is one validated command: the opcode plus the framed record bytes
// (header included) as a read-only view into the stream buffer.
type Record struct {
	Opcode uint16
	Data   []byte
}

// Drawlist is the fully validated view of a command stream. Every record,
// string span and blob span has been bounds-checked; execution never
// re-checks framing.
type Drawlist struct {
	Version uint32
	Records []Record

	strings [][]byte
	blobs   [][]byte
}

// String returns the bytes of interned string i
func (d *Drawlist) String(i uint32) []byte { return d.strings[i] }

// Blob returns the bytes of blob i
func (d *Drawlist) Blob(i uint32) []byte { return d.blobs[i] }

// Validate parses and checks a command stream without touching any grid.
// It returns a structured view on success, or the first error found:
// ErrFormat for malformed input, ErrUnsupported for version-gated or unknown
// opcodes, ErrLimit for streams over the configured caps.
func Validate(buf []byte) (*Drawlist, error) {
	if len(buf) == 0 {
		return nil, errors.Wrap(fault.ErrInvalidArgument, "empty stream")
	}
	if len(buf) > MaxTotalSize {
		return nil, errors.Wrapf(fault.ErrLimit, "stream %d bytes exceeds %d", len(buf), MaxTotalSize)
	}
	if len(buf) < HeaderSize {
		return nil, errors.Wrapf(fault.ErrFormat, "stream %d bytes shorter than header", len(buf))
	}

	h := decodeHeader(buf)
	if err := checkHeader(h, uint32(len(buf))); err != nil {
		return nil, err
	}

	d := &Drawlist{Version: h.version}

	var err error
	if d.strings, err = resolveSpans(buf, h.stringsSpanOff, h.stringsCount, h.stringsBytesOff, h.stringsBytesLen, "string"); err != nil {
		return nil, err
	}
	if d.blobs, err = resolveSpans(buf, h.blobsSpanOff, h.blobsCount, h.blobsBytesOff, h.blobsBytesLen, "blob"); err != nil {
		return nil, err
	}

	if err := d.walkCommands(buf, h); err != nil {
		return nil, err
	}
	return d, nil
}

// checkHeader verifies the fixed header fields and section layout
func checkHeader(h header, bufLen uint32) error {
	if h.magic != Magic {
		return errors.Wrapf(fault.ErrFormat, "bad magic 0x%08X", h.magic)
	}
	if h.version < VersionMin {
		return errors.Wrapf(fault.ErrFormat, "version %d", h.version)
	}
	if h.version > VersionMax {
		return errors.Wrapf(fault.ErrUnsupported, "stream version %d, engine supports up to %d", h.version, VersionMax)
	}
	if h.headerSize != HeaderSize {
		return errors.Wrapf(fault.ErrFormat, "header size %d", h.headerSize)
	}
	if h.totalSize != bufLen {
		return errors.Wrapf(fault.ErrFormat, "declared size %d, buffer %d", h.totalSize, bufLen)
	}
	if !aligned4(h.totalSize) {
		return errors.Wrapf(fault.ErrFormat, "misaligned stream size %d", h.totalSize)
	}
	if h.reserved0 != 0 {
		return errors.Wrap(fault.ErrFormat, "nonzero reserved header field")
	}
	if h.cmdCount > MaxCommands {
		return errors.Wrapf(fault.ErrLimit, "%d commands exceeds %d", h.cmdCount, MaxCommands)
	}
	if h.stringsCount > MaxStrings {
		return errors.Wrapf(fault.ErrLimit, "%d strings exceeds %d", h.stringsCount, MaxStrings)
	}
	if h.blobsCount > MaxBlobs {
		return errors.Wrapf(fault.ErrLimit, "%d blobs exceeds %d", h.blobsCount, MaxBlobs)
	}

	for _, v := range []uint32{
		h.cmdOffset, h.cmdBytes,
		h.stringsSpanOff, h.stringsBytesOff, h.stringsBytesLen,
		h.blobsSpanOff, h.blobsBytesOff, h.blobsBytesLen,
	} {
		if !aligned4(v) {
			return errors.Wrap(fault.ErrFormat, "misaligned section field")
		}
	}

	// Zero counts require zero offsets and lengths
	if h.cmdCount == 0 && (h.cmdOffset != 0 || h.cmdBytes != 0) {
		return errors.Wrap(fault.ErrFormat, "command section declared with zero commands")
	}
	if h.cmdCount != 0 && h.cmdBytes == 0 {
		return errors.Wrap(fault.ErrFormat, "commands declared with empty command section")
	}
	if h.stringsCount == 0 && (h.stringsSpanOff != 0 || h.stringsBytesOff != 0 || h.stringsBytesLen != 0) {
		return errors.Wrap(fault.ErrFormat, "string section declared with zero strings")
	}
	if h.blobsCount == 0 && (h.blobsSpanOff != 0 || h.blobsBytesOff != 0 || h.blobsBytesLen != 0) {
		return errors.Wrap(fault.ErrFormat, "blob section declared with zero blobs")
	}

	// Section ranges: inside the buffer, past the header, pairwise disjoint
	type section struct {
		off, size uint32
	}
	sections := []section{
		{h.cmdOffset, h.cmdBytes},
		{h.stringsSpanOff, h.stringsCount * 8},
		{h.stringsBytesOff, h.stringsBytesLen},
		{h.blobsSpanOff, h.blobsCount * 8},
		{h.blobsBytesOff, h.blobsBytesLen},
	}
	var nonEmpty []section
	for _, s := range sections {
		// Every declared range must resolve inside the stream, empty ones
		// included: an empty section still carries an offset that later
		// slicing trusts
		if uint64(s.off)+uint64(s.size) > uint64(h.totalSize) {
			return errors.Wrap(fault.ErrFormat, "section exceeds stream")
		}
		if s.size == 0 {
			continue
		}
		if s.off < HeaderSize {
			return errors.Wrap(fault.ErrFormat, "section overlaps header")
		}
		nonEmpty = append(nonEmpty, s)
	}
	for i := 0; i < len(nonEmpty); i++ {
		for j := i + 1; j < len(nonEmpty); j++ {
			a, b := nonEmpty[i], nonEmpty[j]
			if a.off < b.off+b.size && b.off < a.off+a.size {
				return errors.Wrap(fault.ErrFormat, "overlapping sections")
			}
		}
	}
	return nil
}

// resolveSpans validates a span table and returns the referenced byte slices
func resolveSpans(buf []byte, spanOff, count, bytesOff, bytesLen uint32, kind string) ([][]byte, error) {
	if count == 0 {
		return nil, nil
	}
	out := make([][]byte, count)
	for i := uint32(0); i < count; i++ {
		off := u32At(buf, spanOff+i*8)
		ln := u32At(buf, spanOff+i*8+4)
		if uint64(off)+uint64(ln) > uint64(bytesLen) {
			return nil, errors.Wrapf(fault.ErrFormat, "%s span %d out of section", kind, i)
		}
		out[i] = buf[bytesOff+off : bytesOff+off+ln]
	}
	return out, nil
}

// walkCommands frames every record and dispatches per-opcode payload checks,
// simulating clip balance along the way.
func (d *Drawlist) walkCommands(buf []byte, h header) error {
	d.Records = make([]Record, 0, h.cmdCount)
	off := uint32(0)
	clipDepth := 0

	for i := uint32(0); i < h.cmdCount; i++ {
		if h.cmdBytes-off < recordHeaderSize {
			return errors.Wrapf(fault.ErrFormat, "command %d truncated", i)
		}
		base := h.cmdOffset + off
		opcode := u16At(buf, base)
		flags := u16At(buf, base+2)
		size := u32At(buf, base+4)

		if flags != 0 {
			return errors.Wrapf(fault.ErrFormat, "command %d has flags 0x%04X", i, flags)
		}
		if size < recordHeaderSize || !aligned4(size) {
			return errors.Wrapf(fault.ErrFormat, "command %d size %d", i, size)
		}
		if uint64(off)+uint64(size) > uint64(h.cmdBytes) {
			return errors.Wrapf(fault.ErrFormat, "command %d runs past command section", i)
		}

		rec := buf[base : base+size]
		var err error
		clipDepth, err = d.checkCommand(i, opcode, rec, h.version, clipDepth)
		if err != nil {
			return err
		}

		d.Records = append(d.Records, Record{Opcode: opcode, Data: rec})
		off += size
	}

	if off != h.cmdBytes {
		return errors.Wrapf(fault.ErrFormat, "%d trailing command bytes", h.cmdBytes-off)
	}
	if clipDepth != 0 {
		return errors.Wrapf(fault.ErrFormat, "%d unmatched clip pushes", clipDepth)
	}
	return nil
}

// checkCommand validates one record's payload contract and returns the
// updated simulated clip depth.
func (d *Drawlist) checkCommand(i uint32, opcode uint16, rec []byte, version uint32, clipDepth int) (int, error) {
	fixed := func(want int) error {
		if len(rec) != want {
			return errors.Wrapf(fault.ErrFormat, "command %d opcode %d size %d, want %d", i, opcode, len(rec), want)
		}
		return nil
	}

	switch opcode {
	case OpClear:
		return clipDepth, fixed(sizeClear)

	case OpFillRect:
		if err := fixed(sizeFillRect); err != nil {
			return clipDepth, err
		}
		return clipDepth, checkStyle(i, rec, 24)

	case OpDrawText:
		if err := fixed(sizeDrawText); err != nil {
			return clipDepth, err
		}
		if err := checkStyle(i, rec, 16); err != nil {
			return clipDepth, err
		}
		return clipDepth, d.checkStringSlice(i, u32At(rec, 32), u32At(rec, 36), u32At(rec, 40))

	case OpPushClip:
		if err := fixed(sizePushClip); err != nil {
			return clipDepth, err
		}
		if clipDepth >= grid.MaxClipDepth {
			return clipDepth, errors.Wrapf(fault.ErrLimit, "command %d exceeds clip depth %d", i, grid.MaxClipDepth)
		}
		return clipDepth + 1, nil

	case OpPopClip:
		if err := fixed(sizePopClip); err != nil {
			return clipDepth, err
		}
		if clipDepth == 0 {
			return clipDepth, errors.Wrapf(fault.ErrFormat, "command %d pops an empty clip stack", i)
		}
		return clipDepth - 1, nil

	case OpDrawTextRun:
		if err := fixed(sizeDrawTextRun); err != nil {
			return clipDepth, err
		}
		return clipDepth, d.checkTextRunBlob(i, u32At(rec, 16))

	case OpSetCursor:
		if version < 2 {
			return clipDepth, errors.Wrapf(fault.ErrUnsupported, "set_cursor requires version 2, stream is %d", version)
		}
		if err := fixed(sizeSetCursor); err != nil {
			return clipDepth, err
		}
		return clipDepth, checkCursor(i, rec)

	case OpCopyRect:
		if version < 2 {
			return clipDepth, errors.Wrapf(fault.ErrUnsupported, "copy_rect requires version 2, stream is %d", version)
		}
		return clipDepth, fixed(sizeCopyRect)

	case 0:
		return clipDepth, errors.Wrapf(fault.ErrFormat, "command %d has reserved opcode 0", i)

	default:
		return clipDepth, errors.Wrapf(fault.ErrUnsupported, "command %d opcode %d", i, opcode)
	}
}

// checkStyle validates a 16-byte wire style at off within rec
func checkStyle(i uint32, rec []byte, off uint32) error {
	attrs := u32At(rec, off+8)
	if attrs&^uint32(grid.AttrAll) != 0 {
		return errors.Wrapf(fault.ErrFormat, "command %d unknown attribute bits 0x%X", i, attrs)
	}
	if u32At(rec, off+12) != 0 {
		return errors.Wrapf(fault.ErrFormat, "command %d nonzero style reserved field", i)
	}
	return nil
}

// checkCursor validates a set_cursor payload
func checkCursor(i uint32, rec []byte) error {
	x := i32At(rec, 8)
	y := i32At(rec, 12)
	if x < -1 || y < -1 {
		return errors.Wrapf(fault.ErrFormat, "command %d cursor position %d,%d", i, x, y)
	}
	if rec[16] > grid.ShapeBar {
		return errors.Wrapf(fault.ErrFormat, "command %d cursor shape %d", i, rec[16])
	}
	if rec[17] > 1 || rec[18] > 1 || rec[19] != 0 {
		return errors.Wrapf(fault.ErrFormat, "command %d cursor flags", i)
	}
	if u32At(rec, 20) != 0 {
		return errors.Wrapf(fault.ErrFormat, "command %d nonzero cursor reserved field", i)
	}
	return nil
}

// checkStringSlice validates a byte range within interned string idx
func (d *Drawlist) checkStringSlice(i, idx, byteOff, byteLen uint32) error {
	if idx >= uint32(len(d.strings)) {
		return errors.Wrapf(fault.ErrFormat, "command %d string index %d of %d", i, idx, len(d.strings))
	}
	if uint64(byteOff)+uint64(byteLen) > uint64(len(d.strings[idx])) {
		return errors.Wrapf(fault.ErrFormat, "command %d string slice out of range", i)
	}
	return nil
}

// checkTextRunBlob validates a text-run blob: seg_count header, exact size,
// and every segment's style and string slice.
func (d *Drawlist) checkTextRunBlob(i, idx uint32) error {
	if idx >= uint32(len(d.blobs)) {
		return errors.Wrapf(fault.ErrFormat, "command %d blob index %d of %d", i, idx, len(d.blobs))
	}
	blob := d.blobs[idx]
	if len(blob) < 4 {
		return errors.Wrapf(fault.ErrFormat, "command %d text-run blob %d bytes", i, len(blob))
	}
	segs := u32At(blob, 0)
	if segs > MaxRunSegs {
		return errors.Wrapf(fault.ErrLimit, "command %d %d run segments exceeds %d", i, segs, MaxRunSegs)
	}
	if uint64(len(blob)) != 4+uint64(segs)*textRunSegSize {
		return errors.Wrapf(fault.ErrFormat, "command %d text-run blob size %d for %d segments", i, len(blob), segs)
	}
	for s := uint32(0); s < segs; s++ {
		off := 4 + s*textRunSegSize
		if err := checkStyle(i, blob, off); err != nil {
			return err
		}
		if err := d.checkStringSlice(i, u32At(blob, off+16), u32At(blob, off+20), u32At(blob, off+24)); err != nil {
			return err
		}
	}
	return nil
}
