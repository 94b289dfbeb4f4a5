// Package drawlist implements the binary command stream: a little-endian
// buffer holding a fixed header, self-framed command records, an interned
// string table and a blob table. Validation is exhaustive and fully separate
// from execution, so a malformed stream can never produce partial effects.
package drawlist

import (
	"encoding/binary"

	"github.com/lixenwraith/termcore/grid"
)

// Magic is "ZRDL" read as a little-endian u32
const Magic = 0x4C44525A

// Versions the engine implements. Streams declaring a higher version fail
// as unsupported, not malformed.
const (
	VersionMin = 1
	VersionMax = 2
)

// HeaderSize is the fixed byte length of the stream header
const HeaderSize = 64

// Opcodes
const (
	OpClear       = 1
	OpFillRect    = 2
	OpDrawText    = 3
	OpPushClip    = 4
	OpPopClip     = 5
	OpDrawTextRun = 6
	OpSetCursor   = 7 // version 2+
	OpCopyRect    = 8 // version 2+
)

// Fixed record sizes including the 8-byte record header
const (
	sizeClear       = 8
	sizePopClip     = 8
	sizePushClip    = 24
	sizeFillRect    = 40
	sizeDrawText    = 48
	sizeDrawTextRun = 24
	sizeSetCursor   = 24
	sizeCopyRect    = 40
)

// recordHeaderSize frames every command: opcode u16, flags u16, size u32
const recordHeaderSize = 8

// styleSize is the wire size of a style: fg, bg, attrs, reserved (u32 each)
const styleSize = 16

// textRunSegSize is the wire size of one text-run segment:
// style (16) + string_index, byte_off, byte_len (u32 each)
const textRunSegSize = 28

// Stream limits. A stream exceeding any of them fails with ErrLimit.
const (
	MaxTotalSize = 16 << 20
	MaxCommands  = 1 << 16
	MaxStrings   = 1 << 12
	MaxBlobs     = 1 << 12
	MaxRunSegs   = 1 << 10
)

// header is the decoded fixed header: sixteen little-endian u32 fields
type header struct {
	magic           uint32
	version         uint32
	headerSize      uint32
	totalSize       uint32
	cmdOffset       uint32
	cmdBytes        uint32
	cmdCount        uint32
	stringsSpanOff  uint32
	stringsCount    uint32
	stringsBytesOff uint32
	stringsBytesLen uint32
	blobsSpanOff    uint32
	blobsCount      uint32
	blobsBytesOff   uint32
	blobsBytesLen   uint32
	reserved0       uint32
}

// decodeHeader reads the sixteen header fields byte-wise. The buffer must be
// at least HeaderSize long; the caller checks that first.
func decodeHeader(buf []byte) header {
	f := func(i int) uint32 { return binary.LittleEndian.Uint32(buf[i*4:]) }
	return header{
		magic:           f(0),
		version:         f(1),
		headerSize:      f(2),
		totalSize:       f(3),
		cmdOffset:       f(4),
		cmdBytes:        f(5),
		cmdCount:        f(6),
		stringsSpanOff:  f(7),
		stringsCount:    f(8),
		stringsBytesOff: f(9),
		stringsBytesLen: f(10),
		blobsSpanOff:    f(11),
		blobsCount:      f(12),
		blobsBytesOff:   f(13),
		blobsBytesLen:   f(14),
		reserved0:       f(15),
	}
}

func u16At(buf []byte, off uint32) uint16 {
	return binary.LittleEndian.Uint16(buf[off:])
}

func u32At(buf []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(buf[off:])
}

func i32At(buf []byte, off uint32) int32 {
	return int32(binary.LittleEndian.Uint32(buf[off:]))
}

func aligned4(v uint32) bool { return v&3 == 0 }

// rgbFromWire unpacks a 0x00RRGGBB color
func rgbFromWire(v uint32) grid.RGB {
	return grid.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// rgbToWire packs a color as 0x00RRGGBB
func rgbToWire(c grid.RGB) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// styleAt decodes a 16-byte wire style. The validator has already checked
// the reserved field and attribute bits.
func styleAt(buf []byte, off uint32) grid.Style {
	return grid.Style{
		Fg:    rgbFromWire(u32At(buf, off)),
		Bg:    rgbFromWire(u32At(buf, off+4)),
		Attrs: grid.Attr(u32At(buf, off+8)),
	}
}

// rectAt decodes four consecutive i32 fields as a rectangle
func rectAt(buf []byte, off uint32) grid.Rect {
	return grid.Rect{
		X: int(i32At(buf, off)),
		Y: int(i32At(buf, off+4)),
		W: int(i32At(buf, off+8)),
		H: int(i32At(buf, off+12)),
	}
}
