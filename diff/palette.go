package diff

import (
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/lixenwraith/termcore/grid"
)

// Color cube levels for the xterm 6x6x6 palette (indices 16-231)
var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

// ansi16 is the xterm default 16-color palette
var ansi16 = [16]grid.RGB{
	{0x00, 0x00, 0x00}, {0xCD, 0x00, 0x00}, {0x00, 0xCD, 0x00}, {0xCD, 0xCD, 0x00},
	{0x00, 0x00, 0xEE}, {0xCD, 0x00, 0xCD}, {0x00, 0xCD, 0xCD}, {0xE5, 0xE5, 0xE5},
	{0x7F, 0x7F, 0x7F}, {0xFF, 0x00, 0x00}, {0x00, 0xFF, 0x00}, {0xFF, 0xFF, 0x00},
	{0x5C, 0x5C, 0xFF}, {0xFF, 0x00, 0xFF}, {0x00, 0xFF, 0xFF}, {0xFF, 0xFF, 0xFF},
}

// palette256 holds the RGB value of every xterm 256-palette index
var palette256 [256]grid.RGB

func init() {
	copy(palette256[:16], ansi16[:])
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				palette256[16+36*r+6*g+b] = grid.RGB{
					R: cubeLevels[r], G: cubeLevels[g], B: cubeLevels[b],
				}
			}
		}
	}
	for i := 0; i < 24; i++ {
		v := uint8(8 + 10*i)
		palette256[232+i] = grid.RGB{R: v, G: v, B: v}
	}
}

func toColorful(c grid.RGB) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// rgbDist is the RGB-space distance between two colors. Monotonic with the
// squared channel distance, so nearest-match and tie ordering are identical.
func rgbDist(a, b grid.RGB) float64 {
	return toColorful(a).DistanceRgb(toColorful(b))
}

// nearestCubeLevel returns the cube coordinate whose level is closest to v,
// ties to the smaller coordinate
func nearestCubeLevel(v uint8) int {
	best := 0
	bestDist := absDiff(v, cubeLevels[0])
	for i := 1; i < 6; i++ {
		if d := absDiff(v, cubeLevels[i]); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a) - int(b)
	}
	return int(b) - int(a)
}

// RGBTo256 maps a truecolor value to the nearest 256-palette index: the
// per-channel nearest cube entry is compared against the nearest grayscale
// ramp entry by RGB distance, ties to the smaller index (the cube).
func RGBTo256(c grid.RGB) uint8 {
	cube := 16 + 36*nearestCubeLevel(c.R) + 6*nearestCubeLevel(c.G) + nearestCubeLevel(c.B)

	lum := (int(c.R) + int(c.G) + int(c.B)) / 3
	gi := (lum - 8 + 5) / 10
	if gi < 0 {
		gi = 0
	}
	if gi > 23 {
		gi = 23
	}
	gray := 232 + gi

	if rgbDist(c, palette256[gray]) < rgbDist(c, palette256[cube]) {
		return uint8(gray)
	}
	return uint8(cube)
}

// RGBTo16 maps a truecolor value to the nearest 16-color index, ties to the
// smaller index
func RGBTo16(c grid.RGB) uint8 {
	best := 0
	bestDist := rgbDist(c, ansi16[0])
	for i := 1; i < 16; i++ {
		if d := rgbDist(c, ansi16[i]); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return uint8(best)
}

// Encoded color tags inside a styleKey. Degradation happens before
// comparison, so a degraded-but-unchanged color never re-emits.
const (
	colorTagNone uint32 = 0
	colorTagRGB  uint32 = 1 << 24
	colorTag256  uint32 = 2 << 24
	colorTag16   uint32 = 3 << 24
)

// styleKey is a style after capability degradation: directly comparable,
// directly emittable.
type styleKey struct {
	attrs  grid.Attr
	fg, bg uint32
}

// degradeColor encodes c at the tier caps allows
func degradeColor(c grid.RGB, caps Caps) uint32 {
	switch caps.Color {
	case ColorModeTrueColor:
		return colorTagRGB | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	case ColorMode256:
		return colorTag256 | uint32(RGBTo256(c))
	case ColorMode16:
		return colorTag16 | uint32(RGBTo16(c))
	default:
		return colorTagNone
	}
}

// applyCaps degrades a requested style to what the terminal supports
func applyCaps(st grid.Style, caps Caps) styleKey {
	return styleKey{
		attrs: st.Attrs & caps.Attrs,
		fg:    degradeColor(st.Fg, caps),
		bg:    degradeColor(st.Bg, caps),
	}
}
