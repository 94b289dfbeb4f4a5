// Package diff turns two cell-grid generations into the minimal byte
// sequence that brings a terminal showing the previous generation in sync
// with the current one. Render is a pure function: it performs no I/O and
// identical inputs always produce byte-identical output.
package diff

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2/terminfo"
	_ "github.com/gdamore/tcell/v2/terminfo/extended"

	"github.com/lixenwraith/termcore/grid"
)

// ColorMode is the terminal color capability tier
type ColorMode uint8

const (
	ColorModeMono ColorMode = iota // attributes only
	ColorMode16
	ColorMode256
	ColorModeTrueColor
)

// Caps describes what the terminal supports. Passed as an explicit value to
// every Render call; the engine holds no ambient capability state.
type Caps struct {
	Color        ColorMode
	Attrs        grid.Attr // attribute bits the terminal honors
	ScrollRegion bool      // DECSTBM plus SU/SD available
}

// DefaultCaps assumes a modern emulator: truecolor, all attributes, regions
func DefaultCaps() Caps {
	return Caps{Color: ColorModeTrueColor, Attrs: grid.AttrAll, ScrollRegion: true}
}

// DetectCaps builds a capability descriptor from the terminfo entry for
// $TERM plus the usual environment overrides. Unknown terminals fall back to
// a conservative 16-color profile.
func DetectCaps() Caps {
	caps := Caps{Color: ColorMode16, Attrs: grid.AttrAll, ScrollRegion: true}

	term := os.Getenv("TERM")
	if ti, err := terminfo.LookupTerminfo(term); err == nil {
		caps.ScrollRegion = ti.ChangeScrollRegion != ""

		var mask grid.Attr
		if ti.Bold != "" {
			mask |= grid.AttrBold
		}
		if ti.Italic != "" {
			mask |= grid.AttrItalic
		}
		if ti.Underline != "" {
			mask |= grid.AttrUnderline
		}
		if ti.Reverse != "" {
			mask |= grid.AttrReverse
		}
		if ti.StrikeThrough != "" {
			mask |= grid.AttrStrike
		}
		caps.Attrs = mask

		switch {
		case ti.TrueColor:
			caps.Color = ColorModeTrueColor
		case ti.Colors >= 256:
			caps.Color = ColorMode256
		case ti.Colors >= 8:
			caps.Color = ColorMode16
		default:
			caps.Color = ColorModeMono
		}
	} else if strings.Contains(term, "256color") {
		caps.Color = ColorMode256
	}

	// COLORTERM is set by modern emulators regardless of terminfo age
	ct := os.Getenv("COLORTERM")
	if ct == "truecolor" || ct == "24bit" {
		caps.Color = ColorModeTrueColor
	}
	if os.Getenv("NO_COLOR") != "" {
		caps.Color = ColorModeMono
	}
	return caps
}
