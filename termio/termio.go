// Package termio wires the pure rendering core to a real terminal: raw mode,
// alternate screen, the previous/current grid pair, and a single write per
// frame. The diff output and the staging grid become the presented state
// only when that write succeeds.
package termio

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/lixenwraith/termcore/diff"
	"github.com/lixenwraith/termcore/drawlist"
	"github.com/lixenwraith/termcore/fault"
	"github.com/lixenwraith/termcore/grid"
)

// Control sequences for session setup and teardown
var (
	csiAltScreenEnter = []byte("\x1b[?1049h")
	csiAltScreenExit  = []byte("\x1b[?1049l")
	csiCursorShow     = []byte("\x1b[?25h")
	csiCursorHide     = []byte("\x1b[?25l")
	csiSGR0           = []byte("\x1b[0m")
	csiClear          = []byte("\x1b[2J\x1b[H")
	csiRIS            = []byte("\x1bc")

	// DECAWM off: prevents scroll/wrap when the bottom-right corner is written
	csiAutoWrapOn  = []byte("\x1b[?7h")
	csiAutoWrapOff = []byte("\x1b[?7l")
)

// Engine owns the grid pair and terminal session for one tty
type Engine struct {
	mu sync.Mutex

	in   *os.File
	out  *os.File
	caps diff.Caps

	prev    *grid.Grid
	stage   *grid.Grid
	scratch *grid.Grid // reused by Submit so frame execution does not allocate
	state   diff.TermState

	oldTermios  *term.State
	initialized bool
	finalized   bool
}

// New creates an engine on stdin/stdout with detected capabilities
func New() *Engine {
	return &Engine{in: os.Stdin, out: os.Stdout, caps: diff.DetectCaps()}
}

// NewWithCaps creates an engine on stdin/stdout with explicit capabilities
func NewWithCaps(caps diff.Caps) *Engine {
	return &Engine{in: os.Stdin, out: os.Stdout, caps: caps}
}

// Caps returns the engine's capability descriptor
func (e *Engine) Caps() diff.Caps {
	return e.caps
}

// Init enters raw mode and the alternate screen and allocates the grid pair
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	cols, rows, err := term.GetSize(int(e.out.Fd()))
	if err != nil {
		return errors.Wrap(err, "query terminal size")
	}

	prev, err := grid.New(cols, rows)
	if err != nil {
		return err
	}
	stage, err := grid.New(cols, rows)
	if err != nil {
		return err
	}
	scratch, err := grid.New(cols, rows)
	if err != nil {
		return err
	}

	old, err := term.MakeRaw(int(e.in.Fd()))
	if err != nil {
		return errors.Wrap(err, "enter raw mode")
	}

	e.oldTermios = old
	e.prev = prev
	e.stage = stage
	e.scratch = scratch
	e.state.Invalidate()

	e.out.Write(csiAltScreenEnter)
	e.out.Write(csiCursorHide)
	e.out.Write(csiAutoWrapOff)
	e.out.Write(csiSGR0)
	e.out.Write(csiClear)

	e.initialized = true
	return nil
}

// Fini restores the terminal. Safe to call multiple times.
func (e *Engine) Fini() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized || e.finalized {
		return
	}

	e.out.Write(csiCursorShow)
	e.out.Write(csiAltScreenExit)
	e.out.Write(csiAutoWrapOn)
	e.out.Write(csiSGR0)

	if e.oldTermios != nil {
		term.Restore(int(e.in.Fd()), e.oldTermios)
	}
	e.finalized = true
}

// Size returns the grid dimensions
func (e *Engine) Size() (cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage == nil {
		return 0, 0
	}
	return e.stage.Cols(), e.stage.Rows()
}

// Resize reallocates both grid generations together and forces a full
// redraw on the next present
func (e *Engine) Resize(cols, rows int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized || e.finalized {
		return errors.Wrap(fault.ErrInvalidArgument, "engine not running")
	}
	// Scratch carries no state across frames; allocate it first so a failure
	// leaves the pair untouched
	scratch, err := grid.New(cols, rows)
	if err != nil {
		return err
	}
	if err := grid.ResizePair(e.prev, e.stage, cols, rows); err != nil {
		return err
	}
	e.scratch = scratch
	e.state.Invalidate()
	return nil
}

// SyncSize re-reads the tty size and resizes when it changed
func (e *Engine) SyncSize() error {
	cols, rows, err := term.GetSize(int(e.out.Fd()))
	if err != nil {
		return errors.Wrap(err, "query terminal size")
	}
	c, r := e.Size()
	if cols == c && rows == r {
		return nil
	}
	return e.Resize(cols, rows)
}

// Submit validates and executes a command stream against the staging grid.
// On any error the staging grid is untouched.
func (e *Engine) Submit(stream []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized || e.finalized {
		return errors.Wrap(fault.ErrInvalidArgument, "engine not running")
	}
	d, err := drawlist.Validate(stream)
	if err != nil {
		return err
	}
	return d.ApplyInto(e.stage, e.scratch)
}

// Present diffs the staging grid against the presented one and writes the
// result in a single write. The staging grid is promoted to presented only
// when the write fully succeeds; a failed write leaves the previous grid
// authoritative and the terminal model invalidated.
func (e *Engine) Present() (diff.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats diff.Stats
	if !e.initialized || e.finalized {
		return stats, errors.Wrap(fault.ErrInvalidArgument, "engine not running")
	}

	out, stats, err := diff.Render(e.prev, e.stage, e.caps, &e.state, e.stage.Cursor())
	if err != nil {
		return stats, err
	}
	if len(out) > 0 {
		if _, werr := e.out.Write(out); werr != nil {
			e.state.Invalidate()
			return stats, errors.Wrap(werr, "flush frame")
		}
	}
	if err := e.prev.CopyFrom(e.stage); err != nil {
		return stats, err
	}
	return stats, nil
}

// EmergencyReset restores a sane terminal state when Fini cannot run, e.g.
// from panic recovery
func EmergencyReset(w io.Writer) {
	w.Write(csiCursorShow)
	w.Write(csiAltScreenExit)
	w.Write(csiSGR0)
	w.Write(csiAutoWrapOn)
	w.Write(csiRIS)
	if f, ok := w.(*os.File); ok {
		f.Sync()
	}
}
