// termcore-demo renders a scrolling log of styled lines under a title bar,
// driving the full pipeline: builder -> validator -> executor -> diff ->
// single-write present.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lixenwraith/termcore/diff"
	"github.com/lixenwraith/termcore/drawlist"
	"github.com/lixenwraith/termcore/grid"
	"github.com/lixenwraith/termcore/termio"
)

var (
	frameStyle = grid.Style{Fg: grid.RGB{R: 0x7A, G: 0xA2, B: 0xF7}}
	textStyle  = grid.Style{Fg: grid.RGB{R: 0xC0, G: 0xCA, B: 0xF5}}
	hotStyle   = grid.Style{Fg: grid.RGB{R: 0xF7, G: 0x76, B: 0x8E}, Attrs: grid.AttrBold}
)

func buildFrame(cols, rows, tick int) ([]byte, error) {
	b := drawlist.NewBuilder(2)
	b.Clear()
	b.FillRect(grid.Rect{X: 0, Y: 0, W: cols, H: 1}, frameStyle)
	b.DrawTextRun(1, 0, []drawlist.RunSeg{
		{Style: hotStyle, Text: "termcore"},
		{Style: frameStyle, Text: fmt.Sprintf(" demo · frame %d · %dx%d", tick, cols, rows)},
	})

	b.PushClip(grid.Rect{X: 0, Y: 1, W: cols, H: rows - 1})
	for i := 0; i < rows-1; i++ {
		n := tick - (rows - 2 - i)
		if n < 0 {
			continue
		}
		st := textStyle
		if n%10 == 0 {
			st = hotStyle
		}
		b.DrawText(2, 1+i, st, fmt.Sprintf("line %04d · 世界 · the quick brown fox", n))
	}
	b.PopClip()

	b.SetCursor(grid.Cursor{X: -1, Y: -1})
	return b.Build()
}

func run() error {
	eng := termio.NewWithCaps(diff.DetectCaps())
	if err := eng.Init(); err != nil {
		return err
	}
	defer eng.Fini()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGWINCH)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGWINCH {
				if err := eng.SyncSize(); err != nil {
					return err
				}
				continue
			}
			return nil
		case <-ticker.C:
			cols, rows := eng.Size()
			stream, err := buildFrame(cols, rows, tick)
			if err != nil {
				return err
			}
			if err := eng.Submit(stream); err != nil {
				return err
			}
			if _, err := eng.Present(); err != nil {
				return err
			}
			tick++
		}
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			termio.EmergencyReset(os.Stdout)
			panic(r)
		}
	}()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "termcore-demo:", err)
		os.Exit(1)
	}
}
