package grid

import (
	"testing"
	"unicode/utf8"
)

func mustPainter(t *testing.T, g *Grid) *Painter {
	t.Helper()
	p, err := NewPainter(g)
	if err != nil {
		t.Fatalf("NewPainter failed: %v", err)
	}
	return p
}

func glyphAt(t *testing.T, g *Grid, x, y int) string {
	t.Helper()
	c, ok := g.At(x, y)
	if !ok {
		t.Fatalf("Cell (%d,%d) out of bounds", x, y)
	}
	return string(c.GlyphBytes())
}

func TestClipStack(t *testing.T) {
	g, _ := New(10, 10)
	p := mustPainter(t, g)

	if p.Clip() != g.Bounds() {
		t.Errorf("Expected base clip %v, got %v", g.Bounds(), p.Clip())
	}
	if err := p.PushClip(Rect{X: 2, Y: 2, W: 5, H: 5}); err != nil {
		t.Fatalf("PushClip failed: %v", err)
	}
	if err := p.PushClip(Rect{X: 4, Y: 0, W: 10, H: 4}); err != nil {
		t.Fatalf("PushClip failed: %v", err)
	}
	want := Rect{X: 4, Y: 2, W: 3, H: 2}
	if p.Clip() != want {
		t.Errorf("Expected intersected clip %v, got %v", want, p.Clip())
	}
	if err := p.PopClip(); err != nil {
		t.Fatalf("PopClip failed: %v", err)
	}
	if err := p.PopClip(); err != nil {
		t.Fatalf("PopClip failed: %v", err)
	}
	if err := p.PopClip(); err == nil {
		t.Error("Expected error popping base clip")
	}
}

func TestClipDepthLimit(t *testing.T) {
	g, _ := New(4, 4)
	p := mustPainter(t, g)
	for i := 0; i < MaxClipDepth; i++ {
		if err := p.PushClip(g.Bounds()); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}
	if err := p.PushClip(g.Bounds()); err == nil {
		t.Error("Expected depth limit error")
	}
}

func TestPutGraphemeEmptyBecomesSpace(t *testing.T) {
	g, _ := New(4, 1)
	p := mustPainter(t, g)
	if err := p.PutGrapheme(1, 0, nil, WidthNormal, Style{}); err != nil {
		t.Fatalf("PutGrapheme failed: %v", err)
	}
	if glyphAt(t, g, 1, 0) != " " {
		t.Errorf("Expected space, got %q", glyphAt(t, g, 1, 0))
	}
}

func TestPutGraphemeOversizedReplaced(t *testing.T) {
	g, _ := New(4, 1)
	p := mustPainter(t, g)
	huge := make([]byte, GlyphMax+1)
	for i := range huge {
		huge[i] = 'a'
	}
	if err := p.PutGrapheme(0, 0, huge, WidthNormal, Style{}); err != nil {
		t.Fatalf("PutGrapheme failed: %v", err)
	}
	if glyphAt(t, g, 0, 0) != string(utf8.RuneError) {
		t.Errorf("Expected replacement glyph, got %q", glyphAt(t, g, 0, 0))
	}
}

func TestWideGlyphAtLastColumnReplaced(t *testing.T) {
	g, _ := New(5, 1)
	p := mustPainter(t, g)
	if err := p.PutGrapheme(4, 0, []byte("世"), WidthWide, Style{}); err != nil {
		t.Fatalf("PutGrapheme failed: %v", err)
	}
	c, _ := g.At(4, 0)
	if c.Width != WidthNormal {
		t.Errorf("Expected width-1 replacement, got width %d", c.Width)
	}
	if string(c.GlyphBytes()) != string(utf8.RuneError) {
		t.Errorf("Expected U+FFFD, got %q", c.GlyphBytes())
	}
	checkPairs(t, g)
}

func TestWideGlyphClippedContinuationReplaced(t *testing.T) {
	g, _ := New(10, 1)
	p := mustPainter(t, g)
	p.PushClip(Rect{X: 0, Y: 0, W: 4, H: 1})

	// Lead inside clip, continuation would land outside
	if err := p.PutGrapheme(3, 0, []byte("世"), WidthWide, Style{}); err != nil {
		t.Fatalf("PutGrapheme failed: %v", err)
	}
	c, _ := g.At(3, 0)
	if c.Width != WidthNormal || string(c.GlyphBytes()) != string(utf8.RuneError) {
		t.Errorf("Expected replacement at clip edge, got width=%d glyph=%q", c.Width, c.GlyphBytes())
	}
	next, _ := g.At(4, 0)
	if string(next.GlyphBytes()) != " " {
		t.Errorf("Cell outside clip was written: %q", next.GlyphBytes())
	}
}

func TestOverwriteHalfOfWidePairRepairs(t *testing.T) {
	g, _ := New(6, 1)
	p := mustPainter(t, g)
	if err := p.PutGrapheme(2, 0, []byte("世"), WidthWide, Style{}); err != nil {
		t.Fatalf("PutGrapheme failed: %v", err)
	}

	// Overwrite the continuation half; the lead must be cleared
	if err := p.PutGrapheme(3, 0, []byte("x"), WidthNormal, Style{}); err != nil {
		t.Fatalf("PutGrapheme failed: %v", err)
	}
	lead, _ := g.At(2, 0)
	if lead.Width != WidthNormal || string(lead.GlyphBytes()) != " " {
		t.Errorf("Expected repaired lead, got width=%d glyph=%q", lead.Width, lead.GlyphBytes())
	}
	checkPairs(t, g)

	// Overwrite a lead half; the continuation must be cleared
	p.PutGrapheme(0, 0, []byte("界"), WidthWide, Style{})
	p.PutGrapheme(0, 0, []byte("y"), WidthNormal, Style{})
	cont, _ := g.At(1, 0)
	if cont.Width != WidthNormal {
		t.Errorf("Expected repaired continuation, got width %d", cont.Width)
	}
	checkPairs(t, g)
}

func TestPairRepairCrossesClipBoundary(t *testing.T) {
	g, _ := New(6, 1)
	p := mustPainter(t, g)
	p.PutGrapheme(2, 0, []byte("世"), WidthWide, Style{})

	// Clip covers only the continuation cell; repairing the lead at x=2 is
	// the one permitted out-of-clip touch
	p2 := mustPainter(t, g)
	p2.PushClip(Rect{X: 3, Y: 0, W: 1, H: 1})
	p2.PutGrapheme(3, 0, []byte("x"), WidthNormal, Style{})

	lead, _ := g.At(2, 0)
	if lead.Width == WidthWide {
		t.Error("Lead outside clip left dangling")
	}
	checkPairs(t, g)
}

func TestFillRectClipped(t *testing.T) {
	g, _ := New(6, 4)
	p := mustPainter(t, g)
	p.DrawText(0, 1, []byte("zzzzzz"), Style{})
	p.PushClip(Rect{X: 1, Y: 0, W: 2, H: 4})

	st := Style{Fg: RGB{R: 9}}
	if err := p.FillRect(Rect{X: 0, Y: 1, W: 6, H: 1}, st); err != nil {
		t.Fatalf("FillRect failed: %v", err)
	}
	if glyphAt(t, g, 0, 1) != "z" || glyphAt(t, g, 3, 1) != "z" {
		t.Error("FillRect wrote outside clip")
	}
	c, _ := g.At(1, 1)
	if string(c.GlyphBytes()) != " " || c.Style != st {
		t.Errorf("FillRect missed clipped cell: %q %+v", c.GlyphBytes(), c.Style)
	}
}

func TestDrawTextAdvancesThroughClip(t *testing.T) {
	g, _ := New(10, 1)
	p := mustPainter(t, g)
	p.PushClip(Rect{X: 4, Y: 0, W: 6, H: 1})

	// Clipped prefix still advances: "ef" must land at columns 4,5
	end, err := p.DrawText(0, 0, []byte("abcdef"), Style{})
	if err != nil {
		t.Fatalf("DrawText failed: %v", err)
	}
	if end != 6 {
		t.Errorf("Expected end column 6, got %d", end)
	}
	if glyphAt(t, g, 4, 0) != "e" || glyphAt(t, g, 5, 0) != "f" {
		t.Errorf("Expected 'ef' at 4,5, got %q %q", glyphAt(t, g, 4, 0), glyphAt(t, g, 5, 0))
	}
}

func TestDrawTextTabStops(t *testing.T) {
	g, _ := New(20, 1)
	p := mustPainter(t, g)
	end, err := p.DrawText(0, 0, []byte("a\tb"), Style{})
	if err != nil {
		t.Fatalf("DrawText failed: %v", err)
	}
	if glyphAt(t, g, 8, 0) != "b" {
		t.Errorf("Expected 'b' at tab stop 8, got %q", glyphAt(t, g, 8, 0))
	}
	if end != 9 {
		t.Errorf("Expected end column 9, got %d", end)
	}
}

func TestDrawTextControlAndInvalidReplaced(t *testing.T) {
	g, _ := New(10, 1)
	p := mustPainter(t, g)
	if _, err := p.DrawText(0, 0, []byte{0x01, 0xFF, 'k'}, Style{}); err != nil {
		t.Fatalf("DrawText failed: %v", err)
	}
	repl := string(utf8.RuneError)
	if glyphAt(t, g, 0, 0) != repl || glyphAt(t, g, 1, 0) != repl {
		t.Error("Expected control and invalid bytes replaced")
	}
	if glyphAt(t, g, 2, 0) != "k" {
		t.Errorf("Expected 'k' after replacements, got %q", glyphAt(t, g, 2, 0))
	}
}

func TestDrawTextWidePairs(t *testing.T) {
	g, _ := New(10, 1)
	p := mustPainter(t, g)
	end, err := p.DrawText(0, 0, []byte("世a"), Style{})
	if err != nil {
		t.Fatalf("DrawText failed: %v", err)
	}
	lead, _ := g.At(0, 0)
	cont, _ := g.At(1, 0)
	if lead.Width != WidthWide || cont.Width != WidthContinuation {
		t.Errorf("Expected wide pair, got widths %d %d", lead.Width, cont.Width)
	}
	if glyphAt(t, g, 2, 0) != "a" {
		t.Errorf("Expected 'a' at column 2, got %q", glyphAt(t, g, 2, 0))
	}
	if end != 3 {
		t.Errorf("Expected end column 3, got %d", end)
	}
	checkPairs(t, g)
}

func TestCountCellsMatchesDrawText(t *testing.T) {
	cases := []string{"hello", "世界", "a\tb", "", "mixed 世 and\ttabs"}
	for _, s := range cases {
		g, _ := New(64, 1)
		p := mustPainter(t, g)
		end, _ := p.DrawText(0, 0, []byte(s), Style{})
		if got := CountCells(0, []byte(s)); got != end {
			t.Errorf("CountCells(%q) = %d, DrawText advanced to %d", s, got, end)
		}
	}
}

func TestBoxAndLines(t *testing.T) {
	g, err := New(8, 5)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p := mustPainter(t, g)
	if err := p.Box(Rect{X: 1, Y: 1, W: 5, H: 3}, Style{}); err != nil {
		t.Fatalf("Box failed: %v", err)
	}

	corners := []struct {
		x, y int
		want string
	}{
		{1, 1, "┌"}, {5, 1, "┐"}, {1, 3, "└"}, {5, 3, "┘"},
	}
	for _, c := range corners {
		if got := glyphAt(t, g, c.x, c.y); got != c.want {
			t.Errorf("Expected %q at (%d,%d), got %q", c.want, c.x, c.y, got)
		}
	}
	if glyphAt(t, g, 3, 1) != "─" || glyphAt(t, g, 1, 2) != "│" {
		t.Error("Box edges missing")
	}
	if glyphAt(t, g, 3, 2) != " " {
		t.Error("Box interior must stay untouched")
	}

	if err := p.HLine(0, 4, 8, []byte("="), Style{}); err != nil {
		t.Fatalf("HLine failed: %v", err)
	}
	if glyphAt(t, g, 0, 4) != "=" || glyphAt(t, g, 7, 4) != "=" {
		t.Error("HLine did not cover the full run")
	}
}
