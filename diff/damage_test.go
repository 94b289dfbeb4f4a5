package diff

import (
	"testing"
)

func TestDamageMergesSameSpanRows(t *testing.T) {
	var d damage
	d.beginFrame(80, 24)
	d.addSpan(3, 10, 20)
	d.addSpan(4, 10, 20)
	d.addSpan(5, 10, 20)

	if len(d.rects) != 1 {
		t.Fatalf("Expected 1 merged rect, got %d", len(d.rects))
	}
	r := d.rects[0]
	if r.y0 != 3 || r.y1 != 5 || r.x0 != 10 || r.x1 != 20 {
		t.Errorf("Merged rect wrong: %+v", r)
	}
	if got := d.cells(); got != 33 {
		t.Errorf("Expected 33 damaged cells, got %d", got)
	}
}

func TestDamageDistinctSpansOpenNewRects(t *testing.T) {
	var d damage
	d.beginFrame(80, 24)
	d.addSpan(3, 10, 20)
	d.addSpan(4, 11, 20) // different column range, no merge
	d.addSpan(6, 10, 20) // gap row, no merge

	if len(d.rects) != 3 {
		t.Errorf("Expected 3 rects, got %d", len(d.rects))
	}
}

func TestDamageClampsAndDropsEmpty(t *testing.T) {
	var d damage
	d.beginFrame(10, 5)
	d.addSpan(0, 8, 20)
	if d.rects[0].x1 != 9 {
		t.Errorf("Expected span clamped to column 9, got %d", d.rects[0].x1)
	}
	d.addSpan(1, 12, 14)
	if len(d.rects) != 1 {
		t.Error("Fully out-of-range span must be dropped")
	}
}

func TestDamageOverflowDegradesToFullFrame(t *testing.T) {
	var d damage
	d.beginFrame(80, 200)
	for i := 0; i <= maxDamageRects; i++ {
		d.addSpan(i, 0, i%7) // varying widths prevent merging
	}
	if !d.fullFrame {
		t.Fatal("Expected full-frame degradation on overflow")
	}
	if got := d.cells(); got != 80*200 {
		t.Errorf("Expected full-frame cell count, got %d", got)
	}
	// Further spans are absorbed
	d.addSpan(0, 0, 5)
	if len(d.rects) != 1 {
		t.Errorf("Expected single full rect, got %d", len(d.rects))
	}
}

func TestDamageOutOfRangeRowForcesFull(t *testing.T) {
	var d damage
	d.beginFrame(10, 5)
	d.addSpan(9, 0, 3)
	if !d.fullFrame {
		t.Error("Row past the grid must degrade to full frame")
	}
}
