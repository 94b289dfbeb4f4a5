package diff

// damageRect is one changed region, inclusive cell coordinates
type damageRect struct {
	x0, y0, x1, y1 int
}

// maxDamageRects bounds tracker storage; overflow degrades to full frame
const maxDamageRects = 64

// damage accumulates changed spans into bounded rectangle storage. A span
// matching the column range of a rect ending on the previous row extends
// that rect; anything else opens a new one. When storage runs out the
// tracker degrades to a single full-frame rect, never dropping damage.
type damage struct {
	rects      []damageRect
	cols, rows int
	fullFrame  bool
}

func (d *damage) beginFrame(cols, rows int) {
	if d.rects == nil {
		d.rects = make([]damageRect, 0, maxDamageRects)
	}
	d.rects = d.rects[:0]
	d.cols = cols
	d.rows = rows
	d.fullFrame = false
}

func (d *damage) markFull() {
	d.fullFrame = true
	d.rects = d.rects[:0]
	if d.cols > 0 && d.rows > 0 {
		d.rects = append(d.rects, damageRect{0, 0, d.cols - 1, d.rows - 1})
	}
}

// addSpan records dirty cells [x0, x1] on row y
func (d *damage) addSpan(y, x0, x1 int) {
	if d.fullFrame {
		return
	}
	if d.cols == 0 || d.rows == 0 || y >= d.rows {
		d.markFull()
		return
	}
	if x1 < x0 || x0 >= d.cols {
		return
	}
	if x1 >= d.cols {
		x1 = d.cols - 1
	}
	for i := range d.rects {
		r := &d.rects[i]
		if r.x0 == x0 && r.x1 == x1 && r.y1+1 == y {
			r.y1 = y
			return
		}
	}
	if len(d.rects) >= maxDamageRects {
		d.markFull()
		return
	}
	d.rects = append(d.rects, damageRect{x0, y, x1, y})
}

// cells returns the total damaged cell count
func (d *damage) cells() int {
	if d.fullFrame {
		return d.cols * d.rows
	}
	sum := 0
	for _, r := range d.rects {
		sum += (r.x1 - r.x0 + 1) * (r.y1 - r.y0 + 1)
	}
	return sum
}
