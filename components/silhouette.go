package components

// Silhouette is the collision footprint of an entity, anchored at its top-left.
type Silhouette interface {
	Size() (w, h int)
	Solid(x, y int) bool
}

// Rect is a fully solid axis-aligned box. It is the headless default and
// approximates sprite masks by their bounding box.
type Rect struct {
	W, H int
}

// Size returns the box dimensions.
func (r Rect) Size() (int, int) { return r.W, r.H }

// Solid reports whether (x, y) lies inside the box.
func (r Rect) Solid(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.W && y < r.H
}

// Mask is a per-pixel silhouette stored as a bitset.
type Mask struct {
	w, h int
	bits []uint64
}

// NewMask creates an empty mask.
func NewMask(w, h int) *Mask {
	return &Mask{w: w, h: h, bits: make([]uint64, (w*h+63)/64)}
}

// MaskFromAlpha builds a mask from an alpha sampler; pixels above threshold are solid.
func MaskFromAlpha(w, h int, alpha func(x, y int) uint8, threshold uint8) *Mask {
	m := NewMask(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if alpha(x, y) > threshold {
				m.Set(x, y)
			}
		}
	}
	return m
}

// Size returns the mask dimensions.
func (m *Mask) Size() (int, int) { return m.w, m.h }

// Set marks (x, y) solid. Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return
	}
	i := y*m.w + x
	m.bits[i/64] |= 1 << (i % 64)
}

// Solid reports whether (x, y) is set.
func (m *Mask) Solid(x, y int) bool {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return false
	}
	i := y*m.w + x
	return m.bits[i/64]&(1<<(i%64)) != 0
}

// Count returns the number of solid pixels.
func (m *Mask) Count() int {
	n := 0
	for _, word := range m.bits {
		for word != 0 {
			word &= word - 1
			n++
		}
	}
	return n
}

// FlipVertical returns a copy mirrored top to bottom.
func (m *Mask) FlipVertical() *Mask {
	out := NewMask(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if m.Solid(x, y) {
				out.Set(x, m.h-1-y)
			}
		}
	}
	return out
}

// Overlap reports whether b, placed at offset (dx, dy) from a's origin,
// shares at least one solid pixel with a.
func Overlap(a, b Silhouette, dx, dy int) bool {
	aw, ah := a.Size()
	bw, bh := b.Size()

	x0, y0 := max(0, dx), max(0, dy)
	x1, y1 := min(aw, dx+bw), min(ah, dy+bh)
	if x0 >= x1 || y0 >= y1 {
		return false
	}

	_, aRect := a.(Rect)
	_, bRect := b.(Rect)
	if aRect && bRect {
		return true
	}

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if a.Solid(x, y) && b.Solid(x-dx, y-dy) {
				return true
			}
		}
	}
	return false
}

// Silhouettes groups the footprints the collision test needs. Wings, when
// set, holds one agent footprint per wing frame and overrides Agent.
type Silhouettes struct {
	Agent  Silhouette
	Wings  [WingFrames]Silhouette
	Top    Silhouette
	Bottom Silhouette
}

// AgentFrame returns the agent footprint for a wing frame.
func (s Silhouettes) AgentFrame(frame int) Silhouette {
	if frame >= 0 && frame < WingFrames && s.Wings[frame] != nil {
		return s.Wings[frame]
	}
	return s.Agent
}

// BoxSilhouettes returns bounding-box footprints for the given sizes.
func BoxSilhouettes(agentW, agentH, pieceW, pieceH float64) Silhouettes {
	piece := Rect{W: int(pieceW), H: int(pieceH)}
	return Silhouettes{
		Agent:  Rect{W: int(agentW), H: int(agentH)},
		Top:    piece,
		Bottom: piece,
	}
}
