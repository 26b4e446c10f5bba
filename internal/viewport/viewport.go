// Package viewport holds the zoom and pan state of the page view and the
// pinch/pan gesture handling that drives it.
package viewport

import (
	"fmt"
	"math"
	"strconv"
	"sync"
)

const (
	MinScale = 1.0
	MaxScale = 5.0
)

// Transform is a uniform scale followed by a pan, in CSS order:
// scale(s) translate(x, y) about the centre of the page box.
type Transform struct {
	Scale float64 `json:"scale"`
	PanX  float64 `json:"pan_x"`
	PanY  float64 `json:"pan_y"`
}

// Identity is the unzoomed, unpanned transform.
func Identity() Transform { return Transform{Scale: MinScale} }

// Normalize clamps the scale to [MinScale, MaxScale] and zeroes the pan at
// MinScale.
func (t Transform) Normalize() Transform {
	if math.IsNaN(t.Scale) {
		t.Scale = MinScale
	}
	t.Scale = math.Min(MaxScale, math.Max(MinScale, t.Scale))
	if t.Scale == MinScale {
		t.PanX, t.PanY = 0, 0
	}
	return t
}

// CSS renders the transform as a CSS transform value.
func (t Transform) CSS() string {
	return fmt.Sprintf("scale(%s) translate(%spx, %spx)", num(t.Scale), num(t.PanX), num(t.PanY))
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// ToContent maps a point in the untransformed page box of size w x h to the
// content point drawn under it. The transform origin is the box centre.
func (t Transform) ToContent(x, y float64, w, h int) (float64, float64) {
	s := t.Scale
	if s <= 0 {
		s = MinScale
	}
	cx, cy := float64(w)/2, float64(h)/2
	return cx + (x-cx)/s - t.PanX, cy + (y-cy)/s - t.PanY
}

// ToScreen is the inverse of ToContent.
func (t Transform) ToScreen(x, y float64, w, h int) (float64, float64) {
	cx, cy := float64(w)/2, float64(h)/2
	return cx + t.Scale*(x-cx+t.PanX), cy + t.Scale*(y-cy+t.PanY)
}

// Gestures applies pinch and pan gestures to a Transform. Scale is
// multiplicative against the scale at pinch start; pan adds delta/scale to
// the pan at pan start. Events are ignored while gestures are disabled.
type Gestures struct {
	mu        sync.Mutex
	t         Transform
	enabled   bool
	baseScale float64
	baseX     float64
	baseY     float64
}

// NewGestures returns enabled gestures at the identity transform.
func NewGestures() *Gestures {
	return &Gestures{t: Identity(), enabled: true, baseScale: MinScale}
}

// SetGesturesEnabled suspends or resumes gesture handling.
func (g *Gestures) SetGesturesEnabled(on bool) {
	g.mu.Lock()
	g.enabled = on
	g.mu.Unlock()
}

func (g *Gestures) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

func (g *Gestures) Transform() Transform {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t
}

// Reset returns to the identity transform.
func (g *Gestures) Reset() {
	g.mu.Lock()
	g.t = Identity()
	g.baseScale = MinScale
	g.baseX, g.baseY = 0, 0
	g.mu.Unlock()
}

func (g *Gestures) PinchStart() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	g.baseScale = g.t.Scale
	return true
}

// PinchMove sets the scale to the start scale times factor.
func (g *Gestures) PinchMove(factor float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	g.t.Scale = g.baseScale * factor
	g.t = g.t.Normalize()
	return true
}

func (g *Gestures) PinchEnd() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	g.baseScale = g.t.Scale
	return true
}

func (g *Gestures) PanStart() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	g.baseX, g.baseY = g.t.PanX, g.t.PanY
	return true
}

// PanMove offsets the pan from its value at pan start. It has no effect
// at MinScale.
func (g *Gestures) PanMove(dx, dy float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	if g.t.Scale <= MinScale {
		return true
	}
	g.t.PanX = g.baseX + dx/g.t.Scale
	g.t.PanY = g.baseY + dy/g.t.Scale
	return true
}

func (g *Gestures) PanEnd() bool {
	return g.Enabled()
}
