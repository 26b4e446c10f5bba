package viewport

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Transform
		want Transform
	}{
		{"below min", Transform{Scale: 0.2, PanX: 5, PanY: 5}, Transform{Scale: 1}},
		{"above max", Transform{Scale: 9, PanX: 5, PanY: -3}, Transform{Scale: 5, PanX: 5, PanY: -3}},
		{"pan zero at 1", Transform{Scale: 1, PanX: 7}, Transform{Scale: 1}},
		{"nan", Transform{Scale: math.NaN()}, Transform{Scale: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.in.Normalize()); diff != "" {
				t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPinchIsMultiplicativeAndClamped(t *testing.T) {
	g := NewGestures()
	g.PinchStart()
	g.PinchMove(1.5)
	g.PinchMove(2)
	g.PinchEnd()
	if s := g.Transform().Scale; s != 2 {
		t.Fatalf("scale = %v, want 2", s)
	}

	g.PinchStart()
	g.PinchMove(2)
	if s := g.Transform().Scale; s != 4 {
		t.Errorf("second pinch scale = %v, want 4", s)
	}
	g.PinchMove(10)
	if s := g.Transform().Scale; s != MaxScale {
		t.Errorf("scale = %v, want clamped to %v", s, MaxScale)
	}
	g.PinchMove(0.01)
	if s := g.Transform().Scale; s != MinScale {
		t.Errorf("scale = %v, want clamped to %v", s, MinScale)
	}
}

func TestPanOnlyWhenZoomed(t *testing.T) {
	g := NewGestures()
	g.PanStart()
	g.PanMove(40, 40)
	if tr := g.Transform(); tr.PanX != 0 || tr.PanY != 0 {
		t.Errorf("pan at scale 1 = %+v, want zero", tr)
	}

	g.PinchStart()
	g.PinchMove(2)
	g.PinchEnd()
	g.PanStart()
	g.PanMove(40, -20)
	g.PanEnd()
	g.PanStart()
	g.PanMove(10, 0)
	want := Transform{Scale: 2, PanX: 25, PanY: -10}
	if diff := cmp.Diff(want, g.Transform()); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}

	// Pinching back out to 1 drops the pan.
	g.PinchStart()
	g.PinchMove(0.25)
	if tr := g.Transform(); tr != Identity() {
		t.Errorf("transform at scale 1 = %+v", tr)
	}
}

func TestDisabledGesturesIgnored(t *testing.T) {
	g := NewGestures()
	g.SetGesturesEnabled(false)
	if g.PinchStart() || g.PinchMove(3) || g.PanStart() || g.PanMove(1, 1) {
		t.Error("gesture consumed while disabled")
	}
	if g.Transform() != Identity() {
		t.Errorf("transform changed while disabled: %+v", g.Transform())
	}
}

func TestResetAndCSS(t *testing.T) {
	g := NewGestures()
	g.PinchStart()
	g.PinchMove(2.5)
	g.PanStart()
	g.PanMove(5, 5)
	if css := g.Transform().CSS(); css != "scale(2.5) translate(2px, 2px)" {
		t.Errorf("CSS = %q", css)
	}
	g.Reset()
	if css := g.Transform().CSS(); css != "scale(1) translate(0px, 0px)" {
		t.Errorf("CSS after reset = %q", css)
	}
}

func TestContentMappingRoundTrip(t *testing.T) {
	tr := Transform{Scale: 3, PanX: 12, PanY: -8}
	x, y := tr.ToContent(130, 40, 400, 600)
	sx, sy := tr.ToScreen(x, y, 400, 600)
	approx := cmpopts.EquateApprox(0, 1e-9)
	if !cmp.Equal([]float64{130, 40}, []float64{sx, sy}, approx) {
		t.Errorf("round trip = %v,%v", sx, sy)
	}
	if cx, cy := Identity().ToContent(33, 44, 400, 600); cx != 33 || cy != 44 {
		t.Errorf("identity mapping = %v,%v", cx, cy)
	}
}
