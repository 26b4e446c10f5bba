package annotate

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// GestureSwitch is the viewport gesture handler as seen from the surface.
// Gestures are suspended for the duration of a stroke.
type GestureSwitch interface {
	SetGesturesEnabled(enabled bool)
}

// Stroke is the in-progress pointer interaction. A nil *Stroke on the
// surface means Idle.
type Stroke struct {
	Tool  Tool    `json:"tool"`
	Start Point   `json:"start"`
	Last  Point   `json:"last"`
	Path  []Point `json:"path,omitempty"`

	// baseline is the last saved layer a marker preview is redrawn over.
	baseline *image.RGBA
}

// Surface is the transparent overlay a reader draws on. It owns the
// stroke state machine and writes through Persistence on pointer-up.
type Surface struct {
	mu       sync.Mutex
	overlay  *image.RGBA
	settings Settings
	enabled  bool
	page     int
	stroke   *Stroke

	persist  *Persistence
	gestures GestureSwitch
}

// NewSurface returns an Idle surface with annotation mode off. gestures may
// be nil.
func NewSurface(persist *Persistence, settings Settings, gestures GestureSwitch) *Surface {
	return &Surface{
		overlay:  image.NewRGBA(image.Rect(0, 0, 0, 0)),
		settings: settings,
		persist:  persist,
		gestures: gestures,
	}
}

// SetMode turns annotation mode on or off. Turning it off mid-stroke
// abandons the stroke without committing.
func (s *Surface) SetMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
	if !on {
		s.dropStroke()
	}
}

func (s *Surface) Mode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Surface) SetTool(t Tool) {
	s.mu.Lock()
	s.settings.Tool = t
	s.mu.Unlock()
}

func (s *Surface) SetColor(c color.NRGBA) {
	s.mu.Lock()
	s.settings.Color = c
	s.mu.Unlock()
}

func (s *Surface) SetBrushSize(size float64) {
	if size <= 0 {
		return
	}
	s.mu.Lock()
	s.settings.BrushSize = size
	s.mu.Unlock()
}

func (s *Surface) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Bind makes page the page that strokes are saved under.
func (s *Surface) Bind(page int) {
	s.mu.Lock()
	s.dropStroke()
	s.page = page
	s.mu.Unlock()
}

func (s *Surface) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Resize replaces the overlay with a blank one of the given size. Contents
// are not kept; callers reload the page's layer afterwards.
func (s *Surface) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	s.mu.Lock()
	s.dropStroke()
	s.overlay = image.NewRGBA(image.Rect(0, 0, width, height))
	s.mu.Unlock()
}

// Size reports the overlay dimensions.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sz := s.overlay.Bounds().Size()
	return sz.X, sz.Y
}

// Overlay returns a copy of the current overlay.
func (s *Surface) Overlay() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRGBA(s.overlay)
}

// Stroking reports the current stroke, or nil when Idle.
func (s *Surface) Stroking() *Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stroke == nil {
		return nil
	}
	cp := *s.stroke
	cp.Path = append([]Point(nil), s.stroke.Path...)
	cp.baseline = nil
	return &cp
}

// Save persists the overlay under the bound page. A stroke in progress is
// abandoned first, so a marker preview is never stored.
func (s *Surface) Save(ctx context.Context) error {
	s.mu.Lock()
	s.dropStroke()
	page, img := s.page, cloneRGBA(s.overlay)
	s.mu.Unlock()
	return s.persist.Save(ctx, page, img)
}

// Load replaces the overlay contents with page's saved layer and binds the
// surface to page.
func (s *Surface) Load(ctx context.Context, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropStroke()
	s.page = page
	return s.persist.Load(ctx, page, s.overlay)
}

// Clear wipes the overlay and the bound page's saved layer.
func (s *Surface) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropStroke()
	return s.persist.Clear(ctx, s.page, s.overlay)
}

// PointerDown starts a stroke at p. It returns false when annotation mode
// is off and the event belongs to the viewport gestures instead.
func (s *Surface) PointerDown(ctx context.Context, p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return false
	}
	st := &Stroke{Tool: s.settings.Tool, Start: p, Last: p, Path: []Point{p}}
	if st.Tool == ToolMarker {
		st.baseline = s.savedBaseline(ctx)
	}
	s.stroke = st
	s.setGestures(false)
	return true
}

// PointerMove extends the current stroke. Moves while Idle are consumed
// when annotation mode is on and ignored otherwise.
func (s *Surface) PointerMove(p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return false
	}
	st := s.stroke
	if st == nil {
		return true
	}
	switch st.Tool {
	case ToolPen:
		drawSegment(s.overlay, st.Last, p, s.settings.PenWidth(), s.settings.Color)
		st.Path = append(st.Path, p)
	case ToolEraser:
		eraseSquare(s.overlay, p, s.settings.EraserSide())
	case ToolMarker:
		s.drawMarker(st, p.X)
	}
	st.Last = p
	return true
}

// PointerUp finishes the stroke at p and saves the page.
func (s *Surface) PointerUp(ctx context.Context, p Point) bool {
	return s.finish(ctx, &p)
}

// PointerLeave finishes the stroke at the last seen position.
func (s *Surface) PointerLeave(ctx context.Context) bool {
	return s.finish(ctx, nil)
}

func (s *Surface) finish(ctx context.Context, at *Point) bool {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return false
	}
	st := s.stroke
	if st == nil {
		s.mu.Unlock()
		return true
	}
	end := st.Last
	if at != nil {
		end = *at
	}
	if st.Tool == ToolMarker {
		s.drawMarker(st, end.X)
	}
	s.stroke = nil
	s.setGestures(true)
	page, img := s.page, cloneRGBA(s.overlay)
	s.mu.Unlock()

	// Save failures are logged by Persistence; the stroke stays on screen.
	_ = s.persist.Save(ctx, page, img)
	return true
}

// drawMarker redraws the baseline and a horizontal bar at the stroke's
// start y from the start x to x.
func (s *Surface) drawMarker(st *Stroke, x float64) {
	clearAll(s.overlay)
	if st.baseline != nil {
		stretchOnto(s.overlay, st.baseline)
	}
	drawSegment(s.overlay, st.Start, Point{X: x, Y: st.Start.Y}, s.settings.MarkerWidth(), s.settings.Color)
}

// savedBaseline returns the last saved layer for the bound page at overlay
// size, or nil when nothing is saved.
func (s *Surface) savedBaseline(ctx context.Context) *image.RGBA {
	size := s.overlay.Bounds().Size()
	layer, ok, err := s.persist.Restore(ctx, s.page, size.X, size.Y)
	if err != nil {
		s.persist.log.Warn().Err(err).Int("page", s.page).Msg("reading marker baseline failed")
		return cloneRGBA(s.overlay)
	}
	if !ok {
		return nil
	}
	return layer
}

// dropStroke abandons the stroke in progress without committing it: a
// marker preview is replaced by its baseline and gestures resume.
func (s *Surface) dropStroke() {
	st := s.stroke
	if st == nil {
		return
	}
	if st.Tool == ToolMarker {
		clearAll(s.overlay)
		if st.baseline != nil {
			stretchOnto(s.overlay, st.baseline)
		}
	}
	s.stroke = nil
	s.setGestures(true)
}

func (s *Surface) setGestures(on bool) {
	if s.gestures != nil {
		s.gestures.SetGesturesEnabled(on)
	}
}
