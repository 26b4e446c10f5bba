package annotate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/db"
)

type gestureRecorder struct {
	calls []bool
}

func (g *gestureRecorder) SetGesturesEnabled(on bool) { g.calls = append(g.calls, on) }

type failingStore struct{ MemoryStore }

func (f *failingStore) Put(context.Context, string, int, []byte, int, int) error {
	return errors.New("disk full")
}

func newSurface(t *testing.T, store Store, s Settings) (*Surface, *gestureRecorder) {
	t.Helper()
	g := &gestureRecorder{}
	surf := NewSurface(NewPersistence(store, zerolog.Nop()), s, g)
	surf.SetMode(true)
	return surf, g
}

func alphaAt(img *image.RGBA, x, y int) uint8 {
	return img.RGBAAt(x, y).A
}

func opaqueRed(brush float64, tool Tool) Settings {
	return Settings{Tool: tool, Color: color.NRGBA{R: 255, A: 255}, BrushSize: brush}
}

func TestPenStrokeRoundTripAcrossNavigation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	surf, _ := newSurface(t, store, opaqueRed(60, ToolPen))
	surf.Resize(100, 50)
	surf.Bind(1)

	surf.PointerDown(ctx, Point{X: 10, Y: 25})
	surf.PointerMove(Point{X: 50, Y: 25})
	surf.PointerMove(Point{X: 90, Y: 25})
	surf.PointerUp(ctx, Point{X: 90, Y: 25})
	before := surf.Overlay()

	// Navigate away and back at the same rendered size.
	if err := surf.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	surf.Resize(100, 50)
	if err := surf.Load(ctx, 2); err != nil {
		t.Fatalf("Load 2: %v", err)
	}
	if a := alphaAt(surf.Overlay(), 50, 25); a != 0 {
		t.Fatalf("page 2 should be blank, alpha = %d", a)
	}
	surf.Resize(100, 50)
	if err := surf.Load(ctx, 1); err != nil {
		t.Fatalf("Load 1: %v", err)
	}
	after := surf.Overlay()
	for i := range before.Pix {
		d := int(before.Pix[i]) - int(after.Pix[i])
		if d < -2 || d > 2 {
			t.Fatalf("pixel byte %d differs: %d vs %d", i, before.Pix[i], after.Pix[i])
		}
	}
}

func TestLoadRescalesToNewSize(t *testing.T) {
	ctx := context.Background()
	surf, _ := newSurface(t, NewMemoryStore(), opaqueRed(60, ToolPen))
	surf.Resize(100, 50)
	surf.Bind(7)
	surf.PointerDown(ctx, Point{X: 10, Y: 25})
	surf.PointerMove(Point{X: 90, Y: 25})
	surf.PointerUp(ctx, Point{X: 90, Y: 25})

	surf.Resize(200, 100)
	if err := surf.Load(ctx, 7); err != nil {
		t.Fatalf("Load: %v", err)
	}
	img := surf.Overlay()
	if a := alphaAt(img, 100, 50); a < 250 {
		t.Errorf("scaled stroke centre alpha = %d, want ~255", a)
	}
	if a := alphaAt(img, 100, 10); a != 0 {
		t.Errorf("pixel far from stroke alpha = %d, want 0", a)
	}
}

func TestClearRemovesOnlyThatPage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	surf, _ := newSurface(t, store, opaqueRed(60, ToolPen))
	surf.Resize(40, 40)

	for _, page := range []int{3, 4} {
		surf.Bind(page)
		surf.PointerDown(ctx, Point{X: 5, Y: 5})
		surf.PointerMove(Point{X: 30, Y: 30})
		surf.PointerUp(ctx, Point{X: 30, Y: 30})
	}

	surf.Bind(3)
	if err := surf.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Get(ctx, Key(3)); !errors.Is(err, ErrNotFound) {
		t.Errorf("page 3 entry: err = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, Key(4)); err != nil {
		t.Errorf("page 4 entry should survive: %v", err)
	}
	if a := alphaAt(surf.Overlay(), 17, 17); a != 0 {
		t.Errorf("overlay not wiped, alpha = %d", a)
	}
}

func TestMarkerCommitsHorizontalSegment(t *testing.T) {
	ctx := context.Background()
	settings := Settings{Tool: ToolMarker, Color: color.NRGBA{R: 255, G: 255, A: 102}, BrushSize: 40}
	surf, _ := newSurface(t, NewMemoryStore(), settings)
	surf.Resize(200, 120)
	surf.Bind(1)

	surf.PointerDown(ctx, Point{X: 20, Y: 50})
	surf.PointerMove(Point{X: 60, Y: 80})

	preview := surf.Overlay()
	if a := alphaAt(preview, 40, 50); a == 0 {
		t.Error("preview missing at start row")
	}
	if a := alphaAt(preview, 90, 50); a != 0 {
		t.Errorf("preview reaches past pointer x, alpha = %d", a)
	}
	if a := alphaAt(preview, 60, 80); a != 0 {
		t.Errorf("preview follows pointer y, alpha = %d", a)
	}

	surf.PointerUp(ctx, Point{X: 100, Y: 90})
	got := surf.Overlay()

	want := image.NewRGBA(image.Rect(0, 0, 200, 120))
	drawSegment(want, Point{X: 20, Y: 50}, Point{X: 100, Y: 50}, settings.MarkerWidth(), settings.Color)
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Error("committed marker differs from a single horizontal segment at y0 from x0 to x2")
	}
	if a := alphaAt(got, 60, 80); a != 0 {
		t.Errorf("marker painted off its row, alpha = %d", a)
	}
}

func TestMarkerPreviewKeepsSavedLayer(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	surf, _ := newSurface(t, store, opaqueRed(60, ToolPen))
	surf.Resize(100, 100)
	surf.Bind(2)
	surf.PointerDown(ctx, Point{X: 50, Y: 5})
	surf.PointerMove(Point{X: 50, Y: 95})
	surf.PointerUp(ctx, Point{X: 50, Y: 95})

	surf.SetTool(ToolMarker)
	surf.PointerDown(ctx, Point{X: 10, Y: 20})
	surf.PointerMove(Point{X: 30, Y: 20})
	if a := alphaAt(surf.Overlay(), 50, 80); a != 255 {
		t.Errorf("saved pen stroke lost during marker preview, alpha = %d", a)
	}
	surf.PointerLeave(ctx)
	if surf.Stroking() != nil {
		t.Error("pointer-leave should end the stroke")
	}
	if a := alphaAt(surf.Overlay(), 25, 20); a == 0 {
		t.Error("pointer-leave should commit the marker at the last x")
	}
}

func TestEraserClearsSquare(t *testing.T) {
	ctx := context.Background()
	surf, _ := newSurface(t, NewMemoryStore(), opaqueRed(60, ToolPen))
	surf.Resize(100, 100)
	surf.Bind(1)
	for y := 10.0; y <= 90; y += 8 {
		surf.PointerDown(ctx, Point{X: 0, Y: y})
		surf.PointerMove(Point{X: 100, Y: y})
		surf.PointerUp(ctx, Point{X: 100, Y: y})
	}

	surf.SetTool(ToolEraser)
	surf.SetBrushSize(40) // side 20
	surf.PointerDown(ctx, Point{X: 50, Y: 50})
	surf.PointerMove(Point{X: 50, Y: 50})
	surf.PointerUp(ctx, Point{X: 50, Y: 50})

	img := surf.Overlay()
	if a := alphaAt(img, 45, 45); a != 0 {
		t.Errorf("inside eraser square alpha = %d, want 0", a)
	}
	if a := alphaAt(img, 65, 50); a == 0 {
		t.Error("eraser cleared outside its square")
	}
}

func TestModeOffPassesThrough(t *testing.T) {
	ctx := context.Background()
	surf, g := newSurface(t, NewMemoryStore(), DefaultSettings())
	surf.SetMode(false)
	surf.Resize(10, 10)

	if surf.PointerDown(ctx, Point{X: 1, Y: 1}) {
		t.Error("PointerDown consumed with annotation mode off")
	}
	if surf.PointerMove(Point{X: 2, Y: 2}) || surf.PointerUp(ctx, Point{}) {
		t.Error("move/up consumed with annotation mode off")
	}
	if len(g.calls) != 0 {
		t.Errorf("gestures toggled: %v", g.calls)
	}
}

func TestStrokeSuspendsGestures(t *testing.T) {
	ctx := context.Background()
	surf, g := newSurface(t, NewMemoryStore(), DefaultSettings())
	surf.Resize(10, 10)

	surf.PointerDown(ctx, Point{X: 1, Y: 1})
	if st := surf.Stroking(); st == nil || st.Tool != ToolMarker {
		t.Fatalf("Stroking = %+v, want marker stroke", st)
	}
	surf.PointerUp(ctx, Point{X: 5, Y: 1})
	if len(g.calls) != 2 || g.calls[0] || !g.calls[1] {
		t.Errorf("gesture calls = %v, want [false true]", g.calls)
	}
}

func TestAbandonedStrokeResumesGestures(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		abandon func(*Surface)
	}{
		{"resize", func(s *Surface) { s.Resize(120, 120) }},
		{"load", func(s *Surface) { s.Load(ctx, 2) }},
		{"clear", func(s *Surface) { s.Clear(ctx) }},
		{"bind", func(s *Surface) { s.Bind(3) }},
		{"save", func(s *Surface) { s.Save(ctx) }},
		{"mode off", func(s *Surface) { s.SetMode(false) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			surf, g := newSurface(t, NewMemoryStore(), DefaultSettings())
			surf.Resize(100, 100)
			surf.Bind(1)

			surf.PointerDown(ctx, Point{X: 10, Y: 10})
			tc.abandon(surf)
			if surf.Stroking() != nil {
				t.Error("stroke survived")
			}
			surf.PointerUp(ctx, Point{X: 50, Y: 10})
			surf.SetMode(false)
			if n := len(g.calls); n == 0 || !g.calls[n-1] {
				t.Errorf("gesture calls = %v, want gestures enabled at the end", g.calls)
			}
		})
	}
}

func TestSaveMidMarkerKeepsBaseline(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	surf, _ := newSurface(t, store, opaqueRed(60, ToolPen))
	surf.Resize(100, 100)
	surf.Bind(1)
	surf.PointerDown(ctx, Point{X: 50, Y: 5})
	surf.PointerMove(Point{X: 50, Y: 95})
	surf.PointerUp(ctx, Point{X: 50, Y: 95})

	surf.SetTool(ToolMarker)
	surf.PointerDown(ctx, Point{X: 10, Y: 20})
	surf.PointerMove(Point{X: 30, Y: 20})
	if err := surf.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	surf.Resize(100, 100)
	if err := surf.Load(ctx, 1); err != nil {
		t.Fatalf("Load: %v", err)
	}
	img := surf.Overlay()
	if a := alphaAt(img, 20, 20); a != 0 {
		t.Errorf("marker preview was saved, alpha = %d", a)
	}
	if a := alphaAt(img, 50, 80); a != 255 {
		t.Errorf("saved pen stroke lost, alpha = %d", a)
	}
}

func TestSaveFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	persist := NewPersistence(&failingStore{}, zerolog.New(&buf))
	surf := NewSurface(persist, opaqueRed(60, ToolPen), nil)
	surf.SetMode(true)
	surf.Resize(20, 20)
	surf.Bind(9)

	surf.PointerDown(ctx, Point{X: 1, Y: 1})
	surf.PointerMove(Point{X: 15, Y: 15})
	if !surf.PointerUp(ctx, Point{X: 15, Y: 15}) {
		t.Fatal("PointerUp not consumed")
	}
	if !strings.Contains(buf.String(), "saving annotations failed") {
		t.Errorf("log = %q", buf.String())
	}
	if a := alphaAt(surf.Overlay(), 8, 8); a == 0 {
		t.Error("stroke should stay on the overlay after a failed save")
	}
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	store := NewSQLStore(database, 10)
	if err := store.Put(ctx, Key(1), 1, []byte("abcdef"), 4, 3); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Replacing an entry only counts the new size.
	if err := store.Put(ctx, Key(1), 1, []byte("abcdefgh"), 4, 3); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	if err := store.Put(ctx, Key(2), 2, []byte("xyz"), 4, 3); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Put over quota: err = %v, want ErrQuotaExceeded", err)
	}

	data, err := store.Get(ctx, Key(1))
	if err != nil || string(data) != "abcdefgh" {
		t.Fatalf("Get = %q, %v", data, err)
	}
	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "highlights_page_1" || entries[0].Bytes != 8 {
		t.Errorf("List = %+v", entries)
	}

	if err := store.Delete(ctx, Key(1)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, Key(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v", err)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		err  bool
	}{
		{in: "rgba(255,255,0,0.4)", want: color.NRGBA{R: 255, G: 255, A: 102}},
		{in: "rgb(1, 2, 3)", want: color.NRGBA{R: 1, G: 2, B: 3, A: 255}},
		{in: "#f00", want: color.NRGBA{R: 255, A: 255}},
		{in: "#00ff0080", want: color.NRGBA{G: 255, A: 128}},
		{in: "blue", err: true},
		{in: "rgba(300,0,0,1)", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.err {
				if err == nil {
					t.Errorf("ParseColor(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseColor(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSettingsWidths(t *testing.T) {
	s := Settings{BrushSize: 3}
	if s.PenWidth() != 1 || s.MarkerWidth() != 4 || s.EraserSide() != 8 {
		t.Errorf("small brush widths = %v %v %v", s.PenWidth(), s.MarkerWidth(), s.EraserSide())
	}
	s.BrushSize = 60
	if s.PenWidth() != 10 || s.MarkerWidth() != 30 || s.EraserSide() != 30 {
		t.Errorf("brush 60 widths = %v %v %v", s.PenWidth(), s.MarkerWidth(), s.EraserSide())
	}
}

func TestSettingsFromConfig(t *testing.T) {
	s, err := SettingsFrom(config.DefaultConfig().Annotate)
	if err != nil {
		t.Fatalf("SettingsFrom: %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("default config settings = %+v, want %+v", s, DefaultSettings())
	}
	s, err = SettingsFrom(config.AnnotateConfig{Tool: config.ToolPen, Color: "#ff0000", BrushSize: 12})
	if err != nil {
		t.Fatal(err)
	}
	if s.Tool != ToolPen || s.Color != (color.NRGBA{R: 255, A: 255}) || s.BrushSize != 12 {
		t.Errorf("settings = %+v", s)
	}
	if _, err := SettingsFrom(config.AnnotateConfig{Color: "chartreuse-ish"}); err == nil {
		t.Error("bad color accepted")
	}
}
