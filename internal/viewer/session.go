// Package viewer holds the state of one reader's viewing session: the
// navigator, annotation surface, viewport gestures, search and AI helper,
// driven by a stream of browser events.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/aiproxy"
	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/navigator"
	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
	"github.com/masskarem1/PHYS.101-Ebook/internal/viewport"
)

var (
	// ErrNoSearch is returned when no text corpus is loaded.
	ErrNoSearch = errors.New("search is not available")
	// ErrNoHelper is returned when the AI helper is not configured.
	ErrNoHelper = errors.New("AI helper is not configured")
	// ErrAIBusy is returned while an AI request is already running.
	ErrAIBusy = errors.New("AI request already in progress")
)

// Options are the collaborators a session is built from. Search and Helper
// may be nil.
type Options struct {
	Book        config.BookConfig
	Settings    annotate.Settings
	Images      navigator.Images
	Persistence *annotate.Persistence
	Search      *search.Service
	Helper      *aiproxy.Helper
	Log         zerolog.Logger
}

// Emitter delivers messages to the browser. It is called from the session
// goroutine and from AI request goroutines, so it must be safe for
// concurrent use.
type Emitter func(Message)

// Session is the single application state of one open viewer.
type Session struct {
	ID string

	nav      *navigator.Navigator
	surface  *annotate.Surface
	gestures *viewport.Gestures
	digits   *navigator.DigitBuffer
	search   *search.Service
	helper   *aiproxy.Helper
	emit     Emitter
	log      zerolog.Logger

	loaded  chan loadedPage
	panFrom *annotate.Point
	wg      sync.WaitGroup

	aiMu      sync.Mutex
	aiBusy    bool
	lastReply string
}

type loadedPage struct {
	p   *pages.Pending
	res pages.Result
}

// New builds a session with a fresh ID. Nothing is shown until an open or
// goto event arrives.
func New(opts Options, emit Emitter) *Session {
	id := uuid.New().String()
	log := opts.Log.With().Str("session", id).Logger()
	gestures := viewport.NewGestures()
	surface := annotate.NewSurface(opts.Persistence, opts.Settings, gestures)

	s := &Session{
		ID:       id,
		gestures: gestures,
		surface:  surface,
		digits:   navigator.NewDigitBuffer(),
		search:   opts.Search,
		helper:   opts.Helper,
		emit:     emit,
		log:      log,
		loaded:   make(chan loadedPage),
	}
	s.nav = navigator.New(opts.Book, opts.Images, surface, gestures, log)
	s.nav.SetListener(s)
	return s
}

func (s *Session) Navigator() *navigator.Navigator { return s.nav }

func (s *Session) Surface() *annotate.Surface { return s.surface }

func (s *Session) Gestures() *viewport.Gestures { return s.gestures }

// Run processes events and finished page loads on the calling goroutine
// until events is closed or ctx is done. It waits for outstanding loads and
// AI requests before returning.
func (s *Session) Run(ctx context.Context, events <-chan Event) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Handle(ctx, ev)
		case l := <-s.loaded:
			s.finish(ctx, l)
		}
	}
}

// Handle applies one event. Failures are reported to the browser as error
// messages.
func (s *Session) Handle(ctx context.Context, ev Event) {
	if err := s.handle(ctx, ev); err != nil {
		s.send(Message{Type: MsgError, Error: err.Error()})
	}
}

func (s *Session) handle(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EvOpen:
		if ev.Width > 0 && ev.Height > 0 {
			s.nav.SetDisplayBox(ctx, ev.Width, ev.Height)
		}
		page := ev.Page
		if page == 0 {
			page = max(1, s.nav.Current())
		}
		s.sendSettings()
		return s.goTo(ctx, page)
	case EvGoTo:
		return s.goTo(ctx, ev.Page)
	case EvNext:
		p, err := s.nav.Next(ctx)
		return s.follow(ctx, p, err)
	case EvPrev:
		p, err := s.nav.Prev(ctx)
		return s.follow(ctx, p, err)
	case EvJump:
		p, err := s.nav.Jump(ctx, ev.Input)
		return s.follow(ctx, p, err)
	case EvChapter:
		p, err := s.nav.Chapter(ctx, ev.Index)
		return s.follow(ctx, p, err)
	case EvKey:
		return s.key(ctx, ev.Key)
	case EvResize:
		if ev.Width <= 0 || ev.Height <= 0 {
			return fmt.Errorf("invalid display size %dx%d", ev.Width, ev.Height)
		}
		if shown, ok := s.nav.SetDisplayBox(ctx, ev.Width, ev.Height); ok {
			s.sendPage(shown)
			s.sendOverlay()
		}
		return nil

	case EvMode:
		s.surface.SetMode(ev.On)
		s.sendSettings()
		return nil
	case EvTool:
		t, err := annotate.ParseTool(ev.Tool)
		if err != nil {
			return err
		}
		s.surface.SetTool(t)
		s.sendSettings()
		return nil
	case EvColor:
		c, err := annotate.ParseColor(ev.Color)
		if err != nil {
			return err
		}
		s.surface.SetColor(c)
		s.sendSettings()
		return nil
	case EvBrush:
		if ev.Size <= 0 {
			return fmt.Errorf("brush size must be positive, got %v", ev.Size)
		}
		s.surface.SetBrushSize(ev.Size)
		s.sendSettings()
		return nil
	case EvClear:
		err := s.surface.Clear(ctx)
		s.sendOverlay()
		return err

	case EvPointerDown, EvPointerMove, EvPointerUp, EvPointerLeave:
		s.pointer(ctx, ev)
		return nil
	case EvPinchStart:
		s.gestures.PinchStart()
		return nil
	case EvPinchMove:
		if ev.Factor <= 0 {
			return fmt.Errorf("invalid pinch factor %v", ev.Factor)
		}
		if s.gestures.PinchMove(ev.Factor) {
			s.sendTransform()
		}
		return nil
	case EvPinchEnd:
		s.gestures.PinchEnd()
		return nil

	case EvSearch:
		return s.runSearch(ctx, ev)
	case EvAsk:
		action, err := aiproxy.ParseAction(ev.Action)
		if err != nil {
			return err
		}
		if action == aiproxy.ActionTranslateText {
			return s.translate(ctx, ev.Text)
		}
		return s.ask(ctx, action)
	case EvTranslate:
		return s.translate(ctx, ev.Text)
	case EvState:
		s.sendSettings()
		s.sendTransform()
		if s.digits.Pending() != "" {
			s.send(Message{Type: MsgDigits, Digits: s.digits.Pending()})
		}
		return nil
	}
	return fmt.Errorf("unknown event type %q", ev.Type)
}

func (s *Session) goTo(ctx context.Context, page int) error {
	p, err := s.nav.GoTo(ctx, page)
	return s.follow(ctx, p, err)
}

// follow hands a started page load to a goroutine that reports back to
// Run. A nil p means nothing was started.
func (s *Session) follow(ctx context.Context, p *pages.Pending, err error) error {
	if err != nil || p == nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := p.Wait(ctx)
		if err != nil {
			return
		}
		select {
		case s.loaded <- loadedPage{p: p, res: res}:
		case <-ctx.Done():
		}
	}()
	return nil
}

func (s *Session) finish(ctx context.Context, l loadedPage) {
	shown, ok := s.nav.Finish(ctx, l.p, l.res)
	if ok && shown.Err != "" {
		s.log.Warn().Int("page", shown.Page).Str("error", shown.Err).Msg("page image failed to load")
		s.send(Message{Type: MsgPage, Page: &shown, Indicator: shown.Indicator(), Error: shown.Err})
	}
}

// PageShown implements navigator.Listener.
func (s *Session) PageShown(shown navigator.Shown) {
	s.sendPage(shown)
	s.sendTransform()
	s.sendOverlay()
}

// MediaOpened implements navigator.Listener.
func (s *Session) MediaOpened(m navigator.Media) {
	s.send(Message{Type: MsgMedia, Media: &m})
}

// key handles keyboard shortcuts: arrows page, digits buffer a page
// number, Enter jumps to it and d toggles annotation mode.
func (s *Session) key(ctx context.Context, k string) error {
	switch {
	case k == "ArrowRight":
		p, err := s.nav.Next(ctx)
		return s.follow(ctx, p, err)
	case k == "ArrowLeft":
		p, err := s.nav.Prev(ctx)
		return s.follow(ctx, p, err)
	case k == "Enter":
		page, ok := s.digits.Commit()
		s.send(Message{Type: MsgDigits})
		if !ok {
			return nil
		}
		return s.goTo(ctx, page)
	case len(k) == 1 && k[0] >= '0' && k[0] <= '9':
		s.digits.Press(rune(k[0]))
		s.send(Message{Type: MsgDigits, Digits: s.digits.Pending()})
		return nil
	case strings.EqualFold(k, "d"):
		s.surface.SetMode(!s.surface.Mode())
		s.sendSettings()
		return nil
	}
	return nil
}

// pointer routes pointer events to the annotation surface, or to viewport
// panning when annotation mode is off.
func (s *Session) pointer(ctx context.Context, ev Event) {
	p := s.toContent(ev.X, ev.Y)
	stroking := s.surface.Stroking() != nil

	switch ev.Type {
	case EvPointerDown:
		if s.surface.PointerDown(ctx, p) {
			return
		}
		if s.gestures.PanStart() {
			s.panFrom = &annotate.Point{X: ev.X, Y: ev.Y}
		}
	case EvPointerMove:
		if s.surface.PointerMove(p) {
			if stroking {
				s.sendOverlay()
			}
			return
		}
		if s.panFrom != nil && s.gestures.PanMove(ev.X-s.panFrom.X, ev.Y-s.panFrom.Y) {
			s.sendTransform()
		}
	case EvPointerUp, EvPointerLeave:
		var consumed bool
		if ev.Type == EvPointerUp {
			consumed = s.surface.PointerUp(ctx, p)
		} else {
			consumed = s.surface.PointerLeave(ctx)
		}
		if consumed {
			if stroking {
				s.sendOverlay()
			}
			return
		}
		if s.panFrom != nil {
			s.gestures.PanEnd()
			s.panFrom = nil
		}
	}
}

// toContent maps a point in the page box to overlay coordinates under the
// current zoom and pan.
func (s *Session) toContent(x, y float64) annotate.Point {
	w, h := s.surface.Size()
	cx, cy := s.gestures.Transform().ToContent(x, y, w, h)
	return annotate.Point{X: cx, Y: cy}
}

func (s *Session) runSearch(ctx context.Context, ev Event) error {
	if s.search == nil {
		return ErrNoSearch
	}
	var results []search.Result
	if ev.Mode == "semantic" {
		var err error
		results, err = s.search.Semantic(ctx, ev.Query, search.MaxResults)
		if err != nil {
			return err
		}
	} else {
		results = s.search.Search(ev.Query)
	}
	if results == nil {
		results = []search.Result{}
	}
	s.send(Message{Type: MsgSearch, Query: ev.Query, Results: results})
	return nil
}

// ask runs an AI request for the current page in the background.
func (s *Session) ask(ctx context.Context, action aiproxy.Action) error {
	page := s.nav.Current()
	if page == 0 {
		return errors.New("no page is open")
	}
	return s.startAI(ctx, func(ctx context.Context) (aiproxy.Reply, error) {
		return s.helper.Ask(ctx, action, page)
	})
}

// translate translates text, or the previous reply when text is empty.
func (s *Session) translate(ctx context.Context, text string) error {
	if text == "" {
		s.aiMu.Lock()
		text = s.lastReply
		s.aiMu.Unlock()
	}
	if text == "" {
		return aiproxy.ErrNothingToTranslate
	}
	return s.startAI(ctx, func(ctx context.Context) (aiproxy.Reply, error) {
		return s.helper.Translate(ctx, text)
	})
}

func (s *Session) startAI(ctx context.Context, call func(context.Context) (aiproxy.Reply, error)) error {
	if s.helper == nil {
		return ErrNoHelper
	}
	s.aiMu.Lock()
	if s.aiBusy {
		s.aiMu.Unlock()
		return ErrAIBusy
	}
	s.aiBusy = true
	s.aiMu.Unlock()
	s.send(Message{Type: MsgAIBusy})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reply, err := call(ctx)

		s.aiMu.Lock()
		s.aiBusy = false
		if err == nil {
			s.lastReply = reply.Text
		}
		s.aiMu.Unlock()

		if err != nil {
			s.log.Warn().Err(err).Str("action", string(reply.Action)).Msg("AI request failed")
			s.send(Message{Type: MsgAI, Reply: &reply, Error: err.Error()})
			return
		}
		s.send(Message{Type: MsgAI, Reply: &reply})
	}()
	return nil
}

func (s *Session) send(m Message) {
	m.SessionID = s.ID
	if s.emit != nil {
		s.emit(m)
	}
}

func (s *Session) sendPage(shown navigator.Shown) {
	s.send(Message{Type: MsgPage, Page: &shown, Indicator: shown.Indicator()})
}

func (s *Session) sendOverlay() {
	url, err := annotate.DataURL(s.surface.Overlay())
	if err != nil {
		s.log.Warn().Err(err).Msg("encoding overlay failed")
		return
	}
	s.send(Message{Type: MsgOverlay, Overlay: url})
}

func (s *Session) sendTransform() {
	t := s.gestures.Transform()
	s.send(Message{Type: MsgTransform, Transform: &TransformState{
		Scale: t.Scale,
		PanX:  t.PanX,
		PanY:  t.PanY,
		CSS:   t.CSS(),
	}})
}

func (s *Session) sendSettings() {
	st := s.surface.Settings()
	s.send(Message{Type: MsgSettings, Settings: &SettingsState{
		Mode:      s.surface.Mode(),
		Tool:      string(st.Tool),
		Color:     annotate.FormatColor(st.Color),
		BrushSize: st.BrushSize,
	}})
}
