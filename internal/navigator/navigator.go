// Package navigator sequences page changes: saving the outgoing page's
// annotations, loading the incoming image, and bringing the overlay,
// viewport and indicator up to date once the image arrives.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
)

var (
	// ErrOutOfRange is returned for a page outside [1, total].
	ErrOutOfRange = errors.New("page out of range")
	// ErrNotANumber is returned when typed page input does not parse.
	ErrNotANumber = errors.New("page input is not a number")
)

// Annotations is the annotation surface as the navigator drives it.
type Annotations interface {
	Save(ctx context.Context) error
	Resize(width, height int)
	Load(ctx context.Context, page int) error
}

// Viewport is reset on every page change.
type Viewport interface {
	Reset()
}

// Images starts page image loads.
type Images interface {
	Load(page int) *pages.Pending
	Preload(page int)
}

// Listener receives the visible effects of a finished page change, in
// order: the indicator/thumbnail update, then each auto-opened media item.
type Listener interface {
	PageShown(Shown)
	MediaOpened(Media)
}

// Shown describes a page once its image has loaded.
type Shown struct {
	Page          int     `json:"page"`
	Total         int     `json:"total"`
	Image         string  `json:"image"`
	Thumb         string  `json:"thumb"`
	NaturalWidth  int     `json:"natural_width"`
	NaturalHeight int     `json:"natural_height"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Media         []Media `json:"media,omitempty"`
	Err           string  `json:"error,omitempty"`
}

// Indicator is the "Page n / total" label.
func (s Shown) Indicator() string {
	return fmt.Sprintf("Page %d / %d", s.Page, s.Total)
}

// Thumb is one entry of the thumbnail strip.
type Thumb struct {
	Page   int    `json:"page"`
	Ref    string `json:"ref"`
	Active bool   `json:"active"`
}

// Navigator owns the current page. GoTo starts a change and returns the
// pending image load; Finish applies the load if it is still current.
type Navigator struct {
	assets   pages.Assets
	chapters []config.Chapter
	sims     []config.Media
	videos   []config.Media

	images      Images
	annotations Annotations
	viewport    Viewport
	listener    Listener
	log         zerolog.Logger

	mu      sync.Mutex
	current int
	shown   int
	pending *pages.Pending
	boxW    int
	boxH    int
	natural map[int][2]int
}

// New creates a navigator with no current page.
func New(book config.BookConfig, images Images, annotations Annotations, viewport Viewport, log zerolog.Logger) *Navigator {
	return &Navigator{
		assets:      pages.NewAssets(book),
		chapters:    book.Chapters,
		sims:        book.Simulations,
		videos:      book.Videos,
		images:      images,
		annotations: annotations,
		viewport:    viewport,
		log:         log.With().Str("component", "navigator").Logger(),
		natural:     make(map[int][2]int),
	}
}

// Current is the page most recently navigated to, or 0 before the first
// GoTo.
func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// SetListener registers l for page and media updates. It may be nil.
func (n *Navigator) SetListener(l Listener) {
	n.mu.Lock()
	n.listener = l
	n.mu.Unlock()
}

func (n *Navigator) Total() int { return n.assets.Total }

func (n *Navigator) Assets() pages.Assets { return n.assets }

// GoTo saves the outgoing page's annotations, makes page current and starts
// loading its image. Pages outside [1, total] are rejected and leave the
// current page unchanged.
func (n *Navigator) GoTo(ctx context.Context, page int) (*pages.Pending, error) {
	if !n.assets.Valid(page) {
		return nil, fmt.Errorf("page %d of %d: %w", page, n.assets.Total, ErrOutOfRange)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != 0 {
		// Failures are logged by the annotation layer; navigation proceeds.
		_ = n.annotations.Save(ctx)
	}
	n.current = page
	n.pending = n.images.Load(page)
	n.log.Debug().Int("page", page).Msg("loading page")
	return n.pending, nil
}

// Finish applies the result of p. It returns false and does nothing when p
// is not the latest load, so a slow image never replaces a newer page.
func (n *Navigator) Finish(ctx context.Context, p *pages.Pending, res pages.Result) (Shown, bool) {
	n.mu.Lock()
	if p == nil || p != n.pending {
		n.mu.Unlock()
		return Shown{}, false
	}
	page := p.Page()
	n.pending = nil
	listener := n.listener

	if res.Err != nil {
		n.mu.Unlock()
		return Shown{Page: page, Total: n.assets.Total, Image: n.assets.ImageRef(page), Err: res.Err.Error()}, true
	}

	n.viewport.Reset()
	n.natural[page] = [2]int{res.Width, res.Height}
	shown := n.fitLocked(ctx, page)
	shown.Media = mediaFor(page, n.sims, n.videos)
	n.shown = page
	n.mu.Unlock()

	if listener != nil {
		listener.PageShown(shown)
	}
	n.images.Preload(page)
	if listener != nil {
		for _, m := range shown.Media {
			listener.MediaOpened(m)
		}
	}
	return shown, true
}

// fitLocked resizes the overlay to page's rendered size and reloads its
// annotations.
func (n *Navigator) fitLocked(ctx context.Context, page int) Shown {
	nat := n.natural[page]
	w, h := pages.Fit(nat[0], nat[1], n.boxW, n.boxH)
	n.annotations.Resize(w, h)
	if err := n.annotations.Load(ctx, page); err != nil {
		n.log.Warn().Err(err).Int("page", page).Msg("annotations not restored")
	}
	return Shown{
		Page:          page,
		Total:         n.assets.Total,
		Image:         n.assets.ImageRef(page),
		Thumb:         n.assets.ThumbRef(page),
		NaturalWidth:  nat[0],
		NaturalHeight: nat[1],
		Width:         w,
		Height:        h,
	}
}

// Await blocks for the pending load and applies it.
func (n *Navigator) Await(ctx context.Context, p *pages.Pending) (Shown, bool, error) {
	res, err := p.Wait(ctx)
	if err != nil {
		return Shown{}, false, err
	}
	shown, ok := n.Finish(ctx, p, res)
	return shown, ok, nil
}

// SetDisplayBox records the box the page image is fitted into. When a page
// is already shown its overlay is resized and its annotations reloaded.
func (n *Navigator) SetDisplayBox(ctx context.Context, width, height int) (Shown, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.boxW, n.boxH = width, height
	if n.shown == 0 || n.shown != n.current || n.pending != nil {
		return Shown{}, false
	}
	return n.fitLocked(ctx, n.shown), true
}

// Next moves one page forward. It returns a nil Pending on the last page.
func (n *Navigator) Next(ctx context.Context) (*pages.Pending, error) {
	cur := n.Current()
	if cur >= n.assets.Total {
		return nil, nil
	}
	return n.GoTo(ctx, cur+1)
}

// Prev moves one page back. It returns a nil Pending on the first page.
func (n *Navigator) Prev(ctx context.Context) (*pages.Pending, error) {
	cur := n.Current()
	if cur <= 1 {
		return nil, nil
	}
	return n.GoTo(ctx, cur-1)
}

// Jump parses typed page input and navigates to it.
func (n *Navigator) Jump(ctx context.Context, input string) (*pages.Pending, error) {
	page, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", input, ErrNotANumber)
	}
	return n.GoTo(ctx, page)
}

// Chapters returns the configured chapter index.
func (n *Navigator) Chapters() []config.Chapter {
	return append([]config.Chapter(nil), n.chapters...)
}

// Chapter navigates to the start of the i-th chapter.
func (n *Navigator) Chapter(ctx context.Context, i int) (*pages.Pending, error) {
	if i < 0 || i >= len(n.chapters) {
		return nil, fmt.Errorf("chapter %d of %d: %w", i, len(n.chapters), ErrOutOfRange)
	}
	return n.GoTo(ctx, n.chapters[i].Page)
}

// Thumbnails lists every page's thumbnail with the current page marked.
func (n *Navigator) Thumbnails() []Thumb {
	cur := n.Current()
	thumbs := make([]Thumb, n.assets.Total)
	for i := range thumbs {
		p := i + 1
		thumbs[i] = Thumb{Page: p, Ref: n.assets.ThumbRef(p), Active: p == cur}
	}
	return thumbs
}

// MediaFor returns the media bound to page.
func (n *Navigator) MediaFor(page int) []Media {
	return mediaFor(page, n.sims, n.videos)
}
