package pages

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"sync"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
)

// Info is what navigation needs from a decoded page image.
type Info struct {
	Page   int `json:"page"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is the outcome of an asynchronous page load.
type Result struct {
	Info
	Err error
}

// Pending is a page load in flight. It always knows which page it was
// issued for so stale results can be discarded by the receiver.
type Pending struct {
	page int
	done chan struct{}
	res  Result
}

// NewPending runs load on a new goroutine and returns its future.
func NewPending(page int, load func() (Info, error)) *Pending {
	p := &Pending{page: page, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		info, err := load()
		p.res = Result{Info: info, Err: err}
	}()
	return p
}

func (p *Pending) Page() int { return p.page }

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the load finishes or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Loader reads page images from an fs.FS, decoding on goroutines and
// caching image dimensions for preloaded pages.
type Loader struct {
	fsys   fs.FS
	assets Assets
	log    zerolog.Logger

	mu    sync.Mutex
	infos map[int]Info
}

// NewLoader returns a loader over fsys, which holds the files Assets names.
func NewLoader(fsys fs.FS, assets Assets, log zerolog.Logger) *Loader {
	return &Loader{
		fsys:   fsys,
		assets: assets,
		log:    log.With().Str("component", "pages").Logger(),
		infos:  make(map[int]Info),
	}
}

func (l *Loader) Assets() Assets { return l.assets }

// Load starts reading page's dimensions and returns immediately.
func (l *Loader) Load(page int) *Pending {
	return NewPending(page, func() (Info, error) {
		info, err := l.info(page)
		if err != nil {
			l.log.Warn().Err(err).Int("page", page).Msg("page image failed to load")
		}
		return info, err
	})
}

// Preload warms the dimension cache for the pages either side of page.
func (l *Loader) Preload(page int) {
	for _, n := range []int{page - 1, page + 1} {
		if !l.assets.Valid(n) || l.cached(n) {
			continue
		}
		go func(n int) {
			if _, err := l.info(n); err != nil {
				l.log.Debug().Err(err).Int("page", n).Msg("preload failed")
			}
		}(n)
	}
}

func (l *Loader) cached(page int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.infos[page]
	return ok
}

func (l *Loader) info(page int) (Info, error) {
	if err := l.assets.check(page); err != nil {
		return Info{}, err
	}
	l.mu.Lock()
	if info, ok := l.infos[page]; ok {
		l.mu.Unlock()
		return info, nil
	}
	l.mu.Unlock()

	f, err := l.fsys.Open(l.assets.ImageRef(page))
	if err != nil {
		return Info{}, fmt.Errorf("opening page %d: %w", page, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("decoding page %d: %w", page, err)
	}

	info := Info{Page: page, Width: cfg.Width, Height: cfg.Height}
	l.mu.Lock()
	l.infos[page] = info
	l.mu.Unlock()
	return info, nil
}

// Image decodes page's full-resolution image.
func (l *Loader) Image(page int) (image.Image, error) {
	if err := l.assets.check(page); err != nil {
		return nil, err
	}
	f, err := l.fsys.Open(l.assets.ImageRef(page))
	if err != nil {
		return nil, fmt.Errorf("opening page %d: %w", page, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding page %d: %w", page, err)
	}
	return img, nil
}

// PNGDataURL returns page's full-resolution image re-encoded as a PNG data
// URL.
func (l *Loader) PNGDataURL(page int) (string, error) {
	img, err := l.Image(page)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding page %d: %w", page, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Fit scales a natural image size to fit inside a width x height box,
// preserving aspect ratio. A zero box leaves the natural size.
func Fit(naturalW, naturalH, boxW, boxH int) (int, int) {
	if naturalW <= 0 || naturalH <= 0 {
		return 0, 0
	}
	if boxW <= 0 || boxH <= 0 {
		return naturalW, naturalH
	}
	sx := float64(boxW) / float64(naturalW)
	sy := float64(boxH) / float64(naturalH)
	s := sx
	if sy < s {
		s = sy
	}
	w := int(float64(naturalW)*s + 0.5)
	h := int(float64(naturalH)*s + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
