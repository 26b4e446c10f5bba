package annotate

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/rs/zerolog"
)

// Persistence saves and restores per-page annotation layers as PNG.
type Persistence struct {
	store Store
	log   zerolog.Logger
}

// NewPersistence wraps store.
func NewPersistence(store Store, log zerolog.Logger) *Persistence {
	return &Persistence{store: store, log: log.With().Str("component", "annotations").Logger()}
}

// Store returns the underlying key-value store.
func (p *Persistence) Store() Store { return p.store }

// Save encodes overlay and stores it as page's layer, replacing any earlier
// one. Failures are logged and returned; callers carry on regardless.
func (p *Persistence) Save(ctx context.Context, page int, overlay *image.RGBA) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, overlay); err != nil {
		p.log.Warn().Err(err).Int("page", page).Msg("encoding annotations failed")
		return fmt.Errorf("encoding page %d: %w", page, err)
	}
	size := overlay.Bounds().Size()
	if err := p.store.Put(ctx, Key(page), page, buf.Bytes(), size.X, size.Y); err != nil {
		p.log.Warn().Err(err).Int("page", page).Msg("saving annotations failed")
		return err
	}
	p.log.Debug().Int("page", page).Int("bytes", buf.Len()).Msg("annotations saved")
	return nil
}

// Restore returns page's saved layer stretched to width x height. The
// boolean is false when nothing is stored for the page.
func (p *Persistence) Restore(ctx context.Context, page, width, height int) (*image.RGBA, bool, error) {
	data, err := p.store.Get(ctx, Key(page))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decoding page %d annotations: %w", page, err)
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	stretchOnto(out, src)
	return out, true, nil
}

// Load clears overlay and draws page's saved layer onto it, stretched to
// the overlay's current size.
func (p *Persistence) Load(ctx context.Context, page int, overlay *image.RGBA) error {
	clearAll(overlay)
	size := overlay.Bounds().Size()
	layer, ok, err := p.Restore(ctx, page, size.X, size.Y)
	if err != nil {
		p.log.Warn().Err(err).Int("page", page).Msg("loading annotations failed")
		return err
	}
	if ok {
		stretchOnto(overlay, layer)
	}
	return nil
}

// Clear wipes overlay and removes page's stored layer.
func (p *Persistence) Clear(ctx context.Context, page int, overlay *image.RGBA) error {
	clearAll(overlay)
	if err := p.store.Delete(ctx, Key(page)); err != nil {
		p.log.Warn().Err(err).Int("page", page).Msg("clearing annotations failed")
		return fmt.Errorf("clearing page %d: %w", page, err)
	}
	return nil
}

// Export returns the raw PNG stored for page.
func (p *Persistence) Export(ctx context.Context, page int) ([]byte, error) {
	return p.store.Get(ctx, Key(page))
}

// DataURL encodes img as a PNG data URL for display.
func DataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
