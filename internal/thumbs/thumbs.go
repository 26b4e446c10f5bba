// Package thumbs renders the thumbnail strip from the full page images.
package thumbs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
	"github.com/masskarem1/PHYS.101-Ebook/internal/progress"
)

// DefaultWidth is used when no thumbnail width is configured.
const DefaultWidth = 160

// ErrUnsupportedExt is returned for image extensions thumbnails cannot be
// written in.
var ErrUnsupportedExt = errors.New("thumbs: unsupported thumbnail extension")

// Report counts what a Generate run did.
type Report struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// Generator reads page images from src and writes thumbnails under outDir.
type Generator struct {
	src    fs.FS
	assets pages.Assets
	outDir string
	width  int
	// Force rewrites thumbnails that already exist.
	Force bool
	log   zerolog.Logger
}

// New creates a Generator. A width of 0 selects DefaultWidth.
func New(src fs.FS, assets pages.Assets, outDir string, width int, log zerolog.Logger) *Generator {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Generator{src: src, assets: assets, outDir: outDir, width: width, log: log}
}

// Pages lists the book pages that have an image in src, in order. Files
// matching the image prefix that do not name a page of the book are ignored.
func (g *Generator) Pages() ([]int, error) {
	pattern := g.assets.ImagePath + "*" + g.assets.Ext
	matches, err := doublestar.Glob(g.src, pattern)
	if err != nil {
		return nil, fmt.Errorf("thumbs: glob %s: %w", pattern, err)
	}
	var out []int
	for _, m := range matches {
		num := strings.TrimSuffix(strings.TrimPrefix(m, g.assets.ImagePath), g.assets.Ext)
		page, err := strconv.Atoi(num)
		if err != nil || !g.assets.Valid(page) {
			continue
		}
		out = append(out, page)
	}
	sort.Ints(out)
	return out, nil
}

// Generate writes a thumbnail for every page image found. Existing
// thumbnails are kept unless Force is set.
func (g *Generator) Generate(ctx context.Context, rep progress.Reporter) (Report, error) {
	var report Report
	encode, err := encoderFor(g.assets.Ext)
	if err != nil {
		return report, err
	}
	list, err := g.Pages()
	if err != nil {
		return report, err
	}

	rep.Start(len(list))
	defer rep.Finish()

	for i, page := range list {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dst := filepath.Join(g.outDir, filepath.FromSlash(g.assets.ThumbRef(page)))
		if !g.Force {
			if _, err := os.Stat(dst); err == nil {
				report.Skipped++
				rep.Update(i+1, fmt.Sprintf("page %d (exists)", page))
				continue
			}
		}
		if err := g.one(page, dst, encode); err != nil {
			return report, err
		}
		report.Written++
		rep.Update(i+1, fmt.Sprintf("page %d", page))
	}

	g.log.Info().Int("written", report.Written).Int("skipped", report.Skipped).Msg("thumbnails generated")
	return report, nil
}

func (g *Generator) one(page int, dst string, encode func(*bytes.Buffer, image.Image) error) error {
	f, err := g.src.Open(g.assets.ImageRef(page))
	if err != nil {
		return fmt.Errorf("thumbs: page %d: %w", page, err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("thumbs: decode page %d: %w", page, err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, Scale(img, g.width)); err != nil {
		return fmt.Errorf("thumbs: encode page %d: %w", page, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("thumbs: %w", err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("thumbs: write %s: %w", dst, err)
	}
	return nil
}

// Scale resizes img to width, keeping its aspect ratio. Images already
// narrower than width keep their size.
func Scale(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > width {
		h = max(1, (h*width+w/2)/w)
		w = width
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}

func encoderFor(ext string) (func(*bytes.Buffer, image.Image) error, error) {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return func(b *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(b, img, &jpeg.Options{Quality: 80})
		}, nil
	case ".png":
		return func(b *bytes.Buffer, img image.Image) error {
			return png.Encode(b, img)
		}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedExt, ext)
}
