package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Point is a position in overlay pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// kappa places cubic control points so that four curves approximate a circle.
const kappa = 0.5522847498

// drawSegment paints a round-capped line from a to b onto dst with
// source-over compositing. A zero-length segment paints a dot.
func drawSegment(dst *image.RGBA, a, b Point, width float64, c color.NRGBA) {
	b0 := dst.Bounds()
	if b0.Empty() || width <= 0 {
		return
	}
	r := width / 2
	k := r * kappa

	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	ux, uy := 1.0, 0.0
	if length > 0 {
		ux, uy = dx/length, dy/length
	}
	nx, ny := -uy, ux

	ras := vector.NewRasterizer(b0.Dx(), b0.Dy())
	ox, oy := float64(b0.Min.X), float64(b0.Min.Y)
	pt := func(x, y float64) (float32, float32) { return float32(x - ox), float32(y - oy) }

	ras.MoveTo(pt(a.X+nx*r, a.Y+ny*r))
	ras.LineTo(pt(b.X+nx*r, b.Y+ny*r))
	// Cap around b: +n -> +u -> -n.
	x1, y1 := pt(b.X+nx*r+ux*k, b.Y+ny*r+uy*k)
	x2, y2 := pt(b.X+ux*r+nx*k, b.Y+uy*r+ny*k)
	x3, y3 := pt(b.X+ux*r, b.Y+uy*r)
	ras.CubeTo(x1, y1, x2, y2, x3, y3)
	x1, y1 = pt(b.X+ux*r-nx*k, b.Y+uy*r-ny*k)
	x2, y2 = pt(b.X-nx*r+ux*k, b.Y-ny*r+uy*k)
	x3, y3 = pt(b.X-nx*r, b.Y-ny*r)
	ras.CubeTo(x1, y1, x2, y2, x3, y3)

	ras.LineTo(pt(a.X-nx*r, a.Y-ny*r))
	// Cap around a: -n -> -u -> +n.
	x1, y1 = pt(a.X-nx*r-ux*k, a.Y-ny*r-uy*k)
	x2, y2 = pt(a.X-ux*r-nx*k, a.Y-uy*r-ny*k)
	x3, y3 = pt(a.X-ux*r, a.Y-uy*r)
	ras.CubeTo(x1, y1, x2, y2, x3, y3)
	x1, y1 = pt(a.X-ux*r+nx*k, a.Y-uy*r+ny*k)
	x2, y2 = pt(a.X+nx*r-ux*k, a.Y+ny*r-uy*k)
	x3, y3 = pt(a.X+nx*r, a.Y+ny*r)
	ras.CubeTo(x1, y1, x2, y2, x3, y3)
	ras.ClosePath()

	ras.DrawOp = draw.Over
	ras.Draw(dst, b0, image.NewUniform(c), image.Point{})
}

// eraseSquare clears an axis-aligned square of the given side centred on p.
func eraseSquare(dst *image.RGBA, p Point, side float64) {
	half := side / 2
	r := image.Rect(
		int(math.Floor(p.X-half)), int(math.Floor(p.Y-half)),
		int(math.Ceil(p.X+half)), int(math.Ceil(p.Y+half)),
	).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.Transparent, image.Point{}, draw.Src)
}

// clearAll makes every pixel of dst transparent.
func clearAll(dst *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// stretchOnto draws src over the whole of dst, scaling when the sizes differ.
func stretchOnto(dst *image.RGBA, src image.Image) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
}

// cloneRGBA returns a deep copy of img.
func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}
