// File: internal/render/render.go

// Package render rasterizes positioned elements into an image. Each item's
// transformed quad is filled at supersampled resolution with an edge-function
// scan, stacked in z-index order, then downsampled with premultiplied alpha
// and encoded as WebP. It exists to make transform output visible without a
// browser.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sort"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"github.com/xkilldash9x/repose/internal/transform"
)

// ErrBadCanvas is returned for non-positive canvas dimensions.
var ErrBadCanvas = errors.New("render: canvas dimensions must be positive")

// DefaultSupersample is the oversampling factor when Options leaves it zero.
const DefaultSupersample = 4

// Item is one quad to draw: the element's transformed corners in parent
// coordinates plus its paint. Corners follow the transform output order,
// around the perimeter from the top-left. Items stack by ZIndex, ties keep
// insert order.
type Item struct {
	Corners [4]transform.Point
	Fill    color.NRGBA
	ZIndex  float64
}

// ItemFrom builds an Item from derived transform data.
func ItemFrom(td transform.Data, fill color.NRGBA, zIndex float64) Item {
	return Item{Corners: td.Corners, Fill: fill, ZIndex: zIndex}
}

// Options frames the canvas. Width and Height are the parent box in pixels;
// corners map onto the canvas one to one.
type Options struct {
	Width       int
	Height      int
	Supersample int
	// Background fills the canvas first; the zero value is transparent.
	Background color.NRGBA
}

// Frame paints the items onto a fresh canvas, bottom z first.
func Frame(items []Item, opts Options) (*image.NRGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadCanvas, opts.Width, opts.Height)
	}
	ss := opts.Supersample
	if ss <= 0 {
		ss = DefaultSupersample
	}

	w := opts.Width * ss
	h := opts.Height * ss
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if opts.Background.A > 0 {
		fillBackground(img, opts.Background)
	}

	// Painter's algorithm: ascending z-index, stable for ties.
	ordered := make([]Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZIndex < ordered[j].ZIndex })

	scale := float64(ss)
	for _, item := range ordered {
		var q [4]transform.Point
		for i, c := range item.Corners {
			q[i] = transform.Point{X: c.X * scale, Y: c.Y * scale}
		}
		fillQuad(img, q, item.Fill)
	}

	if ss == 1 {
		return img, nil
	}
	return Downsample(img, opts.Width, opts.Height), nil
}

func fillBackground(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Pix[i] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
			i += 4
		}
	}
}

// fillQuad scans the quad's bounding box and writes every pixel whose
// center lies inside all four edges. A matrix-transformed rectangle is
// always convex, so one pass over four edge functions is exact; splitting
// into triangles instead would double-blend pixel centers that land on the
// shared diagonal. Winding does not matter, both orientations are accepted.
func fillQuad(img *image.NRGBA, q [4]transform.Point, c color.NRGBA) {
	if math.Abs(shoelace(q)) < 1e-9 {
		return
	}

	loX, hiX := q[0].X, q[0].X
	loY, hiY := q[0].Y, q[0].Y
	for _, p := range q[1:] {
		loX, hiX = math.Min(loX, p.X), math.Max(hiX, p.X)
		loY, hiY = math.Min(loY, p.Y), math.Max(hiY, p.Y)
	}

	b := img.Bounds()
	minX := clampInt(int(math.Floor(loX)), b.Min.X, b.Max.X)
	maxX := clampInt(int(math.Ceil(hiX))+1, b.Min.X, b.Max.X)
	minY := clampInt(int(math.Floor(loY)), b.Min.Y, b.Max.Y)
	maxY := clampInt(int(math.Ceil(hiY))+1, b.Min.Y, b.Max.Y)

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			p := transform.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			w0 := edge(q[0], q[1], p)
			w1 := edge(q[1], q[2], p)
			w2 := edge(q[2], q[3], p)
			w3 := edge(q[3], q[0], p)
			inside := (w0 >= 0 && w1 >= 0 && w2 >= 0 && w3 >= 0) ||
				(w0 <= 0 && w1 <= 0 && w2 <= 0 && w3 <= 0)
			if !inside {
				continue
			}
			blendPixel(img, x, y, c)
		}
	}
}

// shoelace is twice the signed area of the quad.
func shoelace(q [4]transform.Point) float64 {
	var sum float64
	for i := range q {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return sum
}

// edge is the signed parallelogram area of (b-a, p-a).
func edge(a, b, p transform.Point) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// blendPixel does straight-alpha source-over compositing.
func blendPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if c.A == 0 {
		return
	}
	i := img.PixOffset(x, y)
	if c.A == 0xff {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = 0xff
		return
	}

	sa := float64(c.A) / 255.0
	da := float64(img.Pix[i+3]) / 255.0
	outA := sa + da*(1-sa)
	if outA <= 0 {
		return
	}
	blend := func(s, d uint8) uint8 {
		v := (float64(s)*sa + float64(d)*da*(1-sa)) / outA
		return clamp8(v)
	}
	img.Pix[i] = blend(c.R, img.Pix[i])
	img.Pix[i+1] = blend(c.G, img.Pix[i+1])
	img.Pix[i+2] = blend(c.B, img.Pix[i+2])
	img.Pix[i+3] = clamp8(outA * 255.0)
}

// Downsample reduces the image with premultiplied-alpha CatmullRom
// filtering. Scaling straight alpha directly would drag transparent black
// into the edges and leave dark halos.
func Downsample(img *image.NRGBA, targetW, targetH int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == targetW && b.Dy() == targetH {
		return img
	}

	premul := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := img.PixOffset(x, y)
			di := premul.PixOffset(x, y)
			a := float64(img.Pix[si+3]) / 255.0
			premul.Pix[di] = uint8(float64(img.Pix[si])*a + 0.5)
			premul.Pix[di+1] = uint8(float64(img.Pix[si+1])*a + 0.5)
			premul.Pix[di+2] = uint8(float64(img.Pix[si+2])*a + 0.5)
			premul.Pix[di+3] = img.Pix[si+3]
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), premul, premul.Bounds(), draw.Src, nil)

	result := image.NewNRGBA(dst.Bounds())
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			si := dst.PixOffset(x, y)
			di := result.PixOffset(x, y)
			a := float64(dst.Pix[si+3])
			if a > 1 {
				inv := 255.0 / a
				result.Pix[di] = clamp8(float64(dst.Pix[si]) * inv)
				result.Pix[di+1] = clamp8(float64(dst.Pix[si+1]) * inv)
				result.Pix[di+2] = clamp8(float64(dst.Pix[si+2]) * inv)
			}
			result.Pix[di+3] = dst.Pix[si+3]
		}
	}
	return result
}

// WriteWebP encodes the frame losslessly.
func WriteWebP(w io.Writer, img *image.NRGBA) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
