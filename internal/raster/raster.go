// Package raster flattens canvas strokes into images.
//
// Strokes are composited in draw order onto a transparent surface. Pen
// strokes paint source-over in their color. Eraser strokes are composited
// destination-out: they remove coverage from everything drawn before them,
// so erasing reveals the background instead of painting over it.
package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"strconv"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
)

const (
	DefaultScale = 1.0
	MaxScale     = 4.0
)

// Options controls the output of Render.
type Options struct {
	// Width and Height are the on-screen canvas size in CSS pixels.
	Width  int
	Height int
	// Scale multiplies output pixel density. Values <= 0 mean DefaultScale.
	Scale float64
	// Background is painted beneath the strokes after compositing.
	// Nil leaves the image transparent.
	Background color.Color
}

func (o Options) normalized() Options {
	if o.Width <= 0 {
		o.Width = canvas.DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = canvas.DefaultHeight
	}
	if o.Scale <= 0 || math.IsNaN(o.Scale) {
		o.Scale = DefaultScale
	}
	if o.Scale > MaxScale {
		o.Scale = MaxScale
	}
	return o
}

// PixelSize returns the output dimensions for the options.
func (o Options) PixelSize() (int, int) {
	o = o.normalized()
	return int(math.Ceil(float64(o.Width) * o.Scale)), int(math.Ceil(float64(o.Height) * o.Scale))
}

// Render composites strokes into a new image.
func Render(strokes []canvas.Stroke, opts Options) (*image.RGBA, error) {
	opts = opts.normalized()
	w, h := opts.PixelSize()
	bounds := image.Rect(0, 0, w, h)
	dst := image.NewRGBA(bounds)

	for i, st := range strokes {
		if len(st.Points) == 0 {
			continue
		}
		r := strokeBounds(st, opts.Scale).Intersect(bounds)
		if r.Empty() {
			continue
		}
		coverage, err := strokeCoverage(st, opts.Scale, r)
		if err != nil {
			return nil, fmt.Errorf("failed to rasterize stroke %d: %w", i, err)
		}

		if st.Erases() {
			destinationOut(dst, coverage)
			continue
		}
		col, err := ParseHexColor(st.Color)
		if err != nil {
			col = color.NRGBA{A: 0xff}
		}
		draw.DrawMask(dst, r, image.NewUniform(col), image.Point{}, coverage, r.Min, draw.Over)
	}

	if opts.Background != nil {
		flat := image.NewRGBA(bounds)
		draw.Draw(flat, bounds, image.NewUniform(opts.Background), image.Point{}, draw.Src)
		draw.Draw(flat, bounds, dst, image.Point{}, draw.Over)
		return flat, nil
	}
	return dst, nil
}

// strokeBounds returns the device-pixel rectangle a stroke can touch: the
// box around its scaled points grown by half the line width plus two pixels of
// anti-aliasing. Midpoint curves stay inside the hull of their points.
func strokeBounds(st canvas.Stroke, scale float64) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range st.Points {
		minX, maxX = math.Min(minX, p.X*scale), math.Max(maxX, p.X*scale)
		minY, maxY = math.Min(minY, p.Y*scale), math.Max(maxY, p.Y*scale)
	}
	pad := float64(st.Size)*scale/2 + 2
	return image.Rect(
		int(math.Floor(minX-pad)), int(math.Floor(minY-pad)),
		int(math.Ceil(maxX+pad)), int(math.Ceil(maxY+pad)),
	)
}

// strokeCoverage rasterizes st into an alpha mask covering r only.
func strokeCoverage(st canvas.Stroke, scale float64, r image.Rectangle) (*image.Alpha, error) {
	dc := gg.NewContext(r.Dx(), r.Dy())
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Warn("Unable to release raster context", "err", err)
		}
	}()

	if err := traceStroke(dc, st, scale, r.Min); err != nil {
		return nil, err
	}
	coverage := image.NewAlpha(r)
	draw.Draw(coverage, r, dc.Image(), image.Point{}, draw.Src)
	return coverage, nil
}

// traceStroke draws the stroke's coverage in opaque white on dc. The
// context's top-left corner is device pixel origin.
func traceStroke(dc *gg.Context, st canvas.Stroke, scale float64, origin image.Point) error {
	width := float64(st.Size) * scale
	dc.SetColor(color.White)

	pts := make([]canvas.Point, len(st.Points))
	for i, p := range st.Points {
		pts[i] = canvas.Point{X: p.X*scale - float64(origin.X), Y: p.Y*scale - float64(origin.Y)}
	}

	// A tap, even one repeated at the same position, leaves a dot. A
	// zero-length path gets no caps when stroked.
	if isDot(pts) {
		dc.DrawCircle(pts[0].X, pts[0].Y, width/2)
		return dc.Fill()
	}

	dc.SetLineWidth(width)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	smoothPath(dc, pts)
	return dc.Stroke()
}

func isDot(pts []canvas.Point) bool {
	for _, p := range pts[1:] {
		if p != pts[0] {
			return false
		}
	}
	return true
}

// destinationOut scales every premultiplied channel of dst by the inverse
// coverage, i.e. D' = D * (1 - Sa), within the coverage bounds.
func destinationOut(dst *image.RGBA, coverage *image.Alpha) {
	b := coverage.Bounds().Intersect(dst.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := uint32(coverage.AlphaAt(x, y).A)
			if a == 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			keep := 255 - a
			for c := 0; c < 4; c++ {
				dst.Pix[i+c] = uint8((uint32(dst.Pix[i+c])*keep + 127) / 255)
			}
		}
	}
}

// ParseHexColor parses #rgb or #rrggbb into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	normalized, err := canvas.NormalizeColor(s)
	if err != nil {
		return color.NRGBA{}, err
	}
	v, err := strconv.ParseUint(normalized[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", canvas.ErrInvalidColor, s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportPNG renders strokes and returns the PNG bytes.
func ExportPNG(strokes []canvas.Stroke, opts Options) ([]byte, error) {
	img, err := Render(strokes, opts)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// DataURL embeds PNG bytes in a data: URL.
func DataURL(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}

// Fit downscales img so neither side exceeds maxSide. A maxSide of zero or
// an image that already fits returns img unchanged.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	ratio := float64(maxSide) / float64(max(b.Dx(), b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*ratio)))
	h := max(1, int(math.Round(float64(b.Dy())*ratio)))
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Over, nil)
	return out
}
