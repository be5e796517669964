package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay colors: peach for known faces, violet for unknown ones.
var (
	KnownColor   = color.RGBA{R: 0xfa, G: 0xb4, B: 0x8b, A: 0xff}
	UnknownColor = color.RGBA{R: 0xa8, G: 0x8b, B: 0xf3, A: 0xff}
)

const (
	boxThickness = 2
	labelOffset  = 10
)

// Annotate returns a display frame with the detection drawn on top of raw.
// Without a box the raw frame is returned as is. The label is only drawn for
// roster identities.
func Annotate(raw *Frame, d Detection, quality int) (*Frame, error) {
	if raw == nil || raw.Image == nil || d.Box == nil {
		return raw, nil
	}

	bounds := raw.Image.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, raw.Image, bounds.Min, draw.Src)

	c := UnknownColor
	if d.IsKnown() {
		c = KnownColor
	}
	drawRect(canvas, d.Box.Rect().Add(bounds.Min), c, boxThickness)
	if d.IsKnown() {
		drawLabel(canvas, d.Identity, bounds.Min.X+d.Box.Left, bounds.Min.Y+d.Box.Top-labelOffset, c)
	}

	return FromImage(raw.Seq, raw.CapturedAt, canvas, quality)
}

// drawRect draws an unfilled rectangle clipped to the canvas.
func drawRect(dst *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}

// drawLabel writes text with its baseline at (x, y), clamped so it stays visible.
func drawLabel(dst *image.RGBA, text string, x, y int, c color.Color) {
	face := basicfont.Face7x13
	minY := dst.Bounds().Min.Y + face.Ascent
	if y < minY {
		y = minY
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
