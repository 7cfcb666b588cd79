// Package render draws the weather card sent by the "show as image" action.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/i474232898/weather-bot/internal/common"
	"github.com/i474232898/weather-bot/internal/weather"
)

const (
	Width  = 500
	Height = 300
)

var (
	topColor    = color.NRGBA{R: 0xe0, G: 0xc3, B: 0xfc, A: 0xff}
	middleColor = color.NRGBA{R: 0xf9, G: 0xe4, B: 0xff, A: 0xff}
	bottomColor = color.NRGBA{R: 0xff, G: 0xfb, B: 0xe9, A: 0xff}

	wetTop    = color.NRGBA{R: 0xa1, G: 0xc4, B: 0xfd, A: 0xff}
	wetMiddle = color.NRGBA{R: 0xc2, G: 0xe9, B: 0xfb, A: 0xff}
	wetBottom = color.NRGBA{R: 0xe6, G: 0xee, B: 0xf5, A: 0xff}

	highlight = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	shadow    = color.NRGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
)

// CardRenderer renders a 500x300 PNG card with city, temperature,
// condition and local date over a vertical gradient. Wet conditions get a
// cooler palette.
type CardRenderer struct{}

func NewCardRenderer() CardRenderer { return CardRenderer{} }

type textLine struct {
	text   string
	x, y   int
	scale  int
	fill   color.NRGBA
	offset int
}

func (CardRenderer) Render(p weather.CurrentPayload) ([]byte, error) {
	if p.Location.Name == "" {
		return nil, fmt.Errorf("render: payload has no location")
	}

	palette := [3]color.NRGBA{topColor, middleColor, bottomColor}
	if common.HasAny(p.Current.Condition.Text, "rain", "drizzle", "shower", "snow", "sleet", "thunder") {
		palette = [3]color.NRGBA{wetTop, wetMiddle, wetBottom}
	}
	card := gradient(Width, Height, palette)

	date := p.Location.Localtime
	if i := strings.IndexByte(date, ' '); i > 0 {
		date = date[:i]
	}

	lines := []textLine{
		{text: p.Location.Name, x: 30, y: 28, scale: 3, fill: color.NRGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}, offset: 2},
		{text: fmt.Sprintf("%.1f°C", p.Current.TempC), x: 30, y: 80, scale: 5, fill: color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}, offset: 2},
		{text: p.Current.Condition.Text, x: 30, y: 170, scale: 2, fill: color.NRGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}, offset: 1},
	}
	if date != "" {
		lines = append(lines, textLine{text: date, x: Width - 150, y: Height - 40, scale: 2, fill: color.NRGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}, offset: 1})
	}

	for _, l := range lines {
		card = drawEmbossed(card, l)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, card, imaging.PNG); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// gradient fills top->middle over the first half and middle->bottom over
// the second half.
func gradient(w, h int, pal [3]color.NRGBA) *image.NRGBA {
	top, middle, bottom := pal[0], pal[1], pal[2]
	img := imaging.New(w, h, bottom)
	half := h / 2
	for y := 0; y < h; y++ {
		var c color.NRGBA
		if y < half {
			c = mix(top, middle, float64(y)/float64(half))
		} else {
			c = mix(middle, bottom, float64(y-half)/float64(h-half))
		}
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func mix(a, b color.NRGBA, r float64) color.NRGBA {
	lerp := func(x, y uint8) uint8 { return uint8(float64(x)*(1-r) + float64(y)*r) }
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}

// drawEmbossed draws highlight, shadow and fill passes of one line.
func drawEmbossed(dst *image.NRGBA, l textLine) *image.NRGBA {
	dst = drawText(dst, l.text, l.x-l.offset, l.y-l.offset, l.scale, highlight)
	dst = drawText(dst, l.text, l.x+l.offset, l.y+l.offset, l.scale, shadow)
	return drawText(dst, l.text, l.x, l.y, l.scale, l.fill)
}

// drawText renders s with the 7x13 bitmap face on a transparent canvas,
// scales it up with nearest-neighbour and overlays it at (x, y).
func drawText(dst *image.NRGBA, s string, x, y, scale int, c color.NRGBA) *image.NRGBA {
	s = printable(s)
	if s == "" {
		return dst
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	h := face.Metrics().Height.Ceil()

	canvas := imaging.New(w, h, color.NRGBA{})
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)

	if scale > 1 {
		canvas = imaging.Resize(canvas, w*scale, h*scale, imaging.NearestNeighbor)
	}
	return imaging.Overlay(dst, canvas, image.Pt(x, y), 1.0)
}

// printable replaces runes the bitmap face cannot draw.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 0x20 && r <= 0x7e) || (r >= 0xa1 && r <= 0xff) {
			return r
		}
		return '?'
	}, s)
}
