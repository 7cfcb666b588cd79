package render

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-bot/internal/weather"
)

func TestRenderProducesPNG(t *testing.T) {
	var p weather.CurrentPayload
	p.Location.Name = "Berlin"
	p.Location.Localtime = "2024-05-01 14:00"
	p.Current.TempC = 21.5
	p.Current.Condition.Text = "Partly cloudy"

	out, err := NewCardRenderer().Render(p)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())

	// untouched corner keeps the gradient's top colour
	r, g, b, _ := img.At(Width-1, 0).RGBA()
	assert.Equal(t, topColor, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff})
}

func TestRenderWetPalette(t *testing.T) {
	var p weather.CurrentPayload
	p.Location.Name = "London"
	p.Current.Condition.Text = "Patchy light rain"

	out, err := NewCardRenderer().Render(p)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	r, g, b, _ := img.At(Width-1, 0).RGBA()
	assert.Equal(t, wetTop, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff})
}

func TestRenderRejectsEmptyPayload(t *testing.T) {
	_, err := NewCardRenderer().Render(weather.CurrentPayload{})
	assert.Error(t, err)
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "21.5°C", printable("21.5°C"))
	assert.Equal(t, "??????", printable("Москва"))
	assert.Equal(t, "Sunny ?", printable("Sunny ☀"))
}
