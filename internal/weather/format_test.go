package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func samplePayload() CurrentPayload {
	var p CurrentPayload
	p.Location.Name = "Berlin"
	p.Location.Country = "Germany"
	p.Current.TempC = 20
	p.Current.FeelsLikeC = 18.5
	p.Current.WindKph = 19.8
	p.Current.Humidity = 60
	p.Current.Condition.Text = "Sunny"
	return p
}

func TestFormatCurrentGolden(t *testing.T) {
	want := "🌤 Weather in <b>Berlin</b>:\n" +
		"• 🌡 Temperature: <b>20.0°C</b>\n" +
		"• 🤔 Feels like: <b>18.5°C</b>\n" +
		"• 💨 Wind: <b>5.5 m/s</b>\n" +
		"• 💧 Humidity: <b>60%</b>\n" +
		"• ☁️ Condition: <b>Sunny</b>"

	assert.Equal(t, want, FormatCurrent(samplePayload()))
}

func TestFormatForecastGolden(t *testing.T) {
	var p ForecastPayload
	p.Location.Name = "Paris"
	d1 := ForecastDay{Date: "2024-05-01"}
	d1.Day.MaxTempC = 21.3
	d1.Day.MinTempC = 12
	d1.Day.Condition.Text = "Partly cloudy"
	d2 := ForecastDay{Date: "2024-05-02"}
	d2.Day.MaxTempC = 18
	d2.Day.MinTempC = -1.5
	d2.Day.Condition.Text = "Light rain"
	p.Forecast.ForecastDay = []ForecastDay{d1, d2}

	want := "📅 2-day forecast for <b>Paris</b>:\n\n" +
		"<b>2024-05-01</b>:\n  • Condition: Partly cloudy\n  • Max: 21.3°C, Min: 12.0°C\n\n" +
		"<b>2024-05-02</b>:\n  • Condition: Light rain\n  • Max: 18.0°C, Min: -1.5°C\n\n"

	assert.Equal(t, want, FormatForecast(p))
}

func TestFormatForecastUnavailable(t *testing.T) {
	assert.Equal(t, "⚠️ Forecast unavailable.", FormatForecast(ForecastPayload{}))

	var p ForecastPayload
	p.Location.Name = "Paris"
	assert.Equal(t, "⚠️ Forecast unavailable.", FormatForecast(p))
}

func TestKphToMS(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		3.6:  1,
		19.8: 5.5,
		10:   2.8,
		0.9:  0.2,
		4.5:  1.2,
		8.1:  2.2,
		15.3: 4.2,
	}
	for in, want := range cases {
		assert.InDelta(t, want, KphToMS(in), 1e-9, "kph=%v", in)
	}
}
