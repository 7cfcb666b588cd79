package weather

import (
	"fmt"
	"strconv"
	"strings"
)

// KphToMS converts km/h to m/s rounded to one decimal. Rounding works on the
// exact binary value, so 4.5 km/h (1.2499... m/s) gives 1.2, not 1.3.
func KphToMS(kph float64) float64 {
	ms, _ := strconv.ParseFloat(strconv.FormatFloat(kph/3.6, 'f', 1, 64), 64)
	return ms
}

// FormatCurrent renders the current-weather message text.
func FormatCurrent(p CurrentPayload) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🌤 Weather in <b>%s</b>:\n", p.Location.Name))
	sb.WriteString(fmt.Sprintf("• 🌡 Temperature: <b>%s°C</b>\n", formatNumber(p.Current.TempC)))
	sb.WriteString(fmt.Sprintf("• 🤔 Feels like: <b>%s°C</b>\n", formatNumber(p.Current.FeelsLikeC)))
	sb.WriteString(fmt.Sprintf("• 💨 Wind: <b>%s m/s</b>\n", formatNumber(KphToMS(p.Current.WindKph))))
	sb.WriteString(fmt.Sprintf("• 💧 Humidity: <b>%d%%</b>\n", p.Current.Humidity))
	sb.WriteString(fmt.Sprintf("• ☁️ Condition: <b>%s</b>", p.Current.Condition.Text))
	return sb.String()
}

// FormatForecast renders one block per forecast day.
func FormatForecast(p ForecastPayload) string {
	days := p.Forecast.ForecastDay
	if p.Location.Name == "" || len(days) == 0 {
		return "⚠️ Forecast unavailable."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 %d-day forecast for <b>%s</b>:\n\n", len(days), p.Location.Name))
	for _, d := range days {
		sb.WriteString(fmt.Sprintf("<b>%s</b>:\n", d.Date))
		sb.WriteString(fmt.Sprintf("  • Condition: %s\n", d.Day.Condition.Text))
		sb.WriteString(fmt.Sprintf("  • Max: %s°C, Min: %s°C\n\n", formatNumber(d.Day.MaxTempC), formatNumber(d.Day.MinTempC)))
	}
	return sb.String()
}

// formatNumber prints floats the way the provider payloads read: always with
// a fractional part ("20.0", "5.5", "-3.25").
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
