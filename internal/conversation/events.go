package conversation

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind tags an inbound Event.
type Kind int

const (
	KindUnknown Kind = iota

	// main-menu commands
	KindStart
	KindHelp
	KindWeather
	KindShowCity
	KindChangeCity
	KindPopularCities

	KindText
	KindCancel
	KindSelectCity
	KindPage
	KindPopularCity
	KindPopularForecast
	KindPopularPage
	KindShowImage
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindStart:           "start",
	KindHelp:            "help",
	KindWeather:         "weather",
	KindShowCity:        "show_city",
	KindChangeCity:      "change_city",
	KindPopularCities:   "popular_cities",
	KindText:            "text",
	KindCancel:          "cancel",
	KindSelectCity:      "select_city",
	KindPage:            "page",
	KindPopularCity:     "popular_city",
	KindPopularForecast: "popular_forecast",
	KindPopularPage:     "popular_page",
	KindShowImage:       "show_image",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsMainMenu reports whether k is a main-menu command. Main-menu commands
// interrupt the city selection flow.
func (k Kind) IsMainMenu() bool {
	return k >= KindStart && k <= KindPopularCities
}

// MessageRef points at a message previously sent to a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Event is a decoded inbound user action. Only the fields relevant to Kind
// are set.
type Event struct {
	ID     uuid.UUID
	UserID int64
	ChatID int64
	Kind   Kind
	At     time.Time

	Text   string // KindText
	CityID string // KindSelectCity
	Page   int    // KindPage, KindPopularPage
	City   string // KindPopularCity, KindPopularForecast, KindShowImage (empty = user's city)

	// callbacks only
	CallbackID string
	Source     *MessageRef
}

// IsCallback reports whether the event came from an inline button.
func (e Event) IsCallback() bool { return e.CallbackID != "" }

// Main-menu button texts.
const (
	TextWeather       = "🌤 Weather"
	TextShowCity      = "📍 My city"
	TextChangeCity    = "✏️ Change city"
	TextPopularCities = "⭐ Popular cities"
)

var menuCommands = map[string]Kind{
	"/start":          KindStart,
	"/help":           KindHelp,
	"/weather":        KindWeather,
	"/city":           KindShowCity,
	"/setcity":        KindChangeCity,
	"/popular":        KindPopularCities,
	TextWeather:       KindWeather,
	TextShowCity:      KindShowCity,
	TextChangeCity:    KindChangeCity,
	TextPopularCities: KindPopularCities,
}

// Callback data prefixes.
const (
	cbCity        = "city:"
	cbPage        = "page:"
	cbCancel      = "cancel"
	cbPopular     = "popular:"
	cbForecast    = "forecast:"
	cbPopularPage = "popularpage:"
	cbImage       = "image"
)

func newEvent(userID, chatID int64, kind Kind) Event {
	return Event{
		ID:     uuid.New(),
		UserID: userID,
		ChatID: chatID,
		Kind:   kind,
		At:     time.Now(),
	}
}

// DecodeText classifies a plain text message. Menu commands win over free
// text; a bot command addressed as "/start@botname" is treated as "/start".
func DecodeText(userID, chatID int64, text string) Event {
	trimmed := strings.TrimSpace(text)

	cmd := trimmed
	if strings.HasPrefix(cmd, "/") {
		if i := strings.IndexAny(cmd, "@ "); i > 0 {
			cmd = cmd[:i]
		}
	}
	if kind, ok := menuCommands[cmd]; ok {
		return newEvent(userID, chatID, kind)
	}
	if trimmed == "" {
		return newEvent(userID, chatID, KindUnknown)
	}

	ev := newEvent(userID, chatID, KindText)
	ev.Text = trimmed
	return ev
}

// DecodeCallback parses inline button data. Malformed data decodes to
// KindUnknown so it is acknowledged and ignored.
func DecodeCallback(userID, chatID int64, callbackID, data string, source *MessageRef) Event {
	ev := newEvent(userID, chatID, KindUnknown)
	ev.CallbackID = callbackID
	ev.Source = source

	switch {
	case data == cbCancel:
		ev.Kind = KindCancel
	case strings.HasPrefix(data, cbCity):
		if id := strings.TrimPrefix(data, cbCity); id != "" {
			ev.Kind = KindSelectCity
			ev.CityID = id
		}
	case strings.HasPrefix(data, cbPage):
		if n, err := strconv.Atoi(strings.TrimPrefix(data, cbPage)); err == nil && n >= 1 {
			ev.Kind = KindPage
			ev.Page = n
		}
	case strings.HasPrefix(data, cbPopularPage):
		if n, err := strconv.Atoi(strings.TrimPrefix(data, cbPopularPage)); err == nil && n >= 1 {
			ev.Kind = KindPopularPage
			ev.Page = n
		}
	case strings.HasPrefix(data, cbPopular):
		if city := strings.TrimSpace(strings.TrimPrefix(data, cbPopular)); city != "" {
			ev.Kind = KindPopularCity
			ev.City = city
		}
	case strings.HasPrefix(data, cbForecast):
		if city := strings.TrimSpace(strings.TrimPrefix(data, cbForecast)); city != "" {
			ev.Kind = KindPopularForecast
			ev.City = city
		}
	case data == cbImage:
		ev.Kind = KindShowImage
	case strings.HasPrefix(data, cbImage+":"):
		ev.Kind = KindShowImage
		ev.City = strings.TrimSpace(strings.TrimPrefix(data, cbImage+":"))
	}
	return ev
}

func selectCityData(id string) string    { return cbCity + id }
func pageData(n int) string              { return cbPage + strconv.Itoa(n) }
func popularCityData(city string) string { return cbPopular + city }
func forecastData(city string) string    { return cbForecast + city }
func popularPageData(n int) string       { return cbPopularPage + strconv.Itoa(n) }

// maxCallbackData is Telegram's limit on inline button data, in bytes.
const maxCallbackData = 64

func imageData(city string) string {
	if city == "" {
		return cbImage
	}
	return cbImage + ":" + city
}
