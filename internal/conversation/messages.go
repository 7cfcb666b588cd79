package conversation

import (
	"github.com/i474232898/weather-bot/internal/weather"
)

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// OutMessage is a transport-neutral outbound message. MainMenu asks the
// transport to attach the persistent main-menu keyboard.
type OutMessage struct {
	Text     string
	Buttons  [][]Button
	MainMenu bool
}

const (
	msgWelcome = "👋 Hi! I show the current weather and forecasts for any city.\n\n" +
		"Pick your city with <b>" + TextChangeCity + "</b>, then tap <b>" + TextWeather + "</b>.\n" +
		"You can also just send me a city name."

	msgHelp = "<b>How it works</b>\n" +
		"1. " + TextChangeCity + " and type a city name.\n" +
		"2. Choose the right city from the list.\n" +
		"3. " + TextWeather + " shows the current weather for your city.\n\n" +
		"<b>Other commands</b>\n" +
		"• " + TextShowCity + " shows the city you picked.\n" +
		"• " + TextPopularCities + " lists well-known cities with a 3-day forecast.\n" +
		"• Send any city name to get its weather right away."

	msgEnterCity      = "Enter a city name:"
	msgChooseCity     = "Choose your city:"
	msgCityNotFound   = "No cities found. Try another name."
	msgQueryTooShort  = "Please type at least 2 characters of the city name."
	msgUpstreamDown   = "😔 The weather service is unavailable right now. Please try again later."
	msgAborted        = "❌ City change cancelled"
	msgNoCity         = "City not selected. Use «" + TextChangeCity + "» first."
	msgSaveFailed     = "😔 Could not save your city. Please try again later."
	msgPopularHeader  = "Choose a city from the list:"
	msgImageFailed    = "Could not render the weather image."
	msgSavedSuffix    = " — saved ✍️"
	msgCitySaved      = "City saved!"
	msgYourCityPrefix = "Your city: "
)

const (
	cancelText       = "❌ Cancel"
	prevText         = "◀️ Back"
	nextText         = "Next ▶️"
	forecastText     = "3-day forecast"
	showImageText    = "🖼️ Show as image"
	popularPageSize  = 5
	popularForecastN = 3
)

// PopularCities is the fixed list behind the popular cities menu.
var PopularCities = []string{
	"London", "Paris", "Berlin", "Madrid", "Rome",
	"New York", "Los Angeles", "Toronto", "Tokyo", "Seoul",
	"Singapore", "Dubai", "Istanbul", "Sydney", "Moscow",
}

// MainMenuRows is the layout of the persistent reply keyboard.
func MainMenuRows() [][]string {
	return [][]string{
		{TextWeather},
		{TextShowCity, TextChangeCity},
		{TextPopularCities},
	}
}

func cancelKeyboard() [][]Button {
	return [][]Button{{{Text: cancelText, Data: cbCancel}}}
}

// candidatesKeyboard lists one city per row, then navigation, then cancel.
func candidatesKeyboard(res weather.CitySearchResult, page int) [][]Button {
	rows := make([][]Button, 0, len(res.Cities)+2)
	for _, c := range res.Cities {
		rows = append(rows, []Button{{Text: c.Label(), Data: selectCityData(c.ID)}})
	}

	var nav []Button
	if page > 1 {
		nav = append(nav, Button{Text: prevText, Data: pageData(page - 1)})
	}
	if res.HasNext {
		nav = append(nav, Button{Text: nextText, Data: pageData(page + 1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return append(rows, []Button{{Text: cancelText, Data: cbCancel}})
}

func popularKeyboard(page int) [][]Button {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * popularPageSize
	if start > len(PopularCities) {
		start = len(PopularCities)
	}
	end := start + popularPageSize
	if end > len(PopularCities) {
		end = len(PopularCities)
	}

	var rows [][]Button
	for _, city := range PopularCities[start:end] {
		rows = append(rows, []Button{
			{Text: city, Data: popularCityData(city)},
			{Text: forecastText, Data: forecastData(city)},
		})
	}

	var nav []Button
	if page > 1 {
		nav = append(nav, Button{Text: prevText, Data: popularPageData(page - 1)})
	}
	if end < len(PopularCities) {
		nav = append(nav, Button{Text: nextText, Data: popularPageData(page + 1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return rows
}

// imageKeyboard offers the image action for city, or for the user's own city
// when city is empty. A name too long for callback data gets no button.
func imageKeyboard(city string) [][]Button {
	data := imageData(city)
	if len(data) > maxCallbackData {
		return nil
	}
	return [][]Button{{{Text: showImageText, Data: data}}}
}

// resolvedName prefers the provider's canonical location name over what the
// user typed.
func resolvedName(res weather.WeatherResult, fallback string) string {
	if res.Raw != nil && res.Raw.Location.Name != "" {
		return res.Raw.Location.Name
	}
	return fallback
}

func savedText(name string) string {
	if name == "" {
		return msgCitySaved
	}
	return name + msgSavedSuffix
}

func yourCityText(loc weather.ProviderLocation) string {
	if loc.Country == "" {
		return msgYourCityPrefix + loc.Name
	}
	return msgYourCityPrefix + loc.Name + ", " + loc.Country
}
