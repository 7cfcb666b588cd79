package weather

import (
	"fmt"
	"strings"
)

// CityRef identifies a city for the upstream provider: either an opaque
// provider city id or a free-text name. Exactly one must be set.
type CityRef struct {
	ID   string
	Name string
}

// ByID references a city by its provider id.
func ByID(id string) CityRef { return CityRef{ID: id} }

// ByName references a city by free-text name.
func ByName(name string) CityRef { return CityRef{Name: name} }

// Query returns the provider "q" parameter for this reference.
func (r CityRef) Query() (string, error) {
	id := strings.TrimSpace(r.ID)
	name := strings.TrimSpace(r.Name)
	switch {
	case id != "" && name != "":
		return "", fmt.Errorf("%w: both id and name set", ErrInvalidCityRef)
	case id != "":
		return "id:" + id, nil
	case name != "":
		return name, nil
	default:
		return "", ErrInvalidCityRef
	}
}

// String is used in logs.
func (r CityRef) String() string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	return r.Name
}

// City is a single city search candidate.
type City struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Label is the button text for a candidate.
func (c City) Label() string {
	if c.Country == "" {
		return c.Name
	}
	return c.Name + ", " + c.Country
}

// CitySearchResult is one page of city candidates.
type CitySearchResult struct {
	Cities  []City `json:"cities"`
	HasNext bool   `json:"has_next"`
}

// ProviderLocation is the "location" block of a WeatherAPI payload.
type ProviderLocation struct {
	Name           string  `json:"name"`
	Region         string  `json:"region,omitempty"`
	Country        string  `json:"country"`
	Lat            float64 `json:"lat,omitempty"`
	Lon            float64 `json:"lon,omitempty"`
	LocaltimeEpoch int64   `json:"localtime_epoch,omitempty"`
	Localtime      string  `json:"localtime,omitempty"`
}

// ProviderCondition is the condition object shared by current and forecast blocks.
type ProviderCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
	Code int    `json:"code,omitempty"`
}

// CurrentConditions is the "current" block of a WeatherAPI payload.
type CurrentConditions struct {
	TempC      float64           `json:"temp_c"`
	FeelsLikeC float64           `json:"feelslike_c"`
	WindKph    float64           `json:"wind_kph"`
	Humidity   int               `json:"humidity"`
	PressureMb float64           `json:"pressure_mb,omitempty"`
	PrecipMm   float64           `json:"precip_mm,omitempty"`
	Condition  ProviderCondition `json:"condition"`
}

// CurrentPayload is the raw current.json response we care about.
type CurrentPayload struct {
	Location ProviderLocation  `json:"location"`
	Current  CurrentConditions `json:"current"`
}

// ForecastDay is one entry of forecast.forecastday.
type ForecastDay struct {
	Date string `json:"date"`
	Day  struct {
		MaxTempC  float64           `json:"maxtemp_c"`
		MinTempC  float64           `json:"mintemp_c"`
		Condition ProviderCondition `json:"condition"`
	} `json:"day"`
}

// ForecastPayload is the raw forecast.json response we care about.
type ForecastPayload struct {
	Location ProviderLocation  `json:"location"`
	Current  CurrentConditions `json:"current"`
	Forecast struct {
		ForecastDay []ForecastDay `json:"forecastday"`
	} `json:"forecast"`
}

// WeatherResult is the response shape for current weather lookups.
type WeatherResult struct {
	Success       bool            `json:"success"`
	FormattedText string          `json:"formatted_message,omitempty"`
	Raw           *CurrentPayload `json:"raw_data,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// ForecastResult is the response shape for forecast lookups.
type ForecastResult struct {
	Success       bool             `json:"success"`
	FormattedText string           `json:"formatted_message,omitempty"`
	Raw           *ForecastPayload `json:"raw_data,omitempty"`
	Error         string           `json:"error,omitempty"`
}
