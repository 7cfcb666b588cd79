package weather

import "errors"

var (
	// ErrNoCitySelected is returned when a user has no stored city.
	ErrNoCitySelected = errors.New("no city selected")
	// ErrUpstreamUnavailable is returned once the provider retries are exhausted.
	ErrUpstreamUnavailable = errors.New("weather provider unavailable")
	// ErrQueryTooShort is returned for city queries shorter than MinQueryLength.
	ErrQueryTooShort = errors.New("city query too short")
	// ErrInvalidCityRef is returned when a CityRef has neither (or both) of id and name.
	ErrInvalidCityRef = errors.New("city reference must have exactly one of id or name")
	// ErrInvalidDays is returned for forecast lengths outside 1..MaxForecastDays.
	ErrInvalidDays = errors.New("invalid forecast days")
)

// MinQueryLength is the shortest city query the provider accepts.
const MinQueryLength = 2
