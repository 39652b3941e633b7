package conditions

import (
	"fmt"
	"time"
)

// Weather codes (WMO) that mark active winter precipitation.
var winterWeatherCodes = map[int]bool{66: true, 67: true, 71: true, 73: true, 75: true, 77: true, 85: true, 86: true}

// Weather codes (WMO) that mark thunderstorms.
var severeStormCodes = map[int]bool{95: true, 96: true, 99: true}

var weatherDescriptions = map[int]string{
	0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Foggy", 48: "Depositing rime fog",
	51: "Light drizzle", 53: "Moderate drizzle", 55: "Dense drizzle",
	61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain",
	66: "Light freezing rain", 67: "Heavy freezing rain",
	71: "Slight snow", 73: "Moderate snow", 75: "Heavy snow", 77: "Snow grains",
	80: "Slight rain showers", 81: "Moderate rain showers", 82: "Violent rain showers",
	85: "Slight snow showers", 86: "Heavy snow showers",
	95: "Thunderstorm", 96: "Thunderstorm with slight hail", 99: "Thunderstorm with heavy hail",
}

// Reading is one point in time for a site, either the live observation or a forecast hour.
type Reading struct {
	Time                time.Time `json:"time"`
	Temperature         float64   `json:"temperature"`
	ApparentTemperature float64   `json:"apparent_temperature"`
	WindSpeed           float64   `json:"wind_speed"`
	WeatherCode         int       `json:"weather_code"`
	WeatherDescription  string    `json:"weather_description"`
	AQI                 *float64  `json:"aqi"`
	AQILabel            string    `json:"aqi_label,omitempty"`
	WinterWeather       bool      `json:"winter_weather"`
	SevereStorm         bool      `json:"severe_storm"`
}

// NewReading fills the derived fields from the raw values.
func NewReading(at time.Time, temp, apparent, wind float64, code int, aqi *float64) Reading {
	r := Reading{
		Time:                at,
		Temperature:         temp,
		ApparentTemperature: apparent,
		WindSpeed:           wind,
		WeatherCode:         code,
		WeatherDescription:  DescribeWeatherCode(code),
		AQI:                 aqi,
		WinterWeather:       winterWeatherCodes[code],
		SevereStorm:         severeStormCodes[code],
	}
	if aqi != nil {
		r.AQILabel = AQICategory(*aqi)
	}
	return r
}

// Advisory is an active third-party severe weather alert for the site's point.
type Advisory struct {
	ID          string     `json:"id"`
	Event       string     `json:"event"`
	Severity    string     `json:"severity"`
	Headline    string     `json:"headline"`
	Description string     `json:"description"`
	Instruction string     `json:"instruction"`
	SenderName  string     `json:"sender_name"`
	Onset       *time.Time `json:"onset,omitempty"`
	Expires     *time.Time `json:"expires,omitempty"`
}

// Snapshot is everything known about a site's weather at fetch time.
type Snapshot struct {
	Current    Reading        `json:"current"`
	Hourly     []Reading      `json:"hourly"`
	Advisories []Advisory     `json:"advisories"`
	Location   *time.Location `json:"-"`
	Timezone   string         `json:"timezone"`
	FetchedAt  time.Time      `json:"fetched_at"`
}

// Summary returns every third hour of the 24 hours following now.
func (s *Snapshot) Summary(now time.Time) []Reading {
	var upcoming []Reading
	for _, h := range s.Hourly {
		ahead := h.Time.Sub(now)
		if ahead > 0 && ahead <= 24*time.Hour {
			upcoming = append(upcoming, h)
		}
	}
	out := make([]Reading, 0, (len(upcoming)+2)/3)
	for i := 0; i < len(upcoming); i += 3 {
		out = append(out, upcoming[i])
	}
	return out
}

// LocalTime renders t in the site's timezone as "3:04 PM".
func (s *Snapshot) LocalTime(t time.Time) string {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("3:04 PM")
}

func DescribeWeatherCode(code int) string {
	if d, ok := weatherDescriptions[code]; ok {
		return d
	}
	return "Unknown"
}

// AQICategory maps a US AQI value to its EPA category name.
func AQICategory(aqi float64) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// FetchError reports that the primary forecast source could not be read.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s fetch failed: status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("%s fetch failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
