package hazard

import (
	"strings"
	"time"
)

// Type identifies a hazard. Forecast variants carry a window prefix and
// map back to their live type through Base.
type Type string

const (
	HeatIndex        Type = "heat_index"
	ColdTemp         Type = "cold_temp"
	WindSpeed        Type = "wind_speed"
	AQI              Type = "aqi"
	WinterWeather    Type = "winter_weather"
	SevereStorm      Type = "severe_storm"
	ExternalAdvisory Type = "external_advisory"

	ForecastHeat   Type = "forecast_heat"
	ForecastCold   Type = "forecast_cold"
	ForecastWind   Type = "forecast_wind"
	ForecastAQI    Type = "forecast_aqi"
	ForecastWinter Type = "forecast_winter"
	ForecastStorm  Type = "forecast_storm"

	Forecast48Heat   Type = "48hr_heat"
	Forecast48Cold   Type = "48hr_cold"
	Forecast48Wind   Type = "48hr_wind"
	Forecast48AQI    Type = "48hr_aqi"
	Forecast48Winter Type = "48hr_winter"
	Forecast48Storm  Type = "48hr_storm"
)

const (
	nearPrefix = "forecast_"
	farPrefix  = "48hr_"
)

var forecastBase = map[string]Type{
	"heat":   HeatIndex,
	"cold":   ColdTemp,
	"wind":   WindSpeed,
	"aqi":    AQI,
	"winter": WinterWeather,
	"storm":  SevereStorm,
}

// Base strips the forecast window prefix. Live types return themselves.
func (t Type) Base() Type {
	s := string(t)
	for _, prefix := range []string{nearPrefix, farPrefix} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			if base, ok := forecastBase[rest]; ok {
				return base
			}
		}
	}
	return t
}

func (t Type) IsForecast() bool {
	return t.Base() != t
}

// Severity is the urgency tier: advisory < watch < warning.
type Severity string

const (
	SeverityAdvisory Severity = "advisory"
	SeverityWatch    Severity = "watch"
	SeverityWarning  Severity = "warning"
)

// Rank orders severities for display, most urgent first.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityWatch:
		return 2
	default:
		return 3
	}
}

func (s Severity) Label() string {
	return strings.ToUpper(string(s))
}

func (s Severity) Color() string {
	switch s {
	case SeverityWarning:
		return "#ef4444"
	case SeverityWatch:
		return "#f97316"
	default:
		return "#eab308"
	}
}

// AdvisoryDetail carries the upstream advisory text through to rendering.
type AdvisoryDetail struct {
	Event           string     `json:"event"`
	Instruction     string     `json:"instruction,omitempty"`
	Onset           *time.Time `json:"onset,omitempty"`
	Expires         *time.Time `json:"expires,omitempty"`
	Source          string     `json:"source,omitempty"`
	FullDescription string     `json:"full_description,omitempty"`
}

// Candidate is a detected hazard that has not yet been gated or dispatched.
type Candidate struct {
	Type        Type            `json:"type"`
	Severity    Severity        `json:"severity"`
	Label       string          `json:"label"`
	Threshold   float64         `json:"threshold"`
	Actual      float64         `json:"actual"`
	Unit        string          `json:"unit"`
	Description string          `json:"description,omitempty"`
	Detail      *AdvisoryDetail `json:"detail,omitempty"`
}

// Thresholds are the per-metric trigger values.
type Thresholds struct {
	HeatIndex float64 `json:"heat_index"`
	ColdTemp  float64 `json:"cold_temp"`
	WindSpeed float64 `json:"wind_speed"`
	AQI       float64 `json:"aqi"`
}
