package hazard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/safetyverse/weather-alerts/internal/conditions"
)

// Extreme breakpoints that lift a live hazard from watch to warning.
const (
	extremeHeat = 105.0
	extremeCold = 0.0
	extremeWind = 60.0
	extremeAQI  = 200.0
)

// Evaluator turns a conditions snapshot into alert candidates. It holds no
// state beyond its thresholds and is safe for concurrent use.
type Evaluator struct {
	current  Thresholds
	forecast Thresholds
}

func NewEvaluator(current, forecast Thresholds) *Evaluator {
	return &Evaluator{current: current, forecast: forecast}
}

func (e *Evaluator) CurrentThresholds() Thresholds  { return e.current }
func (e *Evaluator) ForecastThresholds() Thresholds { return e.forecast }

// Evaluate returns live, 48-hour, 24-hour and advisory candidates in that order.
func (e *Evaluator) Evaluate(now time.Time, snap *conditions.Snapshot) []Candidate {
	if snap == nil {
		return nil
	}
	var out []Candidate
	out = append(out, e.EvaluateCurrent(snap.Current)...)
	out = append(out, e.EvaluateForecast(now, snap.Hourly, snap.Location)...)
	out = append(out, EvaluateAdvisories(snap.Advisories)...)
	return out
}

func (e *Evaluator) EvaluateCurrent(c conditions.Reading) []Candidate {
	var out []Candidate

	if c.ApparentTemperature > e.current.HeatIndex {
		cand := Candidate{Type: HeatIndex, Severity: SeverityWatch, Label: "Heat Index Watch",
			Threshold: e.current.HeatIndex, Actual: c.ApparentTemperature, Unit: "°F"}
		if c.ApparentTemperature > extremeHeat {
			cand.Severity, cand.Label = SeverityWarning, "Extreme Heat Warning"
		}
		out = append(out, cand)
	}

	if c.Temperature < e.current.ColdTemp {
		cand := Candidate{Type: ColdTemp, Severity: SeverityWatch, Label: "Cold Temperature Watch",
			Threshold: e.current.ColdTemp, Actual: c.Temperature, Unit: "°F"}
		if c.Temperature < extremeCold {
			cand.Severity, cand.Label = SeverityWarning, "Extreme Cold Warning"
		}
		out = append(out, cand)
	}

	if c.WindSpeed > e.current.WindSpeed {
		cand := Candidate{Type: WindSpeed, Severity: SeverityWatch, Label: "High Wind Watch",
			Threshold: e.current.WindSpeed, Actual: c.WindSpeed, Unit: "mph"}
		if c.WindSpeed > extremeWind {
			cand.Severity, cand.Label = SeverityWarning, "Extreme Wind Warning"
		}
		out = append(out, cand)
	}

	if c.AQI != nil && *c.AQI > e.current.AQI {
		cand := Candidate{Type: AQI, Severity: SeverityWatch, Label: "Air Quality Watch",
			Threshold: e.current.AQI, Actual: *c.AQI, Unit: "AQI"}
		if *c.AQI > extremeAQI {
			cand.Severity, cand.Label = SeverityWarning, "Hazardous Air Quality Warning"
		}
		out = append(out, cand)
	}

	if c.WinterWeather {
		out = append(out, Candidate{Type: WinterWeather, Severity: SeverityWatch, Label: "Winter Weather Watch",
			Threshold: 0, Actual: float64(c.WeatherCode), Unit: "code",
			Description: c.WeatherDescription + " occurring now"})
	}

	if c.SevereStorm {
		out = append(out, Candidate{Type: SevereStorm, Severity: SeverityWarning, Label: "Severe Thunderstorm Warning",
			Threshold: 0, Actual: float64(c.WeatherCode), Unit: "code",
			Description: c.WeatherDescription + " occurring now"})
	}

	return out
}

// forecastWindow is a span of hours ahead of evaluation time. The near
// window excludes its upper bound so that an hour exactly 24h out belongs
// to neither window.
type forecastWindow struct {
	prefix    string
	label     string
	from, to  time.Duration
	inclusive bool
}

var forecastWindows = []forecastWindow{
	{prefix: farPrefix, label: "48-Hour", from: 24 * time.Hour, to: 48 * time.Hour, inclusive: true},
	{prefix: nearPrefix, label: "24-Hour", from: 0, to: 24 * time.Hour},
}

func (w forecastWindow) contains(ahead time.Duration) bool {
	if ahead <= w.from {
		return false
	}
	if w.inclusive {
		return ahead <= w.to
	}
	return ahead < w.to
}

// EvaluateForecast scans the far window then the near window. Every
// candidate is an advisory. loc formats the projected local time.
func (e *Evaluator) EvaluateForecast(now time.Time, hours []conditions.Reading, loc *time.Location) []Candidate {
	if loc == nil {
		loc = time.UTC
	}
	var out []Candidate
	for _, w := range forecastWindows {
		var window []conditions.Reading
		for _, h := range hours {
			if w.contains(h.Time.Sub(now)) {
				window = append(window, h)
			}
		}
		if len(window) > 0 {
			out = append(out, e.scanWindow(w, window, loc)...)
		}
	}
	return out
}

func (e *Evaluator) scanWindow(w forecastWindow, hours []conditions.Reading, loc *time.Location) []Candidate {
	var out []Candidate
	at := func(r conditions.Reading) string { return r.Time.In(loc).Format("3:04 PM") }
	add := func(suffix, label string, threshold, actual float64, unit, description string) {
		out = append(out, Candidate{
			Type:        Type(w.prefix + suffix),
			Severity:    SeverityAdvisory,
			Label:       w.label + " " + label,
			Threshold:   threshold,
			Actual:      actual,
			Unit:        unit,
			Description: description,
		})
	}

	if worst, ok := extreme(hours, func(r conditions.Reading) (float64, bool) {
		return r.ApparentTemperature, r.ApparentTemperature > e.forecast.HeatIndex
	}, true); ok {
		add("heat", "Heat Index Advisory", e.forecast.HeatIndex, worst.ApparentTemperature, "°F",
			fmt.Sprintf("Heat index projected to reach %s°F at %s", formatValue(worst.ApparentTemperature), at(worst)))
	}

	if worst, ok := extreme(hours, func(r conditions.Reading) (float64, bool) {
		return r.Temperature, r.Temperature < e.forecast.ColdTemp
	}, false); ok {
		add("cold", "Cold Temperature Advisory", e.forecast.ColdTemp, worst.Temperature, "°F",
			fmt.Sprintf("Temperature projected to drop to %s°F at %s", formatValue(worst.Temperature), at(worst)))
	}

	if worst, ok := extreme(hours, func(r conditions.Reading) (float64, bool) {
		return r.WindSpeed, r.WindSpeed > e.forecast.WindSpeed
	}, true); ok {
		add("wind", "High Wind Advisory", e.forecast.WindSpeed, worst.WindSpeed, "mph",
			fmt.Sprintf("Wind speed projected to reach %s mph at %s", formatValue(worst.WindSpeed), at(worst)))
	}

	if worst, ok := extreme(hours, func(r conditions.Reading) (float64, bool) {
		if r.AQI == nil {
			return 0, false
		}
		return *r.AQI, *r.AQI > e.forecast.AQI
	}, true); ok {
		add("aqi", "Air Quality Advisory", e.forecast.AQI, *worst.AQI, "AQI",
			fmt.Sprintf("AQI projected to reach %s at %s", formatValue(*worst.AQI), at(worst)))
	}

	if first, ok := firstWhere(hours, func(r conditions.Reading) bool { return r.WinterWeather }); ok {
		add("winter", "Winter Weather Advisory", 0, float64(first.WeatherCode), "code",
			fmt.Sprintf("%s expected at %s", first.WeatherDescription, at(first)))
	}

	if first, ok := firstWhere(hours, func(r conditions.Reading) bool { return r.SevereStorm }); ok {
		add("storm", "Severe Storm Advisory", 0, float64(first.WeatherCode), "code",
			fmt.Sprintf("%s expected at %s", first.WeatherDescription, at(first)))
	}

	return out
}

// extreme picks the crossing hour with the highest (or lowest) value.
// Ties keep the earliest hour.
func extreme(hours []conditions.Reading, value func(conditions.Reading) (float64, bool), highest bool) (conditions.Reading, bool) {
	var (
		best  conditions.Reading
		bestV float64
		found bool
	)
	for _, h := range hours {
		v, crosses := value(h)
		if !crosses {
			continue
		}
		if !found || (highest && v > bestV) || (!highest && v < bestV) {
			best, bestV, found = h, v, true
		}
	}
	return best, found
}

func firstWhere(hours []conditions.Reading, pred func(conditions.Reading) bool) (conditions.Reading, bool) {
	for _, h := range hours {
		if pred(h) {
			return h, true
		}
	}
	return conditions.Reading{}, false
}

// EvaluateAdvisories wraps each upstream advisory as an external_advisory candidate.
func EvaluateAdvisories(advisories []conditions.Advisory) []Candidate {
	out := make([]Candidate, 0, len(advisories))
	for _, a := range advisories {
		out = append(out, Candidate{
			Type:        ExternalAdvisory,
			Severity:    advisorySeverity(a.Severity),
			Label:       a.Event,
			Description: a.Headline,
			Detail: &AdvisoryDetail{
				Event:           a.Event,
				Instruction:     a.Instruction,
				Onset:           a.Onset,
				Expires:         a.Expires,
				Source:          a.SenderName,
				FullDescription: a.Description,
			},
		})
	}
	return out
}

func advisorySeverity(s string) Severity {
	switch s {
	case "Extreme", "Severe":
		return SeverityWarning
	default:
		return SeverityWatch
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
