package conditions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safetyverse/weather-alerts/pkg/config"
)

// Provider supplies a fresh conditions snapshot for a coordinate.
// Only a failure of the primary forecast source is returned as an error;
// air quality and advisory sources degrade to unavailable.
type Provider interface {
	Fetch(ctx context.Context, lat, lon float64) (*Snapshot, error)
}

const localTimeLayout = "2006-01-02T15:04"

// OpenMeteoProvider reads forecast and air quality from Open-Meteo and
// active alerts from the National Weather Service.
type OpenMeteoProvider struct {
	forecast   *resty.Client
	airQuality *resty.Client
	advisories *resty.Client
	clock      clockwork.Clock
	logger     *zap.Logger
}

func NewOpenMeteoProvider(cfg config.WeatherConfig, clock clockwork.Clock, logger *zap.Logger) *OpenMeteoProvider {
	newClient := func(baseURL string) *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(cfg.Timeout).
			SetRetryCount(1).
			SetRetryWaitTime(500 * time.Millisecond).
			SetHeader("Accept", "application/json")
	}

	return &OpenMeteoProvider{
		forecast:   newClient(cfg.ForecastURL),
		airQuality: newClient(cfg.AirQualityURL),
		advisories: newClient(cfg.AdvisoryURL).
			SetHeader("User-Agent", cfg.UserAgent).
			SetHeader("Accept", "application/geo+json"),
		clock:  clock,
		logger: logger,
	}
}

type forecastResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Current          struct {
		Time                string  `json:"time"`
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Time                []string  `json:"time"`
		Temperature         []float64 `json:"temperature_2m"`
		ApparentTemperature []float64 `json:"apparent_temperature"`
		WindSpeed           []float64 `json:"wind_speed_10m"`
		WeatherCode         []int     `json:"weather_code"`
	} `json:"hourly"`
}

type airQualityResponse struct {
	Current struct {
		USAQI *float64 `json:"us_aqi"`
	} `json:"current"`
	Hourly struct {
		Time  []string   `json:"time"`
		USAQI []*float64 `json:"us_aqi"`
	} `json:"hourly"`
}

type advisoryResponse struct {
	Features []struct {
		Properties struct {
			ID          string     `json:"id"`
			Event       string     `json:"event"`
			Severity    string     `json:"severity"`
			Headline    string     `json:"headline"`
			Description string     `json:"description"`
			Instruction string     `json:"instruction"`
			SenderName  string     `json:"senderName"`
			Onset       *time.Time `json:"onset"`
			Expires     *time.Time `json:"expires"`
		} `json:"properties"`
	} `json:"features"`
}

// Fetch runs the three upstream requests concurrently and merges them.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	var (
		fc  *forecastResponse
		aq  *airQualityResponse
		adv []Advisory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fc, err = p.fetchForecast(gctx, lat, lon)
		return err
	})
	g.Go(func() error {
		var err error
		if aq, err = p.fetchAirQuality(gctx, lat, lon); err != nil {
			p.logger.Warn("Air quality unavailable", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
			aq = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if adv, err = p.fetchAdvisories(gctx, lat, lon); err != nil {
			p.logger.Warn("Weather advisories unavailable", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
			adv = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildSnapshot(fc, aq, adv, p.clock.Now())
}

func (p *OpenMeteoProvider) fetchForecast(ctx context.Context, lat, lon float64) (*forecastResponse, error) {
	var out forecastResponse
	resp, err := p.forecast.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":         formatCoord(lat),
			"longitude":        formatCoord(lon),
			"current":          "temperature_2m,apparent_temperature,wind_speed_10m,weather_code",
			"hourly":           "temperature_2m,apparent_temperature,wind_speed_10m,weather_code",
			"temperature_unit": "fahrenheit",
			"wind_speed_unit":  "mph",
			"timezone":         "auto",
			"forecast_days":    "3",
		}).
		SetResult(&out).
		Get("/v1/forecast")
	if err != nil {
		return nil, &FetchError{Source: "forecast", Err: err}
	}
	if resp.IsError() {
		return nil, &FetchError{Source: "forecast", Status: resp.StatusCode()}
	}
	return &out, nil
}

func (p *OpenMeteoProvider) fetchAirQuality(ctx context.Context, lat, lon float64) (*airQualityResponse, error) {
	var out airQualityResponse
	resp, err := p.airQuality.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":      formatCoord(lat),
			"longitude":     formatCoord(lon),
			"current":       "us_aqi",
			"hourly":        "us_aqi",
			"timezone":      "auto",
			"forecast_days": "3",
		}).
		SetResult(&out).
		Get("/v1/air-quality")
	if err != nil {
		return nil, fmt.Errorf("air quality request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("air quality request: status %d", resp.StatusCode())
	}
	return &out, nil
}

func (p *OpenMeteoProvider) fetchAdvisories(ctx context.Context, lat, lon float64) ([]Advisory, error) {
	var out advisoryResponse
	resp, err := p.advisories.R().
		SetContext(ctx).
		SetQueryParam("point", formatCoord(lat)+","+formatCoord(lon)).
		SetResult(&out).
		Get("/alerts/active")
	if err != nil {
		return nil, fmt.Errorf("advisory request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("advisory request: status %d", resp.StatusCode())
	}

	advisories := make([]Advisory, 0, len(out.Features))
	for _, f := range out.Features {
		pr := f.Properties
		advisories = append(advisories, Advisory{
			ID:          pr.ID,
			Event:       pr.Event,
			Severity:    pr.Severity,
			Headline:    pr.Headline,
			Description: pr.Description,
			Instruction: pr.Instruction,
			SenderName:  pr.SenderName,
			Onset:       pr.Onset,
			Expires:     pr.Expires,
		})
	}
	return advisories, nil
}

func buildSnapshot(fc *forecastResponse, aq *airQualityResponse, adv []Advisory, now time.Time) (*Snapshot, error) {
	loc := time.FixedZone(fc.Timezone, fc.UTCOffsetSeconds)
	if fc.Timezone == "" {
		loc = time.UTC
	}

	currentAt, err := time.ParseInLocation(localTimeLayout, fc.Current.Time, loc)
	if err != nil {
		return nil, &FetchError{Source: "forecast", Err: fmt.Errorf("parse current time %q: %w", fc.Current.Time, err)}
	}

	var currentAQI *float64
	hourlyAQI := map[string]*float64{}
	if aq != nil {
		currentAQI = aq.Current.USAQI
		for i, t := range aq.Hourly.Time {
			if i < len(aq.Hourly.USAQI) {
				hourlyAQI[t] = aq.Hourly.USAQI[i]
			}
		}
	}

	snap := &Snapshot{
		Current: NewReading(currentAt, fc.Current.Temperature, fc.Current.ApparentTemperature,
			fc.Current.WindSpeed, fc.Current.WeatherCode, currentAQI),
		Advisories: adv,
		Location:   loc,
		Timezone:   fc.Timezone,
		FetchedAt:  now,
	}
	if snap.Advisories == nil {
		snap.Advisories = []Advisory{}
	}

	h := fc.Hourly
	n := minLen(len(h.Time), len(h.Temperature), len(h.ApparentTemperature), len(h.WindSpeed), len(h.WeatherCode))
	snap.Hourly = make([]Reading, 0, n)
	for i := 0; i < n; i++ {
		at, err := time.ParseInLocation(localTimeLayout, h.Time[i], loc)
		if err != nil {
			continue
		}
		snap.Hourly = append(snap.Hourly, NewReading(at, h.Temperature[i], h.ApparentTemperature[i],
			h.WindSpeed[i], h.WeatherCode[i], hourlyAQI[h.Time[i]]))
	}

	return snap, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func minLen(lens ...int) int {
	m := lens[0]
	for _, l := range lens[1:] {
		if l < m {
			m = l
		}
	}
	return m
}
