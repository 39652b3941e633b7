package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	texttemplate "text/template"
	"time"

	"github.com/safetyverse/weather-alerts/internal/conditions"
	"github.com/safetyverse/weather-alerts/internal/database"
	"github.com/safetyverse/weather-alerts/internal/hazard"
)

// Renderer turns a candidate and its context into a notification body.
type Renderer interface {
	Render(c hazard.Candidate, site *database.Site, snap *conditions.Snapshot) (Content, error)
}

// Subject formats the notification subject line.
func Subject(c hazard.Candidate, site *database.Site) string {
	return fmt.Sprintf("[%s] %s - %s", c.Severity.Label(), c.Label, site.Name)
}

type forecastRow struct {
	Time    string
	Temp    string
	Feels   string
	Wind    string
	AQI     string
	Weather string
}

type viewData struct {
	Candidate   hazard.Candidate
	Site        *database.Site
	Severity    string
	Color       string
	Actual      string
	Threshold   string
	Current     conditions.Reading
	CurrentAQI  string
	Forecast    []forecastRow
	Protocol    []string
	PPE         []string
	Hydration   []hazard.HydrationStep
	Detail      *hazard.AdvisoryDetail
	Onset       string
	Expires     string
	GeneratedAt string
}

// TemplateRenderer renders HTML and plain text bodies from built-in templates.
type TemplateRenderer struct {
	html *template.Template
	text *texttemplate.Template
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		html: template.Must(template.New("alert.html").Parse(htmlTemplate)),
		text: texttemplate.Must(texttemplate.New("alert.txt").Parse(textTemplate)),
	}
}

func (r *TemplateRenderer) Render(c hazard.Candidate, site *database.Site, snap *conditions.Snapshot) (Content, error) {
	data := buildView(c, site, snap)

	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return Content{}, fmt.Errorf("failed to render html: %w", err)
	}
	if err := r.text.Execute(&textBuf, data); err != nil {
		return Content{}, fmt.Errorf("failed to render text: %w", err)
	}
	return Content{HTML: htmlBuf.String(), Text: textBuf.String()}, nil
}

func buildView(c hazard.Candidate, site *database.Site, snap *conditions.Snapshot) viewData {
	data := viewData{
		Candidate:  c,
		Site:       site,
		Severity:   c.Severity.Label(),
		Color:      c.Severity.Color(),
		Actual:     formatMeasure(c.Actual, c.Unit),
		Threshold:  formatMeasure(c.Threshold, c.Unit),
		CurrentAQI: "N/A",
		Protocol:   hazard.SafetyProtocol(c.Type),
		PPE:        hazard.PPE(c.Type),
		Detail:     c.Detail,
	}
	if c.Type.Base() == hazard.HeatIndex {
		data.Hydration = hazard.HydrationSchedule()
	}
	if snap == nil {
		return data
	}

	data.Current = snap.Current
	if snap.Current.AQI != nil {
		data.CurrentAQI = fmt.Sprintf("%.0f (%s)", *snap.Current.AQI, snap.Current.AQILabel)
	}
	for _, h := range snap.Summary(snap.FetchedAt) {
		row := forecastRow{
			Time:    snap.LocalTime(h.Time),
			Temp:    fmt.Sprintf("%.0f°F", h.Temperature),
			Feels:   fmt.Sprintf("%.0f°F", h.ApparentTemperature),
			Wind:    fmt.Sprintf("%.0f mph", h.WindSpeed),
			AQI:     "N/A",
			Weather: h.WeatherDescription,
		}
		if h.AQI != nil {
			row.AQI = fmt.Sprintf("%.0f", *h.AQI)
		}
		data.Forecast = append(data.Forecast, row)
	}
	if c.Detail != nil {
		data.Onset = formatWhen(snap, c.Detail.Onset)
		data.Expires = formatWhen(snap, c.Detail.Expires)
	}
	data.GeneratedAt = snap.FetchedAt.In(locationOf(snap)).Format("Jan 2, 2006 3:04 PM MST")
	return data
}

func formatMeasure(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	switch unit {
	case "", "code":
		return s
	case "°F":
		return s + unit
	default:
		return s + " " + unit
	}
}

func formatWhen(snap *conditions.Snapshot, t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(locationOf(snap)).Format("Mon Jan 2 3:04 PM")
}

func locationOf(snap *conditions.Snapshot) *time.Location {
	if snap.Location != nil {
		return snap.Location
	}
	return time.UTC
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937; max-width: 640px; margin: 0 auto;">
  <div style="background: {{.Color}}; color: #ffffff; padding: 16px 20px; border-radius: 6px 6px 0 0;">
    <div style="font-size: 12px; letter-spacing: 1px;">{{.Severity}}</div>
    <div style="font-size: 22px; font-weight: bold;">{{.Candidate.Label}}</div>
    <div style="font-size: 14px;">{{.Site.Name}}{{if .Site.City}} &middot; {{.Site.City}}, {{.Site.State}}{{end}}</div>
  </div>
  <div style="border: 1px solid #e5e7eb; border-top: none; padding: 20px;">
    {{if .Candidate.Description}}<p style="font-size: 16px;">{{.Candidate.Description}}</p>{{end}}
    {{if ne .Candidate.Unit "code"}}{{if .Candidate.Unit}}<p><strong>Measured:</strong> {{.Actual}} &nbsp; <strong>Threshold:</strong> {{.Threshold}}</p>{{end}}{{end}}
    {{with .Detail}}
    <div style="background: #f9fafb; padding: 12px; border-left: 4px solid {{$.Color}};">
      <p><strong>{{.Event}}</strong>{{if .Source}} issued by {{.Source}}{{end}}</p>
      {{if $.Onset}}<p>Onset: {{$.Onset}}{{if $.Expires}} &middot; Expires: {{$.Expires}}{{end}}</p>{{end}}
      {{if .Instruction}}<p><strong>Instructions:</strong> {{.Instruction}}</p>{{end}}
      {{if .FullDescription}}<p style="white-space: pre-line;">{{.FullDescription}}</p>{{end}}
    </div>
    {{end}}
    <h3>Response Protocol</h3>
    <ul>{{range .Protocol}}<li>{{.}}</li>{{end}}</ul>
    <h3>PPE Checklist</h3>
    <ul>{{range .PPE}}<li>{{.}}</li>{{end}}</ul>
    {{if .Hydration}}
    <h3>Hydration Schedule</h3>
    <table style="border-collapse: collapse; width: 100%;">
      {{range .Hydration}}<tr><td style="padding: 4px 8px; border-bottom: 1px solid #e5e7eb;">{{.Range}}</td><td style="padding: 4px 8px; border-bottom: 1px solid #e5e7eb;">{{.Instruction}}</td></tr>{{end}}
    </table>
    {{end}}
    <h3>Current Conditions</h3>
    <p>Temperature {{printf "%.0f" .Current.Temperature}}°F &middot; Feels like {{printf "%.0f" .Current.ApparentTemperature}}°F &middot; Wind {{printf "%.0f" .Current.WindSpeed}} mph &middot; AQI {{.CurrentAQI}} &middot; {{.Current.WeatherDescription}}</p>
    {{if .Forecast}}
    <h3>Next 24 Hours</h3>
    <table style="border-collapse: collapse; width: 100%; font-size: 13px;">
      <tr><th align="left">Time</th><th align="left">Temp</th><th align="left">Feels</th><th align="left">Wind</th><th align="left">AQI</th><th align="left">Weather</th></tr>
      {{range .Forecast}}<tr><td>{{.Time}}</td><td>{{.Temp}}</td><td>{{.Feels}}</td><td>{{.Wind}}</td><td>{{.AQI}}</td><td>{{.Weather}}</td></tr>{{end}}
    </table>
    {{end}}
    <p style="color: #6b7280; font-size: 12px;">Generated {{.GeneratedAt}}{{with .Site.ManagerName}} for {{.}}{{end}}.</p>
  </div>
</body>
</html>
`

const textTemplate = `{{.Severity}}: {{.Candidate.Label}}
Site: {{.Site.Name}}{{if .Site.City}} ({{.Site.City}}, {{.Site.State}}){{end}}
{{if .Candidate.Description}}
{{.Candidate.Description}}
{{end}}{{if ne .Candidate.Unit "code"}}{{if .Candidate.Unit}}
Measured: {{.Actual}}  Threshold: {{.Threshold}}
{{end}}{{end}}{{with .Detail}}
{{.Event}}{{if .Source}} issued by {{.Source}}{{end}}
{{if $.Onset}}Onset: {{$.Onset}}{{if $.Expires}}  Expires: {{$.Expires}}{{end}}
{{end}}{{if .Instruction}}Instructions: {{.Instruction}}
{{end}}{{end}}
RESPONSE PROTOCOL
{{range .Protocol}}- {{.}}
{{end}}
PPE CHECKLIST
{{range .PPE}}- {{.}}
{{end}}{{if .Hydration}}
HYDRATION SCHEDULE
{{range .Hydration}}- {{.Range}}: {{.Instruction}}
{{end}}{{end}}
CURRENT CONDITIONS
Temperature {{printf "%.0f" .Current.Temperature}}°F, feels like {{printf "%.0f" .Current.ApparentTemperature}}°F, wind {{printf "%.0f" .Current.WindSpeed}} mph, AQI {{.CurrentAQI}}, {{.Current.WeatherDescription}}
{{if .Forecast}}
NEXT 24 HOURS
{{range .Forecast}}{{.Time}}  {{.Temp}} (feels {{.Feels}})  {{.Wind}}  AQI {{.AQI}}  {{.Weather}}
{{end}}{{end}}`
