package database

import (
	"encoding/json"
	"time"
)

// Site is a job site being monitored. Sites are managed outside this service.
type Site struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	ManagerName  string    `json:"manager_name"`
	ManagerEmail string    `json:"manager_email"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AlertRecord is an append-only audit row for one alert attempt.
type AlertRecord struct {
	ID             int64           `json:"id"`
	SiteID         int64           `json:"site_id"`
	AlertType      string          `json:"alert_type"`
	Severity       string          `json:"severity"`
	Label          string          `json:"label"`
	ThresholdValue float64         `json:"threshold_value"`
	ActualValue    float64         `json:"actual_value"`
	Description    string          `json:"description"`
	ConditionsJSON json.RawMessage `json:"conditions,omitempty"`
	ForecastJSON   json.RawMessage `json:"forecast,omitempty"`
	EmailSent      bool            `json:"email_sent"`
	EmailRecipient string          `json:"email_recipient"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AlertHistoryEntry is an AlertRecord joined with its site's name and place.
type AlertHistoryEntry struct {
	AlertRecord
	SiteName  string `json:"site_name"`
	SiteCity  string `json:"site_city"`
	SiteState string `json:"site_state"`
}

// HistoryFilter narrows ListAlertHistory. A zero SiteID means all sites.
type HistoryFilter struct {
	SiteID int64
}
