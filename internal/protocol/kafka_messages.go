package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const AlertEventVersion = 1

// AlertEvent is published to Kafka after an alert record is written.
// Consumers key by site so one site's events stay ordered.
type AlertEvent struct {
	Version     int       `json:"version"`
	EventID     string    `json:"event_id"`
	RunID       string    `json:"run_id"`
	AlertID     int64     `json:"alert_id"`
	SiteID      int64     `json:"site_id"`
	SiteName    string    `json:"site_name"`
	AlertType   string    `json:"alert_type"`
	BaseType    string    `json:"base_type"`
	Severity    string    `json:"severity"`
	Label       string    `json:"label"`
	Threshold   float64   `json:"threshold"`
	Actual      float64   `json:"actual"`
	Unit        string    `json:"unit"`
	Description string    `json:"description,omitempty"`
	EmailSent   bool      `json:"email_sent"`
	Recipient   string    `json:"recipient,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key is the partition key for the event.
func (e *AlertEvent) Key() string {
	return strconv.FormatInt(e.SiteID, 10)
}

// EncodeAlertEvent encodes an AlertEvent to JSON
func EncodeAlertEvent(event *AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeAlertEvent decodes JSON to AlertEvent
func DecodeAlertEvent(data []byte) (*AlertEvent, error) {
	var event AlertEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	if event.Version > AlertEventVersion {
		return nil, fmt.Errorf("unsupported alert event version %d", event.Version)
	}
	return &event, nil
}
