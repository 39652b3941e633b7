package protocol

import (
	"testing"
	"time"
)

func TestAlertEvent_EncodeDecode(t *testing.T) {
	event := &AlertEvent{
		Version:   AlertEventVersion,
		EventID:   "e-1",
		RunID:     "r-1",
		AlertID:   42,
		SiteID:    7,
		SiteName:  "Riverside Tower",
		AlertType: "48hr_heat",
		BaseType:  "heat_index",
		Severity:  "advisory",
		Label:     "48-Hour Heat Index Advisory",
		Threshold: 95,
		Actual:    101,
		Unit:      "°F",
		CreatedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := EncodeAlertEvent(event)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeAlertEvent(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *decoded != *event {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", decoded, event)
	}
	if event.Key() != "7" {
		t.Errorf("Expected key 7, got %q", event.Key())
	}
}

func TestDecodeAlertEvent_RejectsNewerVersion(t *testing.T) {
	if _, err := DecodeAlertEvent([]byte(`{"version": 2, "site_id": 1}`)); err == nil {
		t.Error("Expected error for unsupported version")
	}
	if _, err := DecodeAlertEvent([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed payload")
	}
}
