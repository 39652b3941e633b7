package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/hazard"
	"github.com/safetyverse/weather-alerts/internal/protocol"
)

var ErrSlackNotConfigured = errors.New("slack webhook not configured")

// SlackNotifier relays alert events to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	logger     *zap.Logger
}

func NewSlackNotifier(webhookURL string, logger *zap.Logger) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, logger: logger}
}

func (s *SlackNotifier) Enabled() bool {
	return s.webhookURL != ""
}

// Notify posts one alert event. Unlike email dispatch this returns errors so
// the Kafka consumer can leave the offset uncommitted and retry.
func (s *SlackNotifier) Notify(ctx context.Context, event *protocol.AlertEvent) error {
	if !s.Enabled() {
		return ErrSlackNotConfigured
	}

	severity := hazard.Severity(event.Severity)
	fields := []slack.AttachmentField{
		{Title: "Site", Value: event.SiteName, Short: true},
		{Title: "Severity", Value: severity.Label(), Short: true},
	}
	if event.Unit != "" && event.Unit != "code" {
		fields = append(fields,
			slack.AttachmentField{Title: "Measured", Value: formatMeasure(event.Actual, event.Unit), Short: true},
			slack.AttachmentField{Title: "Threshold", Value: formatMeasure(event.Threshold, event.Unit), Short: true},
		)
	}
	emailStatus := "not sent"
	if event.EmailSent {
		emailStatus = "sent to " + event.Recipient
	}
	fields = append(fields, slack.AttachmentField{Title: "Email", Value: emailStatus, Short: false})

	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("%s at %s", event.Label, event.SiteName),
		Attachments: []slack.Attachment{{
			Color:  severity.Color(),
			Title:  event.Label,
			Text:   event.Description,
			Fields: fields,
			Footer: "alert #" + strconv.FormatInt(event.AlertID, 10),
			Ts:     json.Number(strconv.FormatInt(event.CreatedAt.Unix(), 10)),
		}},
	}

	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	s.logger.Debug("Slack alert posted", zap.Int64("alert_id", event.AlertID), zap.Int64("site_id", event.SiteID))
	return nil
}
