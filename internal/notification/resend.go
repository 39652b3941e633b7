package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ResendDispatcher sends email through the Resend REST API.
type ResendDispatcher struct {
	httpClient *resty.Client
	from       string
	logger     *zap.Logger
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewResendDispatcher(baseURL, apiKey, fromName, fromAddress string, logger *zap.Logger) *ResendDispatcher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(20*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &ResendDispatcher{
		httpClient: client,
		from:       formatFrom(fromName, fromAddress),
		logger:     logger,
	}
}

func (d *ResendDispatcher) Send(ctx context.Context, recipient, subject string, content Content) Result {
	to := splitRecipients(recipient)
	if len(to) == 0 {
		return Result{Reason: "no recipient"}
	}

	var (
		out     resendResponse
		failure resendError
	)
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetBody(resendRequest{From: d.from, To: to, Subject: subject, HTML: content.HTML, Text: content.Text}).
		SetResult(&out).
		SetError(&failure).
		Post("/emails")
	if err != nil {
		d.logger.Error("Resend request failed", zap.String("subject", subject), zap.Error(err))
		return Result{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	if resp.IsError() {
		reason := failure.Message
		if reason == "" {
			reason = resp.Status()
		}
		d.logger.Error("Resend rejected email",
			zap.String("subject", subject),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("reason", reason),
		)
		return Result{Reason: reason}
	}

	d.logger.Info("Email sent", zap.String("subject", subject), zap.String("message_id", out.ID))
	return Result{Sent: true, MessageID: out.ID}
}
