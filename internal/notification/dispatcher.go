package notification

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/pkg/config"
)

// Content is a rendered notification body.
type Content struct {
	HTML string
	Text string
}

// Result reports the outcome of one delivery attempt.
type Result struct {
	Sent      bool
	MessageID string
	Reason    string
}

// Dispatcher delivers a rendered notification. Send never returns an error;
// failures are reported through Result.Reason.
type Dispatcher interface {
	Send(ctx context.Context, recipient, subject string, content Content) Result
}

// NewDispatcher picks the delivery provider from configuration. A provider
// without credentials falls back to logging.
func NewDispatcher(cfg config.EmailConfig, logger *zap.Logger) Dispatcher {
	switch cfg.Provider {
	case config.EmailProviderResend:
		if cfg.ResendAPIKey != "" {
			return NewResendDispatcher(cfg.ResendURL, cfg.ResendAPIKey, cfg.FromName, cfg.From, logger)
		}
	case config.EmailProviderSendGrid:
		if cfg.SendGridAPIKey != "" {
			return NewSendGridDispatcher(cfg.SendGridAPIKey, cfg.FromName, cfg.From, logger)
		}
	case config.EmailProviderSMTP:
		if cfg.SMTP.Username != "" && cfg.SMTP.Password != "" {
			return NewSMTPDispatcher(cfg.SMTP, cfg.From, logger)
		}
	}
	if cfg.Provider != config.EmailProviderLog {
		logger.Warn("Email provider not configured, notifications will be logged only", zap.String("provider", cfg.Provider))
	}
	return NewLogDispatcher(logger)
}

// LogDispatcher records notifications in the log without delivering them.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, recipient, subject string, content Content) Result {
	d.logger.Info("Email not configured, skipping delivery",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
	)
	return Result{Sent: false, Reason: "email not configured"}
}

// splitRecipients accepts a comma-separated list.
func splitRecipients(recipient string) []string {
	var out []string
	for _, r := range strings.Split(recipient, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func formatFrom(name, address string) string {
	if name == "" {
		return address
	}
	return name + " <" + address + ">"
}
