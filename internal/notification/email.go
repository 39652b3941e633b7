package notification

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/pkg/config"
)

// SMTPDispatcher sends email through an SMTP relay with PLAIN auth.
type SMTPDispatcher struct {
	config   config.SMTPConfig
	from     string
	logger   *zap.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPDispatcher(cfg config.SMTPConfig, from string, logger *zap.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{config: cfg, from: from, logger: logger, sendMail: smtp.SendMail}
}

func (e *SMTPDispatcher) Send(ctx context.Context, recipient, subject string, content Content) Result {
	to := splitRecipients(recipient)
	if len(to) == 0 {
		return Result{Reason: "no recipient"}
	}

	message := buildMessage(e.from, to, subject, content, time.Now())
	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)

	// net/smtp has no context support; the send keeps running after a
	// timeout but its result is discarded.
	done := make(chan error, 1)
	go func() {
		done <- e.sendMail(addr, auth, e.from, to, message)
	}()

	select {
	case err := <-done:
		if err != nil {
			e.logger.Error("SMTP send failed", zap.String("subject", subject), zap.Error(err))
			return Result{Reason: fmt.Sprintf("smtp: %v", err)}
		}
	case <-ctx.Done():
		e.logger.Error("SMTP send timed out", zap.String("subject", subject), zap.Error(ctx.Err()))
		return Result{Reason: fmt.Sprintf("smtp: %v", ctx.Err())}
	}

	e.logger.Info("Email sent", zap.String("subject", subject))
	return Result{Sent: true}
}

const mimeBoundary = "hazard-alert-boundary"

func buildMessage(from string, to []string, subject string, content Content, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", mimeBoundary, content.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", mimeBoundary, content.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}
