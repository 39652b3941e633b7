package notification

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const sendGridHost = "https://api.sendgrid.com"

// SendGridDispatcher sends email through the SendGrid v3 API.
type SendGridDispatcher struct {
	apiKey string
	host   string
	from   *mail.Email
	logger *zap.Logger
}

func NewSendGridDispatcher(apiKey, fromName, fromAddress string, logger *zap.Logger) *SendGridDispatcher {
	return &SendGridDispatcher{
		apiKey: apiKey,
		host:   sendGridHost,
		from:   mail.NewEmail(fromName, fromAddress),
		logger: logger,
	}
}

func (d *SendGridDispatcher) Send(ctx context.Context, recipient, subject string, content Content) Result {
	to := splitRecipients(recipient)
	if len(to) == 0 {
		return Result{Reason: "no recipient"}
	}

	message := mail.NewV3Mail()
	message.SetFrom(d.from)
	message.Subject = subject
	p := mail.NewPersonalization()
	for _, addr := range to {
		p.AddTos(mail.NewEmail("", addr))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", content.Text), mail.NewContent("text/html", content.HTML))

	request := sendgrid.GetRequest(d.apiKey, "/v3/mail/send", d.host)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		d.logger.Error("SendGrid request failed", zap.String("subject", subject), zap.Error(err))
		return Result{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	if response.StatusCode >= 300 {
		d.logger.Error("SendGrid rejected email",
			zap.String("subject", subject),
			zap.Int("status_code", response.StatusCode),
			zap.String("body", response.Body),
		)
		return Result{Reason: fmt.Sprintf("sendgrid status %d", response.StatusCode)}
	}

	var messageID string
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	d.logger.Info("Email sent", zap.String("subject", subject), zap.Int("status_code", response.StatusCode))
	return Result{Sent: true, MessageID: messageID}
}
