package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

const mailgunSendTimeout = 10 * time.Second

// MailgunSender delivers messages through the Mailgun HTTP API.
type MailgunSender struct {
	client *mailgun.MailgunImpl
}

// NewMailgunSender builds a sender for the given Mailgun domain and API key.
func NewMailgunSender(domain, apiKey string) (*MailgunSender, error) {
	domain = strings.TrimSpace(domain)
	apiKey = strings.TrimSpace(apiKey)
	if domain == "" {
		return nil, errors.New("notifications: mailgun domain is required")
	}
	if apiKey == "" {
		return nil, errors.New("notifications: mailgun api key is required")
	}
	return &MailgunSender{client: mailgun.NewMailgun(domain, apiKey)}, nil
}

func (s *MailgunSender) Send(ctx context.Context, msg MailMessage) error {
	message := s.client.NewMessage(msg.From, msg.Subject, "", msg.To)
	message.SetHtml(msg.HTML)

	ctx, cancel := context.WithTimeout(ctx, mailgunSendTimeout)
	defer cancel()

	_, _, err := s.client.Send(ctx, message)
	return err
}

var _ MailSender = (*MailgunSender)(nil)
