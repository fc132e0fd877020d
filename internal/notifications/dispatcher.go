package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopfusion/api/internal/services"
)

// ErrDispatcherInvalidInput indicates a notification intent that cannot be
// delivered as given.
var ErrDispatcherInvalidInput = errors.New("notifications: invalid input")

// MailSender delivers one rendered message. Implementations wrap a concrete
// mail provider.
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage is the provider-independent outbound message shape.
type MailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// DispatcherDeps configures NewDispatcher.
type DispatcherDeps struct {
	Sender MailSender
	// From is the sender address stamped on every message.
	From   string
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// Dispatcher renders order lifecycle mail and hands it to the sender. It
// implements services.NotificationDispatcher.
type Dispatcher struct {
	sender MailSender
	from   string
	logger func(ctx context.Context, event string, fields map[string]any)
}

func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Sender == nil {
		return nil, errors.New("notifications: mail sender is required")
	}
	from := strings.TrimSpace(deps.From)
	if from == "" {
		return nil, errors.New("notifications: sender address is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Dispatcher{sender: deps.Sender, from: from, logger: logger}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, intent services.NotificationIntent) error {
	recipient := strings.TrimSpace(intent.RecipientEmail)
	if recipient == "" {
		return fmt.Errorf("%w: recipient email is required", ErrDispatcherInvalidInput)
	}

	mail, err := renderMail(intent)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatcherInvalidInput, err)
	}

	msg := MailMessage{
		From:    d.from,
		To:      recipient,
		Subject: mail.Subject,
		HTML:    mail.HTML,
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger(ctx, "notification.send.failed", map[string]any{
			"kind":  string(intent.Kind),
			"order": intent.Order.ID,
			"error": err.Error(),
		})
		return err
	}

	d.logger(ctx, "notification.sent", map[string]any{
		"kind":  string(intent.Kind),
		"order": intent.Order.ID,
	})
	return nil
}

var _ services.NotificationDispatcher = (*Dispatcher)(nil)
