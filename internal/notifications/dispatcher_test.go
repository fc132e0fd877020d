package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/shopfusion/api/internal/domain"
	"github.com/shopfusion/api/internal/services"
)

type captureSender struct {
	messages []MailMessage
	err      error
}

func (s *captureSender) Send(ctx context.Context, msg MailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "ord_01ABC",
		OrderNumber: "SF-2024-000042",
		Items: []domain.OrderLineItem{
			{Name: "Walnut desk organiser", Quantity: 2, UnitPrice: 300, Total: 600},
			{Name: "Brass bookend", Quantity: 1, UnitPrice: 400, Total: 400},
		},
		Totals: domain.OrderTotals{Items: 1000, Tax: 180, Total: 1180},
	}
}

func newTestDispatcher(t *testing.T, sender MailSender) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherDeps{
		Sender: sender,
		From:   "ShopFusion <no-reply@shopfusion.example>",
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestDispatchOrderPlaced(t *testing.T) {
	sender := &captureSender{}
	d := newTestDispatcher(t, sender)

	err := d.Dispatch(context.Background(), services.NotificationIntent{
		Kind:           services.NotificationOrderPlaced,
		Order:          sampleOrder(),
		RecipientName:  "Ada Lovelace",
		RecipientEmail: "ada@example.com",
		OccurredAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.messages))
	}
	msg := sender.messages[0]
	if msg.Subject != "New order SF-2024-000042" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.To != "ada@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	for _, want := range []string{"Ada Lovelace", "Walnut desk organiser", "11.80"} {
		if !strings.Contains(msg.HTML, want) {
			t.Fatalf("expected body to contain %q, got:\n%s", want, msg.HTML)
		}
	}
}

func TestDispatchStatusPhrase(t *testing.T) {
	sender := &captureSender{}
	d := newTestDispatcher(t, sender)

	err := d.Dispatch(context.Background(), services.NotificationIntent{
		Kind:           services.NotificationOrderStatus,
		Order:          sampleOrder(),
		RecipientEmail: "ada@example.com",
		StatusPhrase:   "out for delivery",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	msg := sender.messages[0]
	if msg.Subject != "Your order SF-2024-000042 is out for delivery" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "out for delivery") {
		t.Fatalf("expected phrase in body, got:\n%s", msg.HTML)
	}
}

func TestDispatchSanitizesReturnReason(t *testing.T) {
	sender := &captureSender{}
	d := newTestDispatcher(t, sender)

	order := sampleOrder()
	order.ReturnReason = `arrived damaged <script>alert("x")</script>`

	err := d.Dispatch(context.Background(), services.NotificationIntent{
		Kind:           services.NotificationReturnOutcome,
		Order:          order,
		RecipientEmail: "ada@example.com",
		ReturnStatus:   domain.ReturnStatusApproved,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	msg := sender.messages[0]
	if msg.Subject != "Your Return Request Has Been Approved" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Fatalf("expected script tag stripped, got:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "arrived damaged") {
		t.Fatalf("expected reason text preserved, got:\n%s", msg.HTML)
	}
}

func TestDispatchReturnRequestSubject(t *testing.T) {
	sender := &captureSender{}
	d := newTestDispatcher(t, sender)

	order := sampleOrder()
	order.ReturnReason = "wrong size"

	err := d.Dispatch(context.Background(), services.NotificationIntent{
		Kind:           services.NotificationReturnRequest,
		Order:          order,
		RecipientEmail: "ada@example.com",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	msg := sender.messages[0]
	if want := "Return request for order " + order.OrderNumber; msg.Subject != want {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "wrong size") {
		t.Fatalf("expected reason in body, got:\n%s", msg.HTML)
	}
}

func TestDispatchRejectedReturnSubject(t *testing.T) {
	sender := &captureSender{}
	d := newTestDispatcher(t, sender)

	err := d.Dispatch(context.Background(), services.NotificationIntent{
		Kind:           services.NotificationReturnOutcome,
		Order:          sampleOrder(),
		RecipientEmail: "ada@example.com",
		ReturnStatus:   domain.ReturnStatusRejected,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := sender.messages[0].Subject; got != "Your Return Request Has Been Rejected" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestDispatchRequiresRecipient(t *testing.T) {
	d := newTestDispatcher(t, &captureSender{})

	err := d.Dispatch(context.Background(), services.NotificationIntent{
		Kind:  services.NotificationOrderPaid,
		Order: sampleOrder(),
	})
	if !errors.Is(err, ErrDispatcherInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDispatchPropagatesSendFailure(t *testing.T) {
	sendErr := errors.New("provider down")
	d := newTestDispatcher(t, &captureSender{err: sendErr})

	err := d.Dispatch(context.Background(), services.NotificationIntent{
		Kind:           services.NotificationOrderPaid,
		Order:          sampleOrder(),
		RecipientEmail: "ada@example.com",
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send failure, got %v", err)
	}
}

func TestNewDispatcherValidatesDeps(t *testing.T) {
	if _, err := NewDispatcher(DispatcherDeps{From: "x@example.com"}); err == nil {
		t.Fatalf("expected error without sender")
	}
	if _, err := NewDispatcher(DispatcherDeps{Sender: &captureSender{}}); err == nil {
		t.Fatalf("expected error without sender address")
	}
}
