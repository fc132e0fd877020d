package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/shopfusion/api/internal/domain"
	"github.com/shopfusion/api/internal/services"
)

// renderedMail is a fully prepared message ready for the sender.
type renderedMail struct {
	Subject string
	HTML    string
}

// mailData is the view model shared by all order mail templates. Free-text
// fields coming from customers pass through the sanitizer before rendering.
type mailData struct {
	RecipientName string
	OrderNumber   string
	Items         []mailLine
	ItemsTotal    string
	Shipping      string
	Tax           string
	GrandTotal    string
	StatusPhrase  string
	ReturnReason  string
	CancelledBy   string
}

type mailLine struct {
	Name     string
	Quantity int
	Total    string
}

var mailTemplates = template.Must(template.New("order_mail").Funcs(template.FuncMap{}).Parse(`
{{define "header"}}<h1>ShopFusion</h1><p>Hi {{.RecipientName}},</p>{{end}}

{{define "items"}}<table>
<thead><tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Amount</th></tr></thead>
<tbody>
{{range .Items}}<tr><td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.Total}}</td></tr>
{{end}}</tbody>
</table>
<p>Items: {{.ItemsTotal}}<br>Shipping: {{.Shipping}}<br>Tax: {{.Tax}}<br><strong>Total: {{.GrandTotal}}</strong></p>{{end}}

{{define "order_placed"}}{{template "header" .}}
<p>Thanks for your order <strong>{{.OrderNumber}}</strong>. We will let you know as soon as your payment is confirmed.</p>
{{template "items" .}}{{end}}

{{define "order_paid"}}{{template "header" .}}
<p>We received your payment for order <strong>{{.OrderNumber}}</strong>. Your items are on their way to fulfillment.</p>
{{template "items" .}}{{end}}

{{define "order_status"}}{{template "header" .}}
<p>Your order <strong>{{.OrderNumber}}</strong> is now {{.StatusPhrase}}.</p>{{end}}

{{define "order_cancelled"}}{{template "header" .}}
{{if eq .CancelledBy "system"}}<p>Your order <strong>{{.OrderNumber}}</strong> was cancelled because payment did not arrive in time. Nothing was charged.</p>
{{else}}<p>Your order <strong>{{.OrderNumber}}</strong> has been cancelled.</p>{{end}}{{end}}

{{define "return_requested"}}{{template "header" .}}
<p>We received your return request for order <strong>{{.OrderNumber}}</strong>.{{if .ReturnReason}} Reason: {{.ReturnReason}}.{{end}}</p>
<p>Our team will review it and get back to you shortly.</p>{{end}}

{{define "return_approved"}}{{template "header" .}}
<p>Your return request for order <strong>{{.OrderNumber}}</strong> has been approved.{{if .ReturnReason}} Reason on file: {{.ReturnReason}}.{{end}}</p>
<p>Your refund will be credited once the items are received back.</p>{{end}}

{{define "return_rejected"}}{{template "header" .}}
<p>Your return request for order <strong>{{.OrderNumber}}</strong> has been rejected.{{if .ReturnReason}} Reason on file: {{.ReturnReason}}.{{end}}</p>{{end}}

{{define "refund_credited"}}{{template "header" .}}
<p>Your refund for order <strong>{{.OrderNumber}}</strong> of <strong>{{.GrandTotal}}</strong> has been credited to your original payment method.</p>{{end}}
`))

var reasonPolicy = bluemonday.StrictPolicy()

func formatAmount(minor int64) string {
	return fmt.Sprintf("%.2f", float64(minor)/100)
}

func buildMailData(intent services.NotificationIntent) mailData {
	order := intent.Order
	lines := make([]mailLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, mailLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Total:    formatAmount(item.Total),
		})
	}
	name := strings.TrimSpace(intent.RecipientName)
	if name == "" {
		name = "there"
	}
	return mailData{
		RecipientName: name,
		OrderNumber:   order.OrderNumber,
		Items:         lines,
		ItemsTotal:    formatAmount(order.Totals.Items),
		Shipping:      formatAmount(order.Totals.Shipping),
		Tax:           formatAmount(order.Totals.Tax),
		GrandTotal:    formatAmount(order.Totals.Total),
		StatusPhrase:  intent.StatusPhrase,
		ReturnReason:  reasonPolicy.Sanitize(order.ReturnReason),
		CancelledBy:   string(intent.CancelledBy),
	}
}

func renderMail(intent services.NotificationIntent) (renderedMail, error) {
	templateName, subject, err := mailLayout(intent)
	if err != nil {
		return renderedMail{}, err
	}

	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, templateName, buildMailData(intent)); err != nil {
		return renderedMail{}, fmt.Errorf("render %s: %w", templateName, err)
	}
	return renderedMail{Subject: subject, HTML: buf.String()}, nil
}

func mailLayout(intent services.NotificationIntent) (string, string, error) {
	number := intent.Order.OrderNumber
	switch intent.Kind {
	case services.NotificationOrderPlaced:
		return "order_placed", fmt.Sprintf("New order %s", number), nil
	case services.NotificationOrderPaid:
		return "order_paid", fmt.Sprintf("Payment received for order %s", number), nil
	case services.NotificationOrderStatus:
		return "order_status", fmt.Sprintf("Your order %s is %s", number, intent.StatusPhrase), nil
	case services.NotificationOrderCancelled:
		return "order_cancelled", fmt.Sprintf("Order %s cancelled", number), nil
	case services.NotificationReturnRequest:
		return "return_requested", fmt.Sprintf("Return request for order %s", number), nil
	case services.NotificationReturnOutcome:
		if intent.ReturnStatus == domain.ReturnStatusApproved {
			return "return_approved", "Your Return Request Has Been Approved", nil
		}
		return "return_rejected", "Your Return Request Has Been Rejected", nil
	case services.NotificationRefundCredited:
		return "refund_credited", fmt.Sprintf("Refund credited for order %s", number), nil
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", intent.Kind)
	}
}
