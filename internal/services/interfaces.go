package services

import (
	"context"
	"time"

	domain "github.com/shopfusion/api/internal/domain"
	"github.com/shopfusion/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Actor              = domain.Actor
	Order              = domain.Order
	OrderTotals        = domain.OrderTotals
	OrderLineItem      = domain.OrderLineItem
	OrderContact       = domain.OrderContact
	CancelParty        = domain.CancelParty
	ReturnStatus       = domain.ReturnStatus
	FulfillmentStage   = domain.FulfillmentStage
	Address            = domain.Address
	UserProfile        = domain.UserProfile
	ProductSummary     = domain.ProductSummary
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService owns the order lifecycle: placement, payment, fulfillment
// progression, cancellation, returns, and refunds. Reads that observe an
// expired unpaid order cancel it in place before returning.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	ListOrders(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error)
	ListAllOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	MarkPaid(ctx context.Context, cmd MarkPaidCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	CancelExpired(ctx context.Context, limit int) (int, error)
	SetFulfillment(ctx context.Context, cmd SetFulfillmentCommand) (Order, error)
	RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error)
	SetReturnStatus(ctx context.Context, cmd SetReturnStatusCommand) (Order, error)
	MarkRefundCredited(ctx context.Context, cmd MarkRefundCreditedCommand) (Order, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error
	RefundEligibleAt(order Order) *time.Time
}

// NotificationDispatcher delivers transactional mail for order lifecycle
// changes. Delivery failures never propagate into lifecycle outcomes.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, intent NotificationIntent) error
}

// NotificationKind selects the mail template for a notification intent.
type NotificationKind string

const (
	NotificationOrderPlaced    NotificationKind = "order_placed"
	NotificationOrderPaid      NotificationKind = "order_paid"
	NotificationOrderStatus    NotificationKind = "order_status"
	NotificationOrderCancelled NotificationKind = "order_cancelled"
	NotificationReturnRequest  NotificationKind = "return_requested"
	NotificationReturnOutcome  NotificationKind = "return_outcome"
	NotificationRefundCredited NotificationKind = "refund_credited"
)

// NotificationIntent describes one customer-facing message about an order.
type NotificationIntent struct {
	Kind           NotificationKind
	Order          Order
	RecipientName  string
	RecipientEmail string
	StatusPhrase   string
	ReturnStatus   ReturnStatus
	CancelledBy    CancelParty
	OccurredAt     time.Time
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

// OrderListFilter aliases the repository filter for admin listings.
type OrderListFilter = repositories.OrderListFilter

// CreateOrderCommand carries everything needed to place a new order.
type CreateOrderCommand struct {
	UserID          string
	Items           []NewOrderItem
	ShippingAddress *Address
	Contact         *OrderContact
	PaymentMethod   string
	Totals          OrderTotals
	Metadata        map[string]any
}

// NewOrderItem is one requested line on a new order.
type NewOrderItem struct {
	ProductID string
	Name      string
	ImagePath string
	Quantity  int
	UnitPrice int64
}

// GetOrderCommand scopes a single-order read to the requesting actor.
type GetOrderCommand struct {
	OrderID string
	Actor   Actor
	UserID  string
}

// MarkPaidCommand records a successful payment against an order.
type MarkPaidCommand struct {
	OrderID       string
	ActorID       string
	PaymentResult map[string]any
}

// CancelOrderCommand cancels an order on behalf of an admin.
type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

// SetFulfillmentCommand toggles one fulfillment stage flag.
type SetFulfillmentCommand struct {
	OrderID string
	ActorID string
	Stage   FulfillmentStage
	Value   bool
}

// RequestReturnCommand opens a return request on a delivered order.
type RequestReturnCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

// SetReturnStatusCommand resolves a pending return request.
type SetReturnStatusCommand struct {
	OrderID string
	ActorID string
	Status  ReturnStatus
}

// MarkRefundCreditedCommand records that the refund reached the customer.
type MarkRefundCreditedCommand struct {
	OrderID string
	ActorID string
}

// DeleteOrderCommand removes an order permanently.
type DeleteOrderCommand struct {
	OrderID string
	ActorID string
}
