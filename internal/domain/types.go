package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Actor identifies who is driving a lifecycle transition.
type Actor string

const (
	// ActorCustomer marks transitions initiated by the purchasing user.
	ActorCustomer Actor = "customer"
	// ActorAdmin marks transitions initiated from admin surfaces.
	ActorAdmin Actor = "admin"
	// ActorSystem marks transitions applied by background processes.
	ActorSystem Actor = "system"
)

// CancelParty records which side cancelled an order.
type CancelParty string

const (
	// CancelledBySystem indicates the auto-cancellation sweeper cancelled the order.
	CancelledBySystem CancelParty = "system"
	// CancelledByAdmin indicates an administrator cancelled the order.
	CancelledByAdmin CancelParty = "admin"
)

// ReturnStatus enumerates the states of the whole-order return flow.
// The empty value means no return has ever been requested.
type ReturnStatus string

const (
	// ReturnStatusPending indicates the return request awaits an admin decision.
	ReturnStatusPending ReturnStatus = "Pending"
	// ReturnStatusApproved indicates the return was approved and a refund is owed.
	ReturnStatusApproved ReturnStatus = "Approved"
	// ReturnStatusRejected indicates the return request was rejected.
	ReturnStatusRejected ReturnStatus = "Rejected"
)

// FulfillmentStage names the ordered fulfillment flags on an order.
type FulfillmentStage string

const (
	// StagePacking is the first fulfillment stage after payment.
	StagePacking FulfillmentStage = "isPacking"
	// StageDispatched indicates the parcel left the warehouse.
	StageDispatched FulfillmentStage = "isDispatched"
	// StageOutForDelivery indicates the parcel is on its final leg.
	StageOutForDelivery FulfillmentStage = "outForDelivery"
	// StageDelivered is the terminal fulfillment stage.
	StageDelivered FulfillmentStage = "isDelivered"
)

// FulfillmentStages lists the stages in the order they must be set.
var FulfillmentStages = []FulfillmentStage{
	StagePacking,
	StageDispatched,
	StageOutForDelivery,
	StageDelivered,
}

// Order is the entity the lifecycle state machine mutates. Line items,
// address, and prices are frozen at creation; everything else moves only
// through guarded transitions.
type Order struct {
	ID          string
	OrderNumber string
	UserID      string

	Items           []OrderLineItem
	ShippingAddress *Address
	PaymentMethod   string
	Totals          OrderTotals
	Contact         *OrderContact

	IsPaid        bool
	PaidAt        *time.Time
	PaymentResult map[string]any

	IsPacking        bool
	PackingAt        *time.Time
	IsDispatched     bool
	DispatchedAt     *time.Time
	OutForDelivery   bool
	OutForDeliveryAt *time.Time
	IsDelivered      bool
	DeliveredAt      *time.Time

	IsCancelled bool
	CancelledBy CancelParty
	CancelledAt *time.Time

	ReturnRequested bool
	ReturnReason    string
	ReturnStatus    ReturnStatus
	ReturnedAt      *time.Time

	RefundCredited   bool
	RefundCreditedAt *time.Time

	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time

	// Revision carries the persisted snapshot's update time and is used as
	// the optimistic-concurrency precondition on writes. Zero for unsaved
	// orders.
	Revision time.Time
}

// Stage reports whether the given fulfillment flag is set on the order.
func (o Order) Stage(stage FulfillmentStage) bool {
	switch stage {
	case StagePacking:
		return o.IsPacking
	case StageDispatched:
		return o.IsDispatched
	case StageOutForDelivery:
		return o.OutForDelivery
	case StageDelivered:
		return o.IsDelivered
	default:
		return false
	}
}

// Closed reports whether the order reached a terminal lifecycle state.
func (o Order) Closed() bool {
	return o.IsCancelled || o.IsDelivered
}

// OrderTotals holds the price breakdown frozen at checkout, in the smallest
// currency unit.
type OrderTotals struct {
	Items    int64
	Shipping int64
	Tax      int64
	Total    int64
}

// OrderLineItem mirrors a cart line at the time of checkout.
type OrderLineItem struct {
	ProductRef string
	Name       string
	ImagePath  string
	Quantity   int
	UnitPrice  int64
	Total      int64
	Metadata   map[string]any
}

// OrderContact stores the user contact snapshot used for notifications.
type OrderContact struct {
	Name  string
	Email string
}

// Address represents the shipping address frozen onto an order.
type Address struct {
	RecipientName string
	Line1         string
	Line2         string
	City          string
	State         string
	PostalCode    string
	Country       string
	PhoneNumber   string
}

// UserProfile captures the canonical projection of a Firebase Auth user.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	PhoneNumber string
	Roles       []string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductSummary holds the catalog fields the order flow snapshots from.
type ProductSummary struct {
	ID        string
	Name      string
	ImagePath string
	Price     int64
	InStock   int
	IsPublic  bool
	UpdatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
