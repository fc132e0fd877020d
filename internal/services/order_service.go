package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shopfusion/api/internal/domain"
	"github.com/shopfusion/api/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventPaid            = "order.paid"
	orderEventStatusChanged   = "order.status.changed"
	orderEventCancelled       = "order.cancelled"
	orderEventReturnRequested = "order.return.requested"
	orderEventReturnApproved  = "order.return.approved"
	orderEventReturnRejected  = "order.return.rejected"
	orderEventRefundCredited  = "order.refund.credited"

	orderIDPrefix = "ord_"

	// Conditional updates retry a bounded number of times before surfacing
	// the conflict to the caller.
	maxTransitionAttempts = 3
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates a lifecycle transition was refused.
	ErrOrderInvalidState = errors.New("order: invalid state transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type        string
	OrderID     string
	OrderNumber string
	UserID      string
	ActorID     string
	OccurredAt  time.Time
	Metadata    map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders            repositories.OrderRepository
	Users             repositories.UserRepository
	Products          repositories.ProductRepository
	Counters          repositories.CounterRepository
	UnitOfWork        repositories.UnitOfWork
	Clock             func() time.Time
	IDGenerator       func() string
	Events            OrderEventPublisher
	Notifier          NotificationDispatcher
	Logger            func(ctx context.Context, event string, fields map[string]any)
	CancelTimeout     time.Duration
	RefundGraceWindow time.Duration
}

type orderService struct {
	orders        repositories.OrderRepository
	users         repositories.UserRepository
	products      repositories.ProductRepository
	counters      repositories.CounterRepository
	unitOfWork    repositories.UnitOfWork
	clock         func() time.Time
	newID         func() string
	events        OrderEventPublisher
	notifier      NotificationDispatcher
	logger        func(context.Context, string, map[string]any)
	cancelTimeout time.Duration
	refundGrace   time.Duration
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.CancelTimeout <= 0 {
		return nil, errors.New("order service: cancel timeout must be positive")
	}
	if deps.RefundGraceWindow < 0 {
		return nil, errors.New("order service: refund grace window must not be negative")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		users:      deps.Users,
		products:   deps.Products,
		counters:   deps.Counters,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:         idGen,
		events:        deps.Events,
		notifier:      deps.Notifier,
		logger:        logger,
		cancelTimeout: deps.CancelTimeout,
		refundGrace:   deps.RefundGraceWindow,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}

	now := s.now()

	items, itemsTotal, err := s.buildLineItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	order := domain.Order{
		ID:            orderIDPrefix + s.newID(),
		UserID:        userID,
		Items:         items,
		PaymentMethod: strings.TrimSpace(cmd.PaymentMethod),
		Totals: domain.OrderTotals{
			Items:    itemsTotal,
			Shipping: cmd.Totals.Shipping,
			Tax:      cmd.Totals.Tax,
			Total:    itemsTotal + cmd.Totals.Shipping + cmd.Totals.Tax,
		},
		Metadata:  cloneMap(cmd.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cmd.ShippingAddress != nil {
		addr := *cmd.ShippingAddress
		order.ShippingAddress = &addr
	}
	if cmd.Contact != nil {
		contact := *cmd.Contact
		order.Contact = &contact
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	var saved domain.Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		var insertErr error
		saved, insertErr = s.orders.Insert(txCtx, order)
		if insertErr != nil {
			return s.mapRepositoryError(insertErr)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:        orderEventCreated,
		OrderID:     saved.ID,
		OrderNumber: saved.OrderNumber,
		UserID:      saved.UserID,
		ActorID:     saved.UserID,
		OccurredAt:  now,
		Metadata:    cloneMap(saved.Metadata),
	})
	s.notify(ctx, NotificationIntent{
		Kind:       NotificationOrderPlaced,
		Order:      saved,
		OccurredAt: now,
	})

	return saved, nil
}

// GetOrder returns one order scoped to the requesting actor. An unpaid order
// past the payment window is cancelled in place before being returned, so
// readers never observe an expired order as still pending.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if cmd.Actor != domain.ActorAdmin && order.UserID != strings.TrimSpace(cmd.UserID) {
		// Hide other users' orders entirely.
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}

	if guardCancelExpired(order, s.now(), s.cancelTimeout) == nil {
		cancelled, err := s.cancelAsSystem(ctx, order.ID)
		if err == nil {
			return cancelled, nil
		}
		s.logger(ctx, "order.autocancel.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) MarkPaid(ctx context.Context, cmd MarkPaidCommand) (Order, error) {
	return s.applyTransition(ctx, cmd.OrderID, func(order *domain.Order, now time.Time) (transitionEffect, error) {
		if replayedPaymentReceipt(*order, cmd.PaymentResult) {
			return transitionEffect{}, nil
		}
		if err := guardMarkPaid(*order); err != nil {
			return transitionEffect{}, err
		}
		order.IsPaid = true
		order.PaidAt = &now
		order.PaymentResult = cloneMap(cmd.PaymentResult)
		return transitionEffect{
			changed: true,
			events: []OrderEvent{{
				Type:       orderEventPaid,
				ActorID:    strings.TrimSpace(cmd.ActorID),
				OccurredAt: now,
			}},
			notifications: []NotificationIntent{{
				Kind:       NotificationOrderPaid,
				OccurredAt: now,
			}},
		}, nil
	})
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	reason := strings.TrimSpace(cmd.Reason)
	return s.applyTransition(ctx, cmd.OrderID, func(order *domain.Order, now time.Time) (transitionEffect, error) {
		if err := guardCancel(*order); err != nil {
			return transitionEffect{}, err
		}
		order.IsCancelled = true
		order.CancelledBy = domain.CancelledByAdmin
		order.CancelledAt = &now
		if reason != "" {
			order.Metadata = ensureMap(order.Metadata)
			order.Metadata["cancelReason"] = reason
		}
		metadata := map[string]any{"cancelledBy": string(domain.CancelledByAdmin)}
		if reason != "" {
			metadata["reason"] = reason
		}
		return transitionEffect{
			changed: true,
			events: []OrderEvent{{
				Type:       orderEventCancelled,
				ActorID:    strings.TrimSpace(cmd.ActorID),
				OccurredAt: now,
				Metadata:   metadata,
			}},
			notifications: []NotificationIntent{{
				Kind:        NotificationOrderCancelled,
				CancelledBy: domain.CancelledByAdmin,
				OccurredAt:  now,
			}},
		}, nil
	})
}

// CancelExpired sweeps unpaid orders older than the payment window. Failures
// on individual orders are logged and skipped so one bad document cannot stall
// the sweep. The number of orders cancelled is returned.
func (s *orderService) CancelExpired(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.cancelTimeout)
	expired, err := s.orders.ListExpired(ctx, cutoff, limit)
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}

	cancelled := 0
	for _, order := range expired {
		if _, err := s.cancelAsSystem(ctx, order.ID); err != nil {
			if errors.Is(err, ErrOrderInvalidState) {
				// Paid or cancelled since the listing; nothing to do.
				continue
			}
			s.logger(ctx, "order.sweep.cancel.failed", map[string]any{
				"order": order.ID,
				"error": err.Error(),
			})
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *orderService) cancelAsSystem(ctx context.Context, orderID string) (Order, error) {
	return s.applyTransition(ctx, orderID, func(order *domain.Order, now time.Time) (transitionEffect, error) {
		if err := guardCancelExpired(*order, now, s.cancelTimeout); err != nil {
			return transitionEffect{}, err
		}
		order.IsCancelled = true
		order.CancelledBy = domain.CancelledBySystem
		order.CancelledAt = &now
		return transitionEffect{
			changed: true,
			events: []OrderEvent{{
				Type:       orderEventCancelled,
				ActorID:    string(domain.ActorSystem),
				OccurredAt: now,
				Metadata:   map[string]any{"cancelledBy": string(domain.CancelledBySystem)},
			}},
			notifications: []NotificationIntent{{
				Kind:        NotificationOrderCancelled,
				CancelledBy: domain.CancelledBySystem,
				OccurredAt:  now,
			}},
		}, nil
	})
}

func (s *orderService) SetFulfillment(ctx context.Context, cmd SetFulfillmentCommand) (Order, error) {
	return s.applyTransition(ctx, cmd.OrderID, func(order *domain.Order, now time.Time) (transitionEffect, error) {
		if err := guardSetFulfillment(*order, cmd.Stage, cmd.Value); err != nil {
			return transitionEffect{}, err
		}
		if order.Stage(cmd.Stage) == cmd.Value {
			return transitionEffect{}, nil
		}

		setStageFlag(order, cmd.Stage, cmd.Value, now)

		effect := transitionEffect{
			changed: true,
			events: []OrderEvent{{
				Type:       orderEventStatusChanged,
				ActorID:    strings.TrimSpace(cmd.ActorID),
				OccurredAt: now,
				Metadata: map[string]any{
					"stage": string(cmd.Stage),
					"value": cmd.Value,
				},
			}},
		}
		// Clearing a stage is a correction, not news for the customer.
		if cmd.Value {
			effect.notifications = []NotificationIntent{{
				Kind:         NotificationOrderStatus,
				StatusPhrase: statusPhrase(cmd.Stage),
				OccurredAt:   now,
			}}
		}
		return effect, nil
	})
}

func (s *orderService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: return reason is required", ErrOrderInvalidInput)
	}
	return s.applyTransition(ctx, cmd.OrderID, func(order *domain.Order, now time.Time) (transitionEffect, error) {
		if userID == "" || order.UserID != userID {
			return transitionEffect{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, order.ID)
		}
		if err := guardRequestReturn(*order); err != nil {
			return transitionEffect{}, err
		}
		order.ReturnRequested = true
		order.ReturnReason = reason
		order.ReturnStatus = domain.ReturnStatusPending
		order.ReturnedAt = &now
		return transitionEffect{
			changed: true,
			events: []OrderEvent{{
				Type:       orderEventReturnRequested,
				ActorID:    userID,
				OccurredAt: now,
				Metadata:   map[string]any{"reason": reason},
			}},
			notifications: []NotificationIntent{{
				Kind:       NotificationReturnRequest,
				OccurredAt: now,
			}},
		}, nil
	})
}

func (s *orderService) SetReturnStatus(ctx context.Context, cmd SetReturnStatusCommand) (Order, error) {
	return s.applyTransition(ctx, cmd.OrderID, func(order *domain.Order, now time.Time) (transitionEffect, error) {
		if err := guardSetReturnStatus(*order, cmd.Status); err != nil {
			return transitionEffect{}, err
		}
		if order.ReturnStatus == cmd.Status {
			return transitionEffect{}, nil
		}
		order.ReturnStatus = cmd.Status

		eventType := orderEventReturnApproved
		phrase := "approved"
		if cmd.Status == domain.ReturnStatusRejected {
			eventType = orderEventReturnRejected
			phrase = "rejected"
		}
		return transitionEffect{
			changed: true,
			events: []OrderEvent{{
				Type:       eventType,
				ActorID:    strings.TrimSpace(cmd.ActorID),
				OccurredAt: now,
			}},
			notifications: []NotificationIntent{{
				Kind:         NotificationReturnOutcome,
				StatusPhrase: phrase,
				ReturnStatus: cmd.Status,
				OccurredAt:   now,
			}},
		}, nil
	})
}

func (s *orderService) MarkRefundCredited(ctx context.Context, cmd MarkRefundCreditedCommand) (Order, error) {
	return s.applyTransition(ctx, cmd.OrderID, func(order *domain.Order, now time.Time) (transitionEffect, error) {
		if err := guardMarkRefundCredited(*order); err != nil {
			return transitionEffect{}, err
		}
		order.RefundCredited = true
		order.RefundCreditedAt = &now
		return transitionEffect{
			changed: true,
			events: []OrderEvent{{
				Type:       orderEventRefundCredited,
				ActorID:    strings.TrimSpace(cmd.ActorID),
				OccurredAt: now,
			}},
			notifications: []NotificationIntent{{
				Kind:       NotificationRefundCredited,
				OccurredAt: now,
			}},
		}, nil
	})
}

func (s *orderService) DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// RefundEligibleAt derives when an approved refund becomes payable: the
// return timestamp plus the configured grace window. Orders without an
// approved return have no eligibility time.
func (s *orderService) RefundEligibleAt(order Order) *time.Time {
	if !order.ReturnRequested || order.ReturnStatus != domain.ReturnStatusApproved || order.ReturnedAt == nil {
		return nil
	}
	at := order.ReturnedAt.Add(s.refundGrace).UTC()
	return &at
}

// transitionEffect describes the side effects a mutation produced. Events and
// notifications fire only after the new state persisted.
type transitionEffect struct {
	changed       bool
	events        []OrderEvent
	notifications []NotificationIntent
}

// applyTransition loads the order, applies the mutation, and persists the
// result keyed on the loaded revision. Concurrent writers surface as conflicts
// and the whole sequence retries against fresh state.
func (s *orderService) applyTransition(ctx context.Context, orderID string, mutate func(order *domain.Order, now time.Time) (transitionEffect, error)) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}

		now := s.now()
		effect, err := mutate(&order, now)
		if err != nil {
			return Order{}, err
		}
		if !effect.changed {
			return order, nil
		}
		order.UpdatedAt = now

		saved, err := s.orders.Update(ctx, order)
		if err != nil {
			mapped := s.mapRepositoryError(err)
			if errors.Is(mapped, ErrOrderConflict) {
				lastErr = mapped
				continue
			}
			return Order{}, mapped
		}

		for _, event := range effect.events {
			event.OrderID = saved.ID
			event.OrderNumber = saved.OrderNumber
			event.UserID = saved.UserID
			s.publishEvent(ctx, event)
		}
		for _, intent := range effect.notifications {
			intent.Order = saved
			s.notify(ctx, intent)
		}
		return saved, nil
	}
	return Order{}, lastErr
}

func setStageFlag(order *domain.Order, stage domain.FulfillmentStage, value bool, now time.Time) {
	var at *time.Time
	if value {
		at = &now
	}
	switch stage {
	case domain.StagePacking:
		order.IsPacking = value
		order.PackingAt = at
	case domain.StageDispatched:
		order.IsDispatched = value
		order.DispatchedAt = at
	case domain.StageOutForDelivery:
		order.OutForDelivery = value
		order.OutForDeliveryAt = at
	case domain.StageDelivered:
		order.IsDelivered = value
		order.DeliveredAt = at
	}
}

// statusPhrase renders the customer-facing wording for a fulfillment stage.
func statusPhrase(stage domain.FulfillmentStage) string {
	switch stage {
	case domain.StagePacking:
		return "being packed"
	case domain.StageDispatched:
		return "dispatched"
	case domain.StageOutForDelivery:
		return "out for delivery"
	case domain.StageDelivered:
		return "delivered"
	default:
		return string(stage)
	}
}

func (s *orderService) buildLineItems(ctx context.Context, items []NewOrderItem) ([]domain.OrderLineItem, int64, error) {
	lines := make([]domain.OrderLineItem, 0, len(items))
	var total int64
	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, 0, fmt.Errorf("%w: item %d is missing a product reference", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: item %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		if item.UnitPrice < 0 {
			return nil, 0, fmt.Errorf("%w: item %d price must not be negative", ErrOrderInvalidInput, i)
		}

		line := domain.OrderLineItem{
			ProductRef: productID,
			Name:       strings.TrimSpace(item.Name),
			ImagePath:  strings.TrimSpace(item.ImagePath),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.UnitPrice * int64(item.Quantity),
		}
		if (line.Name == "" || line.ImagePath == "") && s.products != nil {
			if product, err := s.products.FindByID(ctx, productID); err == nil {
				if line.Name == "" {
					line.Name = product.Name
				}
				if line.ImagePath == "" {
					line.ImagePath = product.ImagePath
				}
			}
		}
		total += line.Total
		lines = append(lines, line)
	}
	return lines, total, nil
}

// resolveRecipient prefers the contact stored on the order and falls back to
// the user profile.
func (s *orderService) resolveRecipient(ctx context.Context, order domain.Order) (string, string) {
	if order.Contact != nil && strings.TrimSpace(order.Contact.Email) != "" {
		return strings.TrimSpace(order.Contact.Name), strings.TrimSpace(order.Contact.Email)
	}
	if s.users == nil {
		return "", ""
	}
	profile, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(profile.DisplayName), strings.TrimSpace(profile.Email)
}

// notify delivers a customer notification. Failures are logged and swallowed;
// the lifecycle outcome never depends on mail delivery.
func (s *orderService) notify(ctx context.Context, intent NotificationIntent) {
	if s.notifier == nil {
		return
	}
	if intent.RecipientEmail == "" {
		intent.RecipientName, intent.RecipientEmail = s.resolveRecipient(ctx, intent.Order)
	}
	if intent.RecipientEmail == "" {
		s.logger(ctx, "order.notification.skipped", map[string]any{
			"order": intent.Order.ID,
			"kind":  string(intent.Kind),
		})
		return
	}
	if err := s.notifier.Dispatch(ctx, intent); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"order": intent.Order.ID,
			"kind":  string(intent.Kind),
			"error": err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SF-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// replayedPaymentReceipt reports whether the incoming receipt matches the one
// already committed on a paid order. Replays return the stored order instead
// of tripping the already-paid guard.
func replayedPaymentReceipt(order domain.Order, result map[string]any) bool {
	if !order.IsPaid {
		return false
	}
	incoming, ok := result["id"].(string)
	if !ok || strings.TrimSpace(incoming) == "" {
		return false
	}
	committed, ok := order.PaymentResult["id"].(string)
	return ok && committed == incoming
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}
