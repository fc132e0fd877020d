package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	domain "github.com/shopfusion/api/internal/domain"
	"github.com/shopfusion/api/internal/repositories"
)

type fakeRepoError struct {
	msg      string
	notFound bool
	conflict bool
}

func (e *fakeRepoError) Error() string       { return e.msg }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return false }

var _ repositories.RepositoryError = (*fakeRepoError)(nil)

// memoryOrderRepo mimics the Firestore repository including update-time
// preconditions: updates against a stale revision fail with a conflict.
type memoryOrderRepo struct {
	orders map[string]domain.Order
	seq    int

	// conflictsBeforeUpdate injects N spurious conflicts per order before
	// updates start succeeding.
	conflictsBeforeUpdate map[string]int
	updateErr             map[string]error
	updateCalls           int
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:                map[string]domain.Order{},
		conflictsBeforeUpdate: map[string]int{},
		updateErr:             map[string]error{},
	}
}

func (r *memoryOrderRepo) nextRevision() time.Time {
	r.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, r.seq, time.UTC)
}

func (r *memoryOrderRepo) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if _, ok := r.orders[order.ID]; ok {
		return domain.Order{}, &fakeRepoError{msg: "already exists", conflict: true}
	}
	order.Revision = r.nextRevision()
	r.orders[order.ID] = order
	return order, nil
}

func (r *memoryOrderRepo) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	r.updateCalls++
	if err, ok := r.updateErr[order.ID]; ok && err != nil {
		return domain.Order{}, err
	}
	stored, ok := r.orders[order.ID]
	if !ok {
		return domain.Order{}, &fakeRepoError{msg: "missing", notFound: true}
	}
	if remaining := r.conflictsBeforeUpdate[order.ID]; remaining > 0 {
		r.conflictsBeforeUpdate[order.ID] = remaining - 1
		return domain.Order{}, &fakeRepoError{msg: "injected conflict", conflict: true}
	}
	if !stored.Revision.Equal(order.Revision) {
		return domain.Order{}, &fakeRepoError{msg: "stale revision", conflict: true}
	}
	order.Revision = r.nextRevision()
	r.orders[order.ID] = order
	return order, nil
}

func (r *memoryOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, &fakeRepoError{msg: "missing", notFound: true}
	}
	return order, nil
}

func (r *memoryOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	var items []domain.Order
	for _, order := range r.orders {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if filter.Paid != nil && order.IsPaid != *filter.Paid {
			continue
		}
		if filter.Cancelled != nil && order.IsCancelled != *filter.Cancelled {
			continue
		}
		items = append(items, order)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

func (r *memoryOrderRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	var items []domain.Order
	for _, order := range r.orders {
		if order.IsPaid || order.IsCancelled {
			continue
		}
		if order.CreatedAt.After(cutoff) {
			continue
		}
		items = append(items, order)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *memoryOrderRepo) Delete(ctx context.Context, orderID string) error {
	if _, ok := r.orders[orderID]; !ok {
		return &fakeRepoError{msg: "missing", notFound: true}
	}
	delete(r.orders, orderID)
	return nil
}

var _ repositories.OrderRepository = (*memoryOrderRepo)(nil)

type memoryCounterRepo struct {
	values map[string]int64
}

func (r *memoryCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r.values == nil {
		r.values = map[string]int64{}
	}
	if step <= 0 {
		step = 1
	}
	r.values[counterID] += step
	return r.values[counterID], nil
}

func (r *memoryCounterRepo) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type capturedEvents struct {
	events []OrderEvent
	err    error
}

func (c *capturedEvents) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) types() []string {
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type capturedNotifications struct {
	intents []NotificationIntent
	err     error
}

func (c *capturedNotifications) Dispatch(ctx context.Context, intent NotificationIntent) error {
	if c.err != nil {
		return c.err
	}
	c.intents = append(c.intents, intent)
	return nil
}

type stubUserRepo struct {
	profiles map[string]domain.UserProfile
}

func (r *stubUserRepo) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	profile, ok := r.profiles[userID]
	if !ok {
		return domain.UserProfile{}, &fakeRepoError{msg: "missing", notFound: true}
	}
	return profile, nil
}

func (r *stubUserRepo) UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	return profile, nil
}

type orderFixture struct {
	svc      OrderService
	repo     *memoryOrderRepo
	events   *capturedEvents
	notices  *capturedNotifications
	now      time.Time
	setClock func(time.Time)
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	repo := newMemoryOrderRepo()
	events := &capturedEvents{}
	notices := &capturedNotifications{}
	fx := &orderFixture{
		repo:    repo,
		events:  events,
		notices: notices,
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.setClock = func(ts time.Time) { fx.now = ts }

	users := &stubUserRepo{profiles: map[string]domain.UserProfile{
		"user-1": {ID: "user-1", DisplayName: "Ada Lovelace", Email: "ada@example.com"},
	}}

	idSeq := 0
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:   repo,
		Users:    users,
		Counters: &memoryCounterRepo{},
		Clock:    func() time.Time { return fx.now },
		IDGenerator: func() string {
			idSeq++
			return fmt.Sprintf("%026d", idSeq)
		},
		Events:            events,
		Notifier:          notices,
		CancelTimeout:     15 * time.Minute,
		RefundGraceWindow: 72 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	fx.svc = svc
	return fx
}

func (fx *orderFixture) placeOrder(t *testing.T) Order {
	t.Helper()
	order, err := fx.svc.CreateOrder(context.Background(), CreateOrderCommand{
		UserID: "user-1",
		Items: []NewOrderItem{
			{ProductID: "prod-1", Name: "Walnut desk organiser", Quantity: 2, UnitPrice: 300},
			{ProductID: "prod-2", Name: "Brass bookend", Quantity: 1, UnitPrice: 400},
		},
		PaymentMethod: "stripe",
		Totals:        OrderTotals{Tax: 180},
		Contact:       &OrderContact{Name: "Ada Lovelace", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func (fx *orderFixture) deliverOrder(t *testing.T, orderID string) Order {
	t.Helper()
	ctx := context.Background()
	if _, err := fx.svc.MarkPaid(ctx, MarkPaidCommand{OrderID: orderID, ActorID: "user-1"}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	var order Order
	var err error
	for _, stage := range domain.FulfillmentStages {
		order, err = fx.svc.SetFulfillment(ctx, SetFulfillmentCommand{
			OrderID: orderID,
			ActorID: "admin-1",
			Stage:   stage,
			Value:   true,
		})
		if err != nil {
			t.Fatalf("SetFulfillment(%s): %v", stage, err)
		}
	}
	return order
}

func TestCreateOrderComputesTotals(t *testing.T) {
	fx := newOrderFixture(t)

	order := fx.placeOrder(t)

	if order.Totals.Items != 1000 {
		t.Fatalf("expected items total 1000, got %d", order.Totals.Items)
	}
	if order.Totals.Tax != 180 {
		t.Fatalf("expected tax 180, got %d", order.Totals.Tax)
	}
	if order.Totals.Total != 1180 {
		t.Fatalf("expected grand total 1180, got %d", order.Totals.Total)
	}
	if !strings.HasPrefix(order.OrderNumber, "SF-2024-") {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if !strings.HasPrefix(order.ID, "ord_") {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if got := fx.events.types(); len(got) != 1 || got[0] != orderEventCreated {
		t.Fatalf("unexpected events %v", got)
	}
	if len(fx.notices.intents) != 1 || fx.notices.intents[0].Kind != NotificationOrderPlaced {
		t.Fatalf("unexpected notifications %+v", fx.notices.intents)
	}
	if fx.notices.intents[0].RecipientEmail != "ada@example.com" {
		t.Fatalf("unexpected recipient %s", fx.notices.intents[0].RecipientEmail)
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	fx := newOrderFixture(t)
	_, err := fx.svc.CreateOrder(context.Background(), CreateOrderCommand{UserID: "user-1"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestMarkPaidIsNotRepeatable(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	paid, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{
		OrderID:       order.ID,
		ActorID:       "user-1",
		PaymentResult: map[string]any{"id": "pi_123", "status": "succeeded"},
	})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if !paid.IsPaid || paid.PaidAt == nil {
		t.Fatalf("expected order to be paid with timestamp, got %+v", paid)
	}

	_, err = fx.svc.MarkPaid(context.Background(), MarkPaidCommand{OrderID: order.ID, ActorID: "user-1"})
	assertDenial(t, err, DenialAlreadyPaid)
}

func TestMarkPaidToleratesReplayedReceipt(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	receipt := map[string]any{"id": "pi_123", "status": "succeeded"}
	paid, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{
		OrderID:       order.ID,
		ActorID:       "user-1",
		PaymentResult: receipt,
	})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	firstPaidAt := paid.PaidAt

	replayed, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{
		OrderID:       order.ID,
		ActorID:       "user-1",
		PaymentResult: map[string]any{"id": "pi_123", "status": "succeeded"},
	})
	if err != nil {
		t.Fatalf("replayed MarkPaid: %v", err)
	}
	if !replayed.IsPaid {
		t.Fatalf("expected replay to return the paid order, got %+v", replayed)
	}
	if replayed.PaidAt == nil || !replayed.PaidAt.Equal(*firstPaidAt) {
		t.Fatalf("expected paidAt unchanged by replay, got %v want %v", replayed.PaidAt, firstPaidAt)
	}

	// A different receipt for an already paid order is still refused.
	_, err = fx.svc.MarkPaid(context.Background(), MarkPaidCommand{
		OrderID:       order.ID,
		ActorID:       "user-1",
		PaymentResult: map[string]any{"id": "pi_999"},
	})
	assertDenial(t, err, DenialAlreadyPaid)
}

func TestCancelRefusesPaidOrders(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	if _, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{OrderID: order.ID}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	_, err := fx.svc.Cancel(context.Background(), CancelOrderCommand{OrderID: order.ID, ActorID: "admin-1"})
	assertDenial(t, err, DenialCannotCancelPaid)
}

func TestAdminCancelRecordsParty(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	cancelled, err := fx.svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: order.ID,
		ActorID: "admin-1",
		Reason:  "customer request",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled.IsCancelled || cancelled.CancelledBy != domain.CancelledByAdmin {
		t.Fatalf("expected admin cancellation, got %+v", cancelled)
	}
	if cancelled.Metadata["cancelReason"] != "customer request" {
		t.Fatalf("expected cancel reason recorded, got %v", cancelled.Metadata)
	}

	_, err = fx.svc.Cancel(context.Background(), CancelOrderCommand{OrderID: order.ID, ActorID: "admin-1"})
	assertDenial(t, err, DenialAlreadyCancelled)
}

func TestGetOrderAutoCancelsExpired(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	fx.setClock(fx.now.Add(16 * time.Minute))

	got, err := fx.svc.GetOrder(context.Background(), GetOrderCommand{
		OrderID: order.ID,
		Actor:   domain.ActorCustomer,
		UserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !got.IsCancelled || got.CancelledBy != domain.CancelledBySystem {
		t.Fatalf("expected system cancellation, got %+v", got)
	}
	if len(fx.notices.intents) != 2 || fx.notices.intents[1].Kind != NotificationOrderCancelled {
		t.Fatalf("expected cancellation notification, got %+v", fx.notices.intents)
	}
}

func TestGetOrderKeepsFreshOrdersPending(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	// Exactly at the window boundary the order is still payable.
	fx.setClock(fx.now.Add(15 * time.Minute))

	got, err := fx.svc.GetOrder(context.Background(), GetOrderCommand{
		OrderID: order.ID,
		Actor:   domain.ActorCustomer,
		UserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.IsCancelled {
		t.Fatalf("expected order to stay pending at the boundary")
	}
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	_, err := fx.svc.GetOrder(context.Background(), GetOrderCommand{
		OrderID: order.ID,
		Actor:   domain.ActorCustomer,
		UserID:  "someone-else",
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found for foreign order, got %v", err)
	}
}

func TestCancelExpiredIsolatesFailures(t *testing.T) {
	fx := newOrderFixture(t)
	first := fx.placeOrder(t)
	second := fx.placeOrder(t)
	third := fx.placeOrder(t)

	// The second order persistently fails to update.
	fx.repo.updateErr[second.ID] = errors.New("backend down")

	fx.setClock(fx.now.Add(time.Hour))

	cancelled, err := fx.svc.CancelExpired(context.Background(), 10)
	if err != nil {
		t.Fatalf("CancelExpired: %v", err)
	}
	if cancelled != 2 {
		t.Fatalf("expected 2 cancellations, got %d", cancelled)
	}
	for _, id := range []string{first.ID, third.ID} {
		stored := fx.repo.orders[id]
		if !stored.IsCancelled || stored.CancelledBy != domain.CancelledBySystem {
			t.Fatalf("expected %s cancelled by system, got %+v", id, stored)
		}
	}
	if fx.repo.orders[second.ID].IsCancelled {
		t.Fatalf("expected failing order to remain pending")
	}
}

func TestCancelExpiredSkipsPaid(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)
	if _, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{OrderID: order.ID}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	fx.setClock(fx.now.Add(time.Hour))

	cancelled, err := fx.svc.CancelExpired(context.Background(), 10)
	if err != nil {
		t.Fatalf("CancelExpired: %v", err)
	}
	if cancelled != 0 {
		t.Fatalf("expected no cancellations, got %d", cancelled)
	}
}

func TestFulfillmentProgressionAndNotifications(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)
	if _, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{OrderID: order.ID}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	_, err := fx.svc.SetFulfillment(context.Background(), SetFulfillmentCommand{
		OrderID: order.ID, Stage: domain.StageDispatched, Value: true,
	})
	assertDenial(t, err, DenialOutOfOrder)

	packed, err := fx.svc.SetFulfillment(context.Background(), SetFulfillmentCommand{
		OrderID: order.ID, Stage: domain.StagePacking, Value: true,
	})
	if err != nil {
		t.Fatalf("SetFulfillment packing: %v", err)
	}
	if !packed.IsPacking || packed.PackingAt == nil {
		t.Fatalf("expected packing flag and timestamp, got %+v", packed)
	}

	last := fx.notices.intents[len(fx.notices.intents)-1]
	if last.Kind != NotificationOrderStatus || last.StatusPhrase != "being packed" {
		t.Fatalf("expected 'being packed' notification, got %+v", last)
	}

	// Clearing a stage notifies nobody.
	before := len(fx.notices.intents)
	if _, err := fx.svc.SetFulfillment(context.Background(), SetFulfillmentCommand{
		OrderID: order.ID, Stage: domain.StagePacking, Value: false,
	}); err != nil {
		t.Fatalf("SetFulfillment clear: %v", err)
	}
	if len(fx.notices.intents) != before {
		t.Fatalf("expected no notification for clearing a stage")
	}
}

func TestDeliveredOrderIsTerminalForFulfillment(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)
	delivered := fx.deliverOrder(t, order.ID)

	if !delivered.IsDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("expected delivered order, got %+v", delivered)
	}

	last := fx.notices.intents[len(fx.notices.intents)-1]
	if last.StatusPhrase != "delivered" {
		t.Fatalf("expected 'delivered' phrase, got %q", last.StatusPhrase)
	}

	_, err := fx.svc.SetFulfillment(context.Background(), SetFulfillmentCommand{
		OrderID: order.ID, Stage: domain.StageOutForDelivery, Value: false,
	})
	assertDenial(t, err, DenialAlreadyDelivered)
}

func TestRequestReturnPreservesOriginalReason(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)
	fx.deliverOrder(t, order.ID)

	returned, err := fx.svc.RequestReturn(context.Background(), RequestReturnCommand{
		OrderID: order.ID,
		UserID:  "user-1",
		Reason:  "arrived damaged",
	})
	if err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	if !returned.ReturnRequested || returned.ReturnStatus != domain.ReturnStatusPending {
		t.Fatalf("expected pending return, got %+v", returned)
	}

	_, err = fx.svc.RequestReturn(context.Background(), RequestReturnCommand{
		OrderID: order.ID,
		UserID:  "user-1",
		Reason:  "changed my mind",
	})
	assertDenial(t, err, DenialAlreadyRequested)

	if fx.repo.orders[order.ID].ReturnReason != "arrived damaged" {
		t.Fatalf("expected original reason preserved, got %q", fx.repo.orders[order.ID].ReturnReason)
	}
}

func TestReturnDecisionAndRefundFlow(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)
	fx.deliverOrder(t, order.ID)
	ctx := context.Background()

	if _, err := fx.svc.RequestReturn(ctx, RequestReturnCommand{
		OrderID: order.ID, UserID: "user-1", Reason: "arrived damaged",
	}); err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}

	approved, err := fx.svc.SetReturnStatus(ctx, SetReturnStatusCommand{
		OrderID: order.ID, ActorID: "admin-1", Status: domain.ReturnStatusApproved,
	})
	if err != nil {
		t.Fatalf("SetReturnStatus approve: %v", err)
	}
	if approved.ReturnStatus != domain.ReturnStatusApproved {
		t.Fatalf("expected approved, got %s", approved.ReturnStatus)
	}
	last := fx.notices.intents[len(fx.notices.intents)-1]
	if last.Kind != NotificationReturnOutcome || last.StatusPhrase != "approved" {
		t.Fatalf("expected approval notification, got %+v", last)
	}

	// The decision can be flipped before the refund lands.
	if _, err := fx.svc.SetReturnStatus(ctx, SetReturnStatusCommand{
		OrderID: order.ID, ActorID: "admin-1", Status: domain.ReturnStatusRejected,
	}); err != nil {
		t.Fatalf("SetReturnStatus flip: %v", err)
	}
	if _, err := fx.svc.SetReturnStatus(ctx, SetReturnStatusCommand{
		OrderID: order.ID, ActorID: "admin-1", Status: domain.ReturnStatusApproved,
	}); err != nil {
		t.Fatalf("SetReturnStatus flip back: %v", err)
	}

	credited, err := fx.svc.MarkRefundCredited(ctx, MarkRefundCreditedCommand{
		OrderID: order.ID, ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("MarkRefundCredited: %v", err)
	}
	if !credited.RefundCredited || credited.RefundCreditedAt == nil {
		t.Fatalf("expected refund credited, got %+v", credited)
	}

	_, err = fx.svc.MarkRefundCredited(ctx, MarkRefundCreditedCommand{OrderID: order.ID})
	assertDenial(t, err, DenialAlreadyCredited)

	_, err = fx.svc.SetReturnStatus(ctx, SetReturnStatusCommand{
		OrderID: order.ID, ActorID: "admin-1", Status: domain.ReturnStatusRejected,
	})
	assertDenial(t, err, DenialReturnStatusFinal)
}

func TestTransitionRetriesOnConflict(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	fx.repo.conflictsBeforeUpdate[order.ID] = 2

	paid, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{OrderID: order.ID})
	if err != nil {
		t.Fatalf("MarkPaid after conflicts: %v", err)
	}
	if !paid.IsPaid {
		t.Fatalf("expected paid order after retries")
	}
}

func TestTransitionGivesUpAfterBoundedRetries(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	fx.repo.conflictsBeforeUpdate[order.ID] = maxTransitionAttempts

	_, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{OrderID: order.ID})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected conflict after exhausted retries, got %v", err)
	}
}

func TestRefundEligibleAt(t *testing.T) {
	fx := newOrderFixture(t)
	returnedAt := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	order := Order{
		ReturnRequested: true,
		ReturnStatus:    domain.ReturnStatusApproved,
		ReturnedAt:      &returnedAt,
	}
	at := fx.svc.RefundEligibleAt(order)
	if at == nil {
		t.Fatalf("expected eligibility time")
	}
	if want := returnedAt.Add(72 * time.Hour); !at.Equal(want) {
		t.Fatalf("expected %s, got %s", want, at)
	}

	order.ReturnStatus = domain.ReturnStatusRejected
	if fx.svc.RefundEligibleAt(order) != nil {
		t.Fatalf("expected no eligibility for rejected return")
	}
}

func TestNotificationFailureDoesNotBlockTransition(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	fx.notices.err = errors.New("smtp down")

	paid, err := fx.svc.MarkPaid(context.Background(), MarkPaidCommand{OrderID: order.ID})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if !paid.IsPaid {
		t.Fatalf("expected payment to land despite mail failure")
	}
}

func TestOrderNeverCancelledAndDelivered(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)
	fx.deliverOrder(t, order.ID)

	_, err := fx.svc.Cancel(context.Background(), CancelOrderCommand{OrderID: order.ID, ActorID: "admin-1"})
	assertDenial(t, err, DenialCannotCancelPaid)

	fx.setClock(fx.now.Add(24 * time.Hour))
	cancelled, err := fx.svc.CancelExpired(context.Background(), 10)
	if err != nil {
		t.Fatalf("CancelExpired: %v", err)
	}
	if cancelled != 0 {
		t.Fatalf("expected delivered order to be ignored by the sweep")
	}

	stored := fx.repo.orders[order.ID]
	if stored.IsCancelled && stored.IsDelivered {
		t.Fatalf("order must never be cancelled and delivered at once")
	}
}

func TestDeleteOrder(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.placeOrder(t)

	if err := fx.svc.DeleteOrder(context.Background(), DeleteOrderCommand{OrderID: order.ID, ActorID: "admin-1"}); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if err := fx.svc.DeleteOrder(context.Background(), DeleteOrderCommand{OrderID: order.ID, ActorID: "admin-1"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestListOrdersScopedToUser(t *testing.T) {
	fx := newOrderFixture(t)
	fx.placeOrder(t)
	fx.placeOrder(t)

	page, err := fx.svc.ListOrders(context.Background(), "user-1", domain.Pagination{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(page.Items))
	}

	empty, err := fx.svc.ListOrders(context.Background(), "user-2", domain.Pagination{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Fatalf("expected no orders for other user, got %d", len(empty.Items))
	}
}
