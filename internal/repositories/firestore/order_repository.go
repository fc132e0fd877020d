package firestore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shopfusion/api/internal/domain"
	pfirestore "github.com/shopfusion/api/internal/platform/firestore"
	"github.com/shopfusion/api/internal/platform/pagination"
	"github.com/shopfusion/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order documents with optimistic concurrency on the
// Firestore update time. Every successful mutation returns the order with a
// refreshed Revision so callers can chain conditional updates.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc := encodeOrderDocument(order)
	result, err := r.base.Create(ctx, orderID, doc)
	if err != nil {
		return domain.Order{}, err
	}
	saved := decodeOrderDocument(orderID, doc, result.UpdateTime, result.UpdateTime)
	saved.Revision = result.UpdateTime
	return saved, nil
}

// Update replaces the persisted order state. The mutation is preconditioned on
// the Revision carried by the order; a stale revision surfaces as a conflict.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if order.Revision.IsZero() {
		return domain.Order{}, errors.New("order repository: order revision is required")
	}

	doc := encodeOrderDocument(order)
	result, err := r.base.Update(ctx, orderID, orderDocumentUpdates(doc), firestore.LastUpdateTime(order.Revision.UTC()))
	if err != nil {
		return domain.Order{}, err
	}

	saved := decodeOrderDocument(orderID, doc, order.CreatedAt, result.UpdateTime)
	saved.Revision = result.UpdateTime
	return saved, nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order := decodeOrderDocument(orderID, doc.Data, doc.CreateTime, doc.UpdateTime)
	order.Revision = doc.UpdateTime
	return order, nil
}

// List returns orders matching the filter ordered by creation time, newest first
// unless an ascending sort is requested.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	direction := firestore.Desc
	if filter.Sort == domain.SortAsc {
		direction = firestore.Asc
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	userID := strings.TrimSpace(filter.UserID)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("userUid", "==", userID)
		}
		if filter.Paid != nil {
			q = q.Where("isPaid", "==", *filter.Paid)
		}
		if filter.Cancelled != nil {
			q = q.Where("isCancelled", "==", *filter.Cancelled)
		}
		if filter.Delivered != nil {
			q = q.Where("isDelivered", "==", *filter.Delivered)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("createdAt", direction).OrderBy(firestore.DocumentID, direction)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		order := decodeOrderDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
		order.Revision = doc.UpdateTime
		items = append(items, order)
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// ListExpired returns unpaid, uncancelled orders created at or before the
// cutoff, oldest first. The sweeper drains these in bounded batches.
func (r *OrderRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff = cutoff.UTC()

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("isPaid", "==", false).
			Where("isCancelled", "==", false).
			Where("createdAt", "<=", cutoff).
			OrderBy("createdAt", firestore.Asc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := decodeOrderDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
		order.Revision = doc.UpdateTime
		orders = append(orders, order)
	}
	return orders, nil
}

// Delete removes the order document permanently.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Delete(ctx, orderID, firestore.Exists)
}

type orderDocument struct {
	OrderNumber      string               `firestore:"orderNumber"`
	UserRef          string               `firestore:"userRef"`
	UserUID          string               `firestore:"userUid"`
	Items            []orderItemDocument  `firestore:"orderItems"`
	ShippingAddress  *addressDocument     `firestore:"shippingAddress,omitempty"`
	Contact          *orderContactDoc     `firestore:"contact,omitempty"`
	PaymentMethod    string               `firestore:"paymentMethod"`
	PaymentResult    map[string]any       `firestore:"paymentResult,omitempty"`
	ItemsPrice       int64                `firestore:"itemsPrice"`
	ShippingPrice    int64                `firestore:"shippingPrice"`
	TaxPrice         int64                `firestore:"taxPrice"`
	TotalPrice       int64                `firestore:"totalPrice"`
	IsPaid           bool                 `firestore:"isPaid"`
	PaidAt           *time.Time           `firestore:"paidAt,omitempty"`
	IsPacking        bool                 `firestore:"isPacking"`
	PackingAt        *time.Time           `firestore:"packingAt,omitempty"`
	IsDispatched     bool                 `firestore:"isDispatched"`
	DispatchedAt     *time.Time           `firestore:"dispatchedAt,omitempty"`
	OutForDelivery   bool                 `firestore:"outForDelivery"`
	OutForDeliveryAt *time.Time           `firestore:"outForDeliveryAt,omitempty"`
	IsDelivered      bool                 `firestore:"isDelivered"`
	DeliveredAt      *time.Time           `firestore:"deliveredAt,omitempty"`
	IsCancelled      bool                 `firestore:"isCancelled"`
	CancelledBy      string               `firestore:"cancelledBy,omitempty"`
	CancelledAt      *time.Time           `firestore:"cancelledAt,omitempty"`
	ReturnRequested  bool                 `firestore:"returnRequested"`
	ReturnReason     string               `firestore:"returnReason,omitempty"`
	ReturnStatus     string               `firestore:"returnStatus,omitempty"`
	ReturnedAt       *time.Time           `firestore:"returnedAt,omitempty"`
	RefundCredited   bool                 `firestore:"refundCredited"`
	RefundCreditedAt *time.Time           `firestore:"refundCreditedAt,omitempty"`
	Metadata         map[string]any       `firestore:"metadata,omitempty"`
	CreatedAt        time.Time            `firestore:"createdAt"`
	UpdatedAt        time.Time            `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductRef string         `firestore:"product"`
	Name       string         `firestore:"name"`
	ImagePath  string         `firestore:"image,omitempty"`
	Quantity   int            `firestore:"qty"`
	UnitPrice  int64          `firestore:"price"`
	Total      int64          `firestore:"total"`
	Metadata   map[string]any `firestore:"metadata,omitempty"`
}

type orderContactDoc struct {
	Name  string `firestore:"name,omitempty"`
	Email string `firestore:"email,omitempty"`
}

type addressDocument struct {
	RecipientName string `firestore:"recipientName,omitempty"`
	Line1         string `firestore:"line1"`
	Line2         string `firestore:"line2,omitempty"`
	City          string `firestore:"city"`
	State         string `firestore:"state,omitempty"`
	PostalCode    string `firestore:"postalCode"`
	Country       string `firestore:"country"`
	PhoneNumber   string `firestore:"phoneNumber,omitempty"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:      strings.TrimSpace(order.OrderNumber),
		UserRef:          userDocPath(order.UserID),
		UserUID:          strings.TrimSpace(order.UserID),
		Items:            encodeOrderItems(order.Items),
		PaymentMethod:    strings.TrimSpace(order.PaymentMethod),
		PaymentResult:    cloneAnyMap(order.PaymentResult),
		ItemsPrice:       order.Totals.Items,
		ShippingPrice:    order.Totals.Shipping,
		TaxPrice:         order.Totals.Tax,
		TotalPrice:       order.Totals.Total,
		IsPaid:           order.IsPaid,
		PaidAt:           normalizeTimePointer(order.PaidAt),
		IsPacking:        order.IsPacking,
		PackingAt:        normalizeTimePointer(order.PackingAt),
		IsDispatched:     order.IsDispatched,
		DispatchedAt:     normalizeTimePointer(order.DispatchedAt),
		OutForDelivery:   order.OutForDelivery,
		OutForDeliveryAt: normalizeTimePointer(order.OutForDeliveryAt),
		IsDelivered:      order.IsDelivered,
		DeliveredAt:      normalizeTimePointer(order.DeliveredAt),
		IsCancelled:      order.IsCancelled,
		CancelledBy:      strings.TrimSpace(string(order.CancelledBy)),
		CancelledAt:      normalizeTimePointer(order.CancelledAt),
		ReturnRequested:  order.ReturnRequested,
		ReturnReason:     strings.TrimSpace(order.ReturnReason),
		ReturnStatus:     strings.TrimSpace(string(order.ReturnStatus)),
		ReturnedAt:       normalizeTimePointer(order.ReturnedAt),
		RefundCredited:   order.RefundCredited,
		RefundCreditedAt: normalizeTimePointer(order.RefundCreditedAt),
		Metadata:         cloneAnyMap(order.Metadata),
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
	}
	if order.ShippingAddress != nil {
		doc.ShippingAddress = encodeAddress(*order.ShippingAddress)
	}
	if order.Contact != nil && (order.Contact.Name != "" || order.Contact.Email != "") {
		doc.Contact = &orderContactDoc{
			Name:  strings.TrimSpace(order.Contact.Name),
			Email: strings.TrimSpace(order.Contact.Email),
		}
	}
	return doc
}

func decodeOrderDocument(id string, doc orderDocument, createdAt, updatedAt time.Time) domain.Order {
	order := domain.Order{
		ID:          strings.TrimSpace(id),
		OrderNumber: strings.TrimSpace(doc.OrderNumber),
		UserID:      extractUser(doc.UserRef, doc.UserUID),
		Items:       decodeOrderItems(doc.Items),
		Totals: domain.OrderTotals{
			Items:    doc.ItemsPrice,
			Shipping: doc.ShippingPrice,
			Tax:      doc.TaxPrice,
			Total:    doc.TotalPrice,
		},
		PaymentMethod:    strings.TrimSpace(doc.PaymentMethod),
		PaymentResult:    cloneAnyMap(doc.PaymentResult),
		IsPaid:           doc.IsPaid,
		PaidAt:           normalizeTimePointer(doc.PaidAt),
		IsPacking:        doc.IsPacking,
		PackingAt:        normalizeTimePointer(doc.PackingAt),
		IsDispatched:     doc.IsDispatched,
		DispatchedAt:     normalizeTimePointer(doc.DispatchedAt),
		OutForDelivery:   doc.OutForDelivery,
		OutForDeliveryAt: normalizeTimePointer(doc.OutForDeliveryAt),
		IsDelivered:      doc.IsDelivered,
		DeliveredAt:      normalizeTimePointer(doc.DeliveredAt),
		IsCancelled:      doc.IsCancelled,
		CancelledBy:      domain.CancelParty(strings.TrimSpace(doc.CancelledBy)),
		CancelledAt:      normalizeTimePointer(doc.CancelledAt),
		ReturnRequested:  doc.ReturnRequested,
		ReturnReason:     strings.TrimSpace(doc.ReturnReason),
		ReturnStatus:     domain.ReturnStatus(strings.TrimSpace(doc.ReturnStatus)),
		ReturnedAt:       normalizeTimePointer(doc.ReturnedAt),
		RefundCredited:   doc.RefundCredited,
		RefundCreditedAt: normalizeTimePointer(doc.RefundCreditedAt),
		Metadata:         cloneAnyMap(doc.Metadata),
		CreatedAt:        chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:        chooseTime(doc.UpdatedAt, updatedAt),
	}
	if doc.ShippingAddress != nil {
		addr := decodeAddress(*doc.ShippingAddress)
		order.ShippingAddress = &addr
	}
	if doc.Contact != nil {
		order.Contact = &domain.OrderContact{
			Name:  strings.TrimSpace(doc.Contact.Name),
			Email: strings.TrimSpace(doc.Contact.Email),
		}
	}
	return order
}

func encodeOrderItems(items []domain.OrderLineItem) []orderItemDocument {
	if len(items) == 0 {
		return nil
	}
	docs := make([]orderItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, orderItemDocument{
			ProductRef: strings.TrimSpace(item.ProductRef),
			Name:       strings.TrimSpace(item.Name),
			ImagePath:  strings.TrimSpace(item.ImagePath),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
			Metadata:   cloneAnyMap(item.Metadata),
		})
	}
	return docs
}

func decodeOrderItems(docs []orderItemDocument) []domain.OrderLineItem {
	if len(docs) == 0 {
		return nil
	}
	items := make([]domain.OrderLineItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.OrderLineItem{
			ProductRef: strings.TrimSpace(doc.ProductRef),
			Name:       strings.TrimSpace(doc.Name),
			ImagePath:  strings.TrimSpace(doc.ImagePath),
			Quantity:   doc.Quantity,
			UnitPrice:  doc.UnitPrice,
			Total:      doc.Total,
			Metadata:   cloneAnyMap(doc.Metadata),
		})
	}
	return items
}

func encodeAddress(addr domain.Address) *addressDocument {
	return &addressDocument{
		RecipientName: strings.TrimSpace(addr.RecipientName),
		Line1:         strings.TrimSpace(addr.Line1),
		Line2:         strings.TrimSpace(addr.Line2),
		City:          strings.TrimSpace(addr.City),
		State:         strings.TrimSpace(addr.State),
		PostalCode:    strings.TrimSpace(addr.PostalCode),
		Country:       strings.TrimSpace(addr.Country),
		PhoneNumber:   strings.TrimSpace(addr.PhoneNumber),
	}
}

func decodeAddress(doc addressDocument) domain.Address {
	return domain.Address{
		RecipientName: strings.TrimSpace(doc.RecipientName),
		Line1:         strings.TrimSpace(doc.Line1),
		Line2:         strings.TrimSpace(doc.Line2),
		City:          strings.TrimSpace(doc.City),
		State:         strings.TrimSpace(doc.State),
		PostalCode:    strings.TrimSpace(doc.PostalCode),
		Country:       strings.TrimSpace(doc.Country),
		PhoneNumber:   strings.TrimSpace(doc.PhoneNumber),
	}
}

// orderDocumentUpdates expands the document into field-level updates so the
// mutation can carry an update-time precondition.
func orderDocumentUpdates(doc orderDocument) []firestore.Update {
	return []firestore.Update{
		{Path: "orderNumber", Value: doc.OrderNumber},
		{Path: "userRef", Value: doc.UserRef},
		{Path: "userUid", Value: doc.UserUID},
		{Path: "orderItems", Value: doc.Items},
		{Path: "shippingAddress", Value: doc.ShippingAddress},
		{Path: "contact", Value: doc.Contact},
		{Path: "paymentMethod", Value: doc.PaymentMethod},
		{Path: "paymentResult", Value: doc.PaymentResult},
		{Path: "itemsPrice", Value: doc.ItemsPrice},
		{Path: "shippingPrice", Value: doc.ShippingPrice},
		{Path: "taxPrice", Value: doc.TaxPrice},
		{Path: "totalPrice", Value: doc.TotalPrice},
		{Path: "isPaid", Value: doc.IsPaid},
		{Path: "paidAt", Value: doc.PaidAt},
		{Path: "isPacking", Value: doc.IsPacking},
		{Path: "packingAt", Value: doc.PackingAt},
		{Path: "isDispatched", Value: doc.IsDispatched},
		{Path: "dispatchedAt", Value: doc.DispatchedAt},
		{Path: "outForDelivery", Value: doc.OutForDelivery},
		{Path: "outForDeliveryAt", Value: doc.OutForDeliveryAt},
		{Path: "isDelivered", Value: doc.IsDelivered},
		{Path: "deliveredAt", Value: doc.DeliveredAt},
		{Path: "isCancelled", Value: doc.IsCancelled},
		{Path: "cancelledBy", Value: doc.CancelledBy},
		{Path: "cancelledAt", Value: doc.CancelledAt},
		{Path: "returnRequested", Value: doc.ReturnRequested},
		{Path: "returnReason", Value: doc.ReturnReason},
		{Path: "returnStatus", Value: doc.ReturnStatus},
		{Path: "returnedAt", Value: doc.ReturnedAt},
		{Path: "refundCredited", Value: doc.RefundCredited},
		{Path: "refundCreditedAt", Value: doc.RefundCreditedAt},
		{Path: "metadata", Value: doc.Metadata},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
}

func cloneAnyMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}

func chooseTime(primary time.Time, fallback time.Time) time.Time {
	if !primary.IsZero() {
		return primary.UTC()
	}
	if !fallback.IsZero() {
		return fallback.UTC()
	}
	return time.Time{}
}

func normalizeTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	if value.IsZero() {
		return nil
	}
	ts := value.UTC()
	return &ts
}

func userDocPath(userID string) string {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "/users/") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "users/") {
		return "/" + trimmed
	}
	return "/users/" + trimmed
}

func extractUser(userRef string, userUID string) string {
	if trimmed := strings.TrimSpace(userUID); trimmed != "" {
		return trimmed
	}
	ref := strings.TrimSpace(userRef)
	ref = strings.TrimPrefix(ref, "/")
	const prefix = "users/"
	if strings.HasPrefix(ref, prefix) {
		return ref[len(prefix):]
	}
	return ref
}

func encodeOrderListToken(createdAt time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	rawTime, timeOK := cursor.StartAfter[0].(string)
	rawID, idOK := cursor.StartAfter[1].(string)
	if !timeOK || !idOK {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, rawID, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
