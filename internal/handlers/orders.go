package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shopfusion/api/internal/domain"
	"github.com/shopfusion/api/internal/payments"
	"github.com/shopfusion/api/internal/platform/auth"
	"github.com/shopfusion/api/internal/platform/httpx"
	"github.com/shopfusion/api/internal/platform/pagination"
	"github.com/shopfusion/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

// OrderHandlers exposes the order lifecycle endpoints. Customers place,
// pay, and return their own orders; admins drive fulfillment, cancellation,
// and refunds.
type OrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	payments *payments.Manager
}

// NewOrderHandlers constructs a new OrderHandlers instance. The payments
// manager is optional; without it client-reported payments are trusted.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, pay *payments.Manager) *OrderHandlers {
	return &OrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: pay,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listAllOrders)
	r.Get("/mine", h.listMyOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/pay", h.payOrder)
	r.Put("/{orderID}/cancel", h.cancelOrder)
	r.Put("/{orderID}/status", h.setStatus)
	// Legacy clients used a second path for the same stage update.
	r.Put("/{orderID}/statusmessage", h.setStatus)
	r.Put("/{orderID}/return", h.requestReturn)
	r.Put("/{orderID}/returnStatus", h.setReturnStatus)
	r.Put("/{orderID}/refund-credited", h.markRefundCredited)
	r.Delete("/{orderID}", h.deleteOrder)
}

func (h *OrderHandlers) identity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *OrderHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := h.identity(ctx, w)
	if !ok {
		return nil, false
	}
	if !identity.HasAnyRole(auth.RoleAdmin, auth.RoleStaff) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "admin access required", http.StatusForbidden))
		return nil, false
	}
	return identity, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func (h *OrderHandlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

// Request shapes --------------------------------------------------------------

type createOrderRequest struct {
	Items           []createOrderItem    `json:"items"`
	ShippingAddress *addressPayload      `json:"shipping_address"`
	Contact         *orderContactPayload `json:"contact"`
	PaymentMethod   string               `json:"payment_method"`
	ShippingPrice   int64                `json:"shipping_price"`
	TaxPrice        int64                `json:"tax_price"`
	Metadata        map[string]any       `json:"metadata"`
}

type createOrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type payOrderRequest struct {
	PaymentResult map[string]any `json:"payment_result"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type setStatusRequest struct {
	Stage string `json:"stage"`
	Value bool   `json:"value"`
}

type requestReturnRequest struct {
	Reason string `json:"reason"`
}

type setReturnStatusRequest struct {
	Status string `json:"status"`
}

// Handlers --------------------------------------------------------------------

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	items := make([]services.NewOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.NewOrderItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			ImagePath: strings.TrimSpace(item.Image),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	cmd := services.CreateOrderCommand{
		UserID:          strings.TrimSpace(identity.UID),
		Items:           items,
		ShippingAddress: parseAddressPayload(req.ShippingAddress),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		Totals: services.OrderTotals{
			Shipping: req.ShippingPrice,
			Tax:      req.TaxPrice,
		},
		Metadata: cloneMap(req.Metadata),
	}
	if req.Contact != nil {
		cmd.Contact = &services.OrderContact{
			Name:  strings.TrimSpace(req.Contact.Name),
			Email: strings.TrimSpace(req.Contact.Email),
		}
	} else if email := strings.TrimSpace(identity.Email); email != "" {
		cmd.Contact = &services.OrderContact{Email: email}
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusCreated, order)
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}

	pager, ok := parsePagination(w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListOrders(ctx, strings.TrimSpace(identity.UID), pager)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeOrderListResponse(w, page)
}

func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	pager, ok := parsePagination(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		UserID:     strings.TrimSpace(query.Get("user_id")),
		Pagination: pager,
	}
	for name, dst := range map[string]**bool{
		"paid":      &filter.Paid,
		"cancelled": &filter.Cancelled,
		"delivered": &filter.Delivered,
	} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", name+" must be a boolean", http.StatusBadRequest))
			return
		}
		*dst = &value
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}
	filter.DateRange = dateRange

	if raw := strings.TrimSpace(query.Get("sort")); strings.EqualFold(raw, "asc") {
		filter.Sort = domain.SortAsc
	}

	page, err := h.orders.ListAllOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeOrderListResponse(w, page)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	cmd := services.GetOrderCommand{
		OrderID: orderID,
		Actor:   domain.ActorCustomer,
		UserID:  strings.TrimSpace(identity.UID),
	}
	if identity.HasAnyRole(auth.RoleAdmin, auth.RoleStaff) {
		cmd.Actor = domain.ActorAdmin
	}

	order, err := h.orders.GetOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusOK, order)
}

func (h *OrderHandlers) payOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req payOrderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: orderID,
		Actor:   domain.ActorCustomer,
		UserID:  strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	if h.payments != nil {
		intentID := paymentIntentID(req.PaymentResult)
		if intentID == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_result.id is required", http.StatusBadRequest))
			return
		}
		if _, err := h.payments.VerifyPayment(ctx, order.PaymentMethod, payments.VerifyRequest{
			IntentID:       intentID,
			ExpectedAmount: order.Totals.Total,
		}); err != nil {
			writePaymentError(ctx, w, err)
			return
		}
	}

	paid, err := h.orders.MarkPaid(ctx, services.MarkPaidCommand{
		OrderID:       orderID,
		ActorID:       strings.TrimSpace(identity.UID),
		PaymentResult: cloneMap(req.PaymentResult),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusOK, paid)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderBodySize)
	switch {
	case err == nil:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// Cancellation reason is optional.
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cancelled, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.UID),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusOK, cancelled)
}

func (h *OrderHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req setStatusRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	stage, ok := parseFulfillmentStage(req.Stage)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stage must be one of packing, dispatched, out_for_delivery, delivered", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SetFulfillment(ctx, services.SetFulfillmentCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.UID),
		Stage:   stage,
		Value:   req.Value,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusOK, order)
}

func (h *OrderHandlers) requestReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req requestReturnRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.RequestReturn(ctx, services.RequestReturnCommand{
		OrderID: orderID,
		UserID:  strings.TrimSpace(identity.UID),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusOK, order)
}

func (h *OrderHandlers) setReturnStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req setReturnStatusRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	status, ok := parseReturnStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be Approved or Rejected", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SetReturnStatus(ctx, services.SetReturnStatusCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.UID),
		Status:  status,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusOK, order)
}

func (h *OrderHandlers) markRefundCredited(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: orderID,
		Actor:   domain.ActorAdmin,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	// Push the money back through the PSP before recording the credit.
	if h.payments != nil {
		if intentID := paymentIntentID(order.PaymentResult); intentID != "" {
			if _, err := h.payments.Refund(ctx, order.PaymentMethod, payments.RefundRequest{
				IntentID:       intentID,
				Reason:         "requested_by_customer",
				IdempotencyKey: "refund-" + order.ID,
			}); err != nil {
				writePaymentError(ctx, w, err)
				return
			}
		}
	}

	credited, err := h.orders.MarkRefundCredited(ctx, services.MarkRefundCreditedCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.writeOrder(w, http.StatusOK, credited)
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(ctx, services.DeleteOrderCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.UID),
	}); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Parsing helpers -------------------------------------------------------------

func parsePagination(w http.ResponseWriter, r *http.Request) (services.Pagination, bool) {
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		switch {
		case errors.Is(err, pagination.ErrInvalidPageSize):
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
		case errors.Is(err, pagination.ErrInvalidPageToken):
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "page_token is not a valid cursor", http.StatusBadRequest))
		default:
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "invalid pagination parameters", http.StatusBadRequest))
		}
		return services.Pagination{}, false
	}
	return services.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	}, true
}

func parseFulfillmentStage(raw string) (domain.FulfillmentStage, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "packing", "ispacking":
		return domain.StagePacking, true
	case "dispatched", "isdispatched":
		return domain.StageDispatched, true
	case "out_for_delivery", "outfordelivery":
		return domain.StageOutForDelivery, true
	case "delivered", "isdelivered":
		return domain.StageDelivered, true
	default:
		return "", false
	}
}

func parseReturnStatus(raw string) (domain.ReturnStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return domain.ReturnStatusApproved, true
	case "rejected":
		return domain.ReturnStatusRejected, true
	default:
		return "", false
	}
}

func paymentIntentID(result map[string]any) string {
	if len(result) == 0 {
		return ""
	}
	if value, ok := result["id"].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// Response shapes -------------------------------------------------------------

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Total       int64  `json:"total"`
	IsPaid      bool   `json:"is_paid"`
	IsDelivered bool   `json:"is_delivered"`
	IsCancelled bool   `json:"is_cancelled"`
	CreatedAt   string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string               `json:"id"`
	OrderNumber     string               `json:"order_number"`
	UserID          string               `json:"user_id"`
	Items           []orderItemPayload   `json:"items"`
	ShippingAddress *addressPayload      `json:"shipping_address,omitempty"`
	Contact         *orderContactPayload `json:"contact,omitempty"`
	PaymentMethod   string               `json:"payment_method,omitempty"`
	PaymentResult   map[string]any       `json:"payment_result,omitempty"`
	Totals          orderTotalsPayload   `json:"totals"`

	IsPaid           bool   `json:"is_paid"`
	PaidAt           string `json:"paid_at,omitempty"`
	IsPacking        bool   `json:"is_packing"`
	PackingAt        string `json:"packing_at,omitempty"`
	IsDispatched     bool   `json:"is_dispatched"`
	DispatchedAt     string `json:"dispatched_at,omitempty"`
	OutForDelivery   bool   `json:"out_for_delivery"`
	OutForDeliveryAt string `json:"out_for_delivery_at,omitempty"`
	IsDelivered      bool   `json:"is_delivered"`
	DeliveredAt      string `json:"delivered_at,omitempty"`

	IsCancelled bool   `json:"is_cancelled"`
	CancelledBy string `json:"cancelled_by,omitempty"`
	CancelledAt string `json:"cancelled_at,omitempty"`

	ReturnRequested bool   `json:"return_requested"`
	ReturnReason    string `json:"return_reason,omitempty"`
	ReturnStatus    string `json:"return_status,omitempty"`
	ReturnedAt      string `json:"returned_at,omitempty"`

	RefundCredited   bool   `json:"refund_credited"`
	RefundCreditedAt string `json:"refund_credited_at,omitempty"`
	RefundEligibleAt string `json:"refund_eligible_at,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

type orderTotalsPayload struct {
	Items    int64 `json:"items"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

type orderItemPayload struct {
	ProductRef string `json:"product_ref"`
	Name       string `json:"name"`
	Image      string `json:"image,omitempty"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Total      int64  `json:"total"`
}

type orderContactPayload struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func writeOrderListResponse(w http.ResponseWriter, page domain.CursorPage[services.Order]) {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          strings.TrimSpace(order.ID),
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		Total:       order.Totals.Total,
		IsPaid:      order.IsPaid,
		IsDelivered: order.IsDelivered,
		IsCancelled: order.IsCancelled,
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func (h *OrderHandlers) writeOrder(w http.ResponseWriter, status int, order services.Order) {
	payload := buildOrderPayload(order)
	if h.orders != nil {
		payload.RefundEligibleAt = formatTime(pointerTime(h.orders.RefundEligibleAt(order)))
	}
	writeJSONResponse(w, status, orderResponse{Order: payload})
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:            strings.TrimSpace(order.ID),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserID:        strings.TrimSpace(order.UserID),
		Items:         make([]orderItemPayload, 0, len(order.Items)),
		PaymentMethod: strings.TrimSpace(order.PaymentMethod),
		PaymentResult: cloneMap(order.PaymentResult),
		Totals: orderTotalsPayload{
			Items:    order.Totals.Items,
			Shipping: order.Totals.Shipping,
			Tax:      order.Totals.Tax,
			Total:    order.Totals.Total,
		},

		IsPaid:           order.IsPaid,
		PaidAt:           formatTime(pointerTime(order.PaidAt)),
		IsPacking:        order.IsPacking,
		PackingAt:        formatTime(pointerTime(order.PackingAt)),
		IsDispatched:     order.IsDispatched,
		DispatchedAt:     formatTime(pointerTime(order.DispatchedAt)),
		OutForDelivery:   order.OutForDelivery,
		OutForDeliveryAt: formatTime(pointerTime(order.OutForDeliveryAt)),
		IsDelivered:      order.IsDelivered,
		DeliveredAt:      formatTime(pointerTime(order.DeliveredAt)),

		IsCancelled: order.IsCancelled,
		CancelledBy: strings.TrimSpace(string(order.CancelledBy)),
		CancelledAt: formatTime(pointerTime(order.CancelledAt)),

		ReturnRequested: order.ReturnRequested,
		ReturnReason:    strings.TrimSpace(order.ReturnReason),
		ReturnStatus:    strings.TrimSpace(string(order.ReturnStatus)),
		ReturnedAt:      formatTime(pointerTime(order.ReturnedAt)),

		RefundCredited:   order.RefundCredited,
		RefundCreditedAt: formatTime(pointerTime(order.RefundCreditedAt)),

		Metadata:  cloneMap(order.Metadata),
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductRef: strings.TrimSpace(item.ProductRef),
			Name:       strings.TrimSpace(item.Name),
			Image:      strings.TrimSpace(item.ImagePath),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		})
	}

	if order.ShippingAddress != nil {
		addr := buildAddressPayload(*order.ShippingAddress)
		payload.ShippingAddress = &addr
	}
	if order.Contact != nil {
		payload.Contact = &orderContactPayload{
			Name:  strings.TrimSpace(order.Contact.Name),
			Email: strings.TrimSpace(order.Contact.Email),
		}
	}

	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var denial *services.GuardDenialError
	switch {
	case errors.As(err, &denial):
		httpx.WriteError(ctx, w, httpx.NewError(string(denial.Reason), denial.Message, http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payments.ErrPaymentNotSettled), errors.Is(err, payments.ErrPaymentMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_verified", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, payments.ErrUnsupportedProvider):
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_unsupported", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusBadGateway))
	}
}
