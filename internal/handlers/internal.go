package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopfusion/api/internal/platform/httpx"
	"github.com/shopfusion/api/internal/services"
)

const defaultSweepLimit = 100

// InternalHandlers exposes operational endpoints intended for schedulers and
// operators, not end users. Callers are expected to be gated by the internal
// route group's middleware.
type InternalHandlers struct {
	orders services.OrderService
}

// NewInternalHandlers constructs a new InternalHandlers instance.
func NewInternalHandlers(orders services.OrderService) *InternalHandlers {
	return &InternalHandlers{orders: orders}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders:sweep", h.sweepExpiredOrders)
}

type sweepResponse struct {
	Cancelled int `json:"cancelled"`
}

func (h *InternalHandlers) sweepExpiredOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	limit := defaultSweepLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	cancelled, err := h.orders.CancelExpired(ctx, limit)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sweepResponse{Cancelled: cancelled})
}
