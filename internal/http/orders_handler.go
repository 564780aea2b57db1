package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/order"
	"github.com/jyush98/jason-co-ecom-sub003/internal/repository"
)

// OrderService is implemented by *order.Service.
type OrderService interface {
	GetForUser(ctx context.Context, userID, number string) (*order.View, error)
	ListForUser(ctx context.Context, userID string) ([]*order.View, error)
	Recent(ctx context.Context, userID string) (*order.View, error)
	GuestLookup(ctx context.Context, email string) ([]*order.View, error)
	Cancel(ctx context.Context, userID, number, reason string) (*order.View, error)

	Get(ctx context.Context, number string) (*order.View, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*order.View, error)
	UpdateStatus(ctx context.Context, u order.StatusUpdate) (*order.View, error)
	SetInternalNotes(ctx context.Context, number, notes string) (*order.View, error)
	History(ctx context.Context, number string) ([]domain.StatusChange, error)
	Export(ctx context.Context, filter repository.OrderFilter) ([]order.ExportRow, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type CancelRequestDTO struct {
	Reason string `json:"reason,omitempty"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	views, err := h.orders.ListForUser(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(views))
}

// GET /api/v1/orders/recent
// Backs the confirmation page after checkout.
func (h *OrdersHandler) Recent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	v, err := h.orders.Recent(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// GET /api/v1/orders/guest?email=
func (h *OrdersHandler) GuestLookup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	views, err := h.orders.GuestLookup(ctx, r.URL.Query().Get("email"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(views))
}

// GET /api/v1/orders/{order_number}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	number := chi.URLParam(r, "order_number")
	if number == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing order_number")
		return
	}

	v, err := h.orders.GetForUser(ctx, userID, number)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// POST /api/v1/orders/{order_number}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	number := chi.URLParam(r, "order_number")
	if number == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing order_number")
		return
	}

	var req CancelRequestDTO
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.orders.Cancel(ctx, userID, number, req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
