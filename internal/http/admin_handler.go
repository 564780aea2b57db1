package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/order"
	"github.com/jyush98/jason-co-ecom-sub003/internal/repository"
)

const dateLayout = "2006-01-02"

type AdminHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewAdminHandler(orders OrderService, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type UpdateStatusRequestDTO struct {
	Status         string `json:"status"`
	ExpectedStatus string `json:"expected_status,omitempty"`
	Reason         string `json:"reason,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type InternalNotesRequestDTO struct {
	InternalNotes string `json:"internal_notes"`
}

// GET /api/v1/admin/orders?status=&from=&to=&customer=&limit=&offset=
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseOrderFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	views, err := h.orders.List(ctx, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(views))
}

// GET /api/v1/admin/orders/export
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseOrderFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rows, err := h.orders.Export(ctx, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

// GET /api/v1/admin/orders/{order_number}
func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	v, err := h.orders.Get(ctx, chi.URLParam(r, "order_number"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// PATCH /api/v1/admin/orders/{order_number}
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	to, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown status %q", req.Status))
		return
	}
	var expected domain.OrderStatus
	if req.ExpectedStatus != "" {
		if expected, ok = domain.ParseOrderStatus(req.ExpectedStatus); !ok {
			respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown status %q", req.ExpectedStatus))
			return
		}
	}

	v, err := h.orders.UpdateStatus(ctx, order.StatusUpdate{
		OrderNumber:  chi.URLParam(r, "order_number"),
		ExpectedFrom: expected,
		To:           to,
		Actor:        order.ActorAdmin,
		Reason:       req.Reason,

		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// PUT /api/v1/admin/orders/{order_number}/notes
func (h *AdminHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req InternalNotesRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.orders.SetInternalNotes(ctx, chi.URLParam(r, "order_number"), req.InternalNotes)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// GET /api/v1/admin/orders/{order_number}/history
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	changes, err := h.orders.History(ctx, chi.URLParam(r, "order_number"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(changes))
}

// parseOrderFilter accepts dates as YYYY-MM-DD or RFC 3339. A bare "to" date covers the whole day.
func parseOrderFilter(q url.Values) (repository.OrderFilter, error) {
	var f repository.OrderFilter

	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseOrderStatus(s)
		if !ok {
			return f, fmt.Errorf("unknown status %q", s)
		}
		f.Status = status
	}

	var err error
	if s := q.Get("from"); s != "" {
		if f.From, _, err = parseTime(s); err != nil {
			return f, fmt.Errorf("invalid from: %w", err)
		}
	}
	if s := q.Get("to"); s != "" {
		var dateOnly bool
		if f.To, dateOnly, err = parseTime(s); err != nil {
			return f, fmt.Errorf("invalid to: %w", err)
		}
		if dateOnly {
			f.To = f.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("to is before from")
	}

	f.Customer = q.Get("customer")

	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			return f, fmt.Errorf("invalid limit %q", s)
		}
	}
	if s := q.Get("offset"); s != "" {
		if f.Offset, err = strconv.Atoi(s); err != nil || f.Offset < 0 {
			return f, fmt.Errorf("invalid offset %q", s)
		}
	}
	return f, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}
