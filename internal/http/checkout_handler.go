package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jyush98/jason-co-ecom-sub003/internal/checkout"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/pricing"
	"github.com/rs/zerolog/log"
)

// CheckoutService is implemented by *checkout.Orchestrator.
type CheckoutService interface {
	Start(ctx context.Context, userID string) (*checkout.Session, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*checkout.Session, error)
	SetAddress(ctx context.Context, userID string, id uuid.UUID, shipping domain.Address, billing *domain.Address) (*checkout.Session, error)
	SelectShipping(ctx context.Context, userID string, id uuid.UUID, methodID string) (*checkout.Session, error)
	SetPayment(ctx context.Context, userID string, id uuid.UUID, token string) (*checkout.Session, error)
	SetPromo(ctx context.Context, userID string, id uuid.UUID, code string) (*checkout.Session, error)
	SetNotes(ctx context.Context, userID string, id uuid.UUID, notes string) (*checkout.Session, error)
	Advance(ctx context.Context, userID string, id uuid.UUID) (*checkout.Session, error)
	Back(ctx context.Context, userID string, id uuid.UUID) (*checkout.Session, error)
	Quote(ctx context.Context, userID string, id uuid.UUID) (*pricing.Result, error)
	PlaceOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, reference string) (*domain.Order, error)
	FailPayment(ctx context.Context, reference, reason string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
	}
}

type AddressRequestDTO struct {
	ShippingAddress domain.Address  `json:"shipping_address"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
}

type ShippingRequestDTO struct {
	ShippingMethodID string `json:"shipping_method_id"`
}

type PaymentRequestDTO struct {
	PaymentToken string  `json:"payment_token"`
	PromoCode    *string `json:"promo_code,omitempty"`
	OrderNotes   *string `json:"order_notes,omitempty"`
}

type PaymentWebhookDTO struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

type SessionResponseDTO struct {
	*checkout.Session
	Quote *pricing.Result `json:"quote,omitempty"`
}

func sessionParams(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid session_id")
		return "", uuid.Nil, false
	}
	return userID, id, true
}

type checkoutCall func(ctx context.Context, userID string, id uuid.UUID) (*checkout.Session, error)

// serve runs the boilerplate shared by the session endpoints.
func (h *CheckoutHandler) serve(w http.ResponseWriter, r *http.Request, call checkoutCall) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, id, ok := sessionParams(w, r)
	if !ok {
		return
	}

	s, err := call(ctx, userID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SessionResponseDTO{Session: s})
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	s, err := h.checkout.Start(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, SessionResponseDTO{Session: s})
}

// GET /api/v1/checkout/{session_id}
// The quote is attached once a shipping method is chosen.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, id, ok := sessionParams(w, r)
	if !ok {
		return
	}

	s, err := h.checkout.Get(ctx, userID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := SessionResponseDTO{Session: s}
	if s.Form.ShippingMethodID != "" && !s.Completed() {
		quote, err := h.checkout.Quote(ctx, userID, id)
		if err != nil {
			log.Warn().Err(err).Str("session_id", id.String()).Msg("session quote unavailable")
		} else {
			resp.Quote = quote
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/checkout/{session_id}/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, id, ok := sessionParams(w, r)
	if !ok {
		return
	}

	quote, err := h.checkout.Quote(ctx, userID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// PUT /api/v1/checkout/{session_id}/address
func (h *CheckoutHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.serve(w, r, func(ctx context.Context, userID string, id uuid.UUID) (*checkout.Session, error) {
		return h.checkout.SetAddress(ctx, userID, id, req.ShippingAddress, req.BillingAddress)
	})
}

// PUT /api/v1/checkout/{session_id}/shipping
func (h *CheckoutHandler) SetShipping(w http.ResponseWriter, r *http.Request) {
	var req ShippingRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.serve(w, r, func(ctx context.Context, userID string, id uuid.UUID) (*checkout.Session, error) {
		return h.checkout.SelectShipping(ctx, userID, id, req.ShippingMethodID)
	})
}

// PUT /api/v1/checkout/{session_id}/payment
func (h *CheckoutHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.serve(w, r, func(ctx context.Context, userID string, id uuid.UUID) (*checkout.Session, error) {
		s, err := h.checkout.SetPayment(ctx, userID, id, req.PaymentToken)
		if err != nil {
			return nil, err
		}
		if req.PromoCode != nil {
			if s, err = h.checkout.SetPromo(ctx, userID, id, *req.PromoCode); err != nil {
				return nil, err
			}
		}
		if req.OrderNotes != nil {
			return h.checkout.SetNotes(ctx, userID, id, *req.OrderNotes)
		}
		return s, nil
	})
}

// POST /api/v1/checkout/{session_id}/advance
func (h *CheckoutHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.checkout.Advance)
}

// POST /api/v1/checkout/{session_id}/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.checkout.Back)
}

// POST /api/v1/checkout/{session_id}/place
// Safe to retry: a session places at most one order.
func (h *CheckoutHandler) Place(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, id, ok := sessionParams(w, r)
	if !ok {
		return
	}

	o, err := h.checkout.PlaceOrder(ctx, userID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if o.Status == domain.OrderStatusPending {
		// payment needs customer action before the order is confirmed
		status = http.StatusAccepted
	}
	respondJSON(w, status, o)
}

// POST /api/v1/webhooks/payment
func (h *CheckoutHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PaymentWebhookDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReferenceID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "reference_id is required")
		return
	}

	var (
		o   *domain.Order
		err error
	)
	switch domain.PaymentStatus(req.Status) {
	case domain.PaymentStatusSucceeded:
		o, err = h.checkout.ConfirmPayment(ctx, req.ReferenceID)
	case domain.PaymentStatusFailed:
		o, err = h.checkout.FailPayment(ctx, req.ReferenceID, req.Reason)
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "status must be succeeded or failed")
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"order_number": o.OrderNumber,
		"status":       o.Status.String(),
	})
}
