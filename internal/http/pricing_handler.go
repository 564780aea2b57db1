package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/checkout"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/pricing"
)

type PricingHandler struct {
	carts   CartService
	engine  *pricing.Engine
	quoter  checkout.ShippingQuoter
	timeout time.Duration
}

func NewPricingHandler(carts CartService, engine *pricing.Engine, quoter checkout.ShippingQuoter, timeout time.Duration) *PricingHandler {
	return &PricingHandler{
		carts:   carts,
		engine:  engine,
		quoter:  quoter,
		timeout: timeout,
	}
}

type QuoteRequestDTO struct {
	ShippingMethodID string         `json:"shipping_method_id"`
	Address          domain.Address `json:"address"`
	PromoCode        *string        `json:"promo_code,omitempty"`
}

// POST /api/v1/pricing/quote
// Prices the caller's current cart. Without promo_code the code stored on the cart applies.
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req QuoteRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ShippingMethodID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "shipping_method_id is required")
		return
	}

	c, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	method, err := checkout.FindMethod(ctx, h.quoter, req.Address, req.ShippingMethodID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	code := c.PromoCode
	if req.PromoCode != nil {
		code = strings.TrimSpace(*req.PromoCode)
	}

	quote, err := h.engine.Price(*c, method, req.Address, code)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// GET /api/v1/shipping/methods?state=NY&country=US
func (h *PricingHandler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	destination := domain.Address{
		State:   r.URL.Query().Get("state"),
		Country: r.URL.Query().Get("country"),
	}
	methods, err := h.quoter.Methods(ctx, destination)
	if err != nil {
		handleServiceError(w, &domain.CollaboratorError{Service: "shipping", Err: err})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"methods": methods})
}
