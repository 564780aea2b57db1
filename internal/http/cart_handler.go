package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jyush98/jason-co-ecom-sub003/internal/cart"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/pricing"
	"github.com/jyush98/jason-co-ecom-sub003/internal/promo"
)

// CartService is implemented by *cart.Service.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, quantity int, options map[string]string) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error)
	ApplyPromo(ctx context.Context, userID, code string) (*domain.Cart, promo.Result, error)
	RemovePromo(ctx context.Context, userID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
	ItemCount(ctx context.Context, userID string) (int, error)
	Revalidate(ctx context.Context, userID string) ([]cart.StaleItem, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Options   map[string]string `json:"options,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ApplyPromoRequestDTO struct {
	Code string `json:"code"`
}

type CartResponseDTO struct {
	*domain.Cart
	ItemCount int          `json:"item_count"`
	Subtotal  domain.Money `json:"subtotal"`
}

type ApplyPromoResponseDTO struct {
	Cart  CartResponseDTO `json:"cart"`
	Promo promo.Result    `json:"promo"`
}

func toCartResponse(c *domain.Cart) CartResponseDTO {
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return CartResponseDTO{Cart: c, ItemCount: c.ItemCount(), Subtotal: pricing.Subtotal(*c)}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	c, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// GET /api/v1/cart/count
func (h *CartHandler) ItemCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	n, err := h.carts.ItemCount(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "product_id must be positive")
		return
	}

	c, err := h.carts.AddItem(ctx, userID, req.ProductID, req.Quantity, req.Options)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateQuantity(ctx, userID, productID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	c, err := h.carts.RemoveItem(ctx, userID, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.ClearCart(ctx, userID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/cart/promo
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req ApplyPromoRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	c, result, err := h.carts.ApplyPromo(ctx, userID, req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	// a rejected code is a normal answer, not an error
	respondJSON(w, http.StatusOK, ApplyPromoResponseDTO{Cart: toCartResponse(c), Promo: result})
}

// DELETE /api/v1/cart/promo
func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	c, err := h.carts.RemovePromo(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// POST /api/v1/cart/revalidate
func (h *CartHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	stale, err := h.carts.Revalidate(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if stale == nil {
		stale = []cart.StaleItem{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"stale_items": stale})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid product_id")
		return 0, false
	}
	return productID, true
}
