package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Cart     *CartHandler
	Pricing  *PricingHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler
}

type RouterConfig struct {
	Logger         zerolog.Logger
	RequestTimeout time.Duration
	AdminToken     string
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(MockAuthMiddleware)
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Get("/count", h.Cart.ItemCount)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			r.Put("/promo", h.Cart.ApplyPromo)
			r.Delete("/promo", h.Cart.RemovePromo)
			r.Post("/revalidate", h.Cart.Revalidate)
		})

		r.Post("/pricing/quote", h.Pricing.Quote)
		r.Get("/shipping/methods", h.Pricing.ShippingMethods)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.Checkout.Start)
			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/", h.Checkout.Get)
				r.Get("/quote", h.Checkout.Quote)
				r.Put("/address", h.Checkout.SetAddress)
				r.Put("/shipping", h.Checkout.SetShipping)
				r.Put("/payment", h.Checkout.SetPayment)
				r.Post("/advance", h.Checkout.Advance)
				r.Post("/back", h.Checkout.Back)
				r.Post("/place", h.Checkout.Place)
			})
		})

		r.Post("/webhooks/payment", h.Checkout.PaymentWebhook)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.ListOrders)
			r.Get("/recent", h.Orders.Recent)
			r.Get("/guest", h.Orders.GuestLookup)
			r.Get("/{order_number}", h.Orders.GetOrder)
			r.Post("/{order_number}/cancel", h.Orders.CancelOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Get("/orders", h.Admin.ListOrders)
			r.Get("/orders/export", h.Admin.Export)
			r.Get("/orders/{order_number}", h.Admin.GetOrder)
			r.Patch("/orders/{order_number}", h.Admin.UpdateStatus)
			r.Put("/orders/{order_number}/notes", h.Admin.UpdateNotes)
			r.Get("/orders/{order_number}/history", h.Admin.History)
		})
	})

	return otelhttp.NewHandler(r, "checkout-service")
}
