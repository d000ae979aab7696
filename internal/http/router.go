package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Cart      *CartHandler
	Checkout  *CheckoutHandler
	Addresses *AddressHandler
	Session   *SessionHandler
	Metrics   http.Handler
}

// NewRouter mounts every route. requestTimeout applies to the short cart and
// address calls; the checkout routes carry their own longer deadline and
// require a signed-in session.
func NewRouter(h Handlers, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})
			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", h.Addresses.List)
				r.Post("/", h.Addresses.Create)
				r.Put("/{address_id}", h.Addresses.Update)
				r.Delete("/{address_id}", h.Addresses.Delete)
			})
			r.Route("/session", func(r chi.Router) {
				r.Get("/", h.Session.GetSession)
				r.Post("/", h.Session.CreateSession)
				r.Delete("/", h.Session.DeleteSession)
			})
			r.Get("/checkout/state", h.Checkout.GetState)
			r.Post("/checkout/reset", h.Checkout.Reset)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.Session.RequireSession)
			r.Post("/checkout", h.Checkout.Submit)
			r.Post("/payments/{order_id}/retry", h.Checkout.RetryPayment)
		})
	})

	r.Get("/payment/return", h.Checkout.PaymentReturn)
	return r
}
