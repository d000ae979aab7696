package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/backend"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
)

type CartService interface {
	Load(ctx context.Context) ([]domain.CartItem, error)
	Items() []domain.CartItem
	Total() float64
	Count() int
	Err() string
	AddToCart(ctx context.Context, product domain.Product, quantity int) ([]domain.CartItem, error)
	UpdateQuantity(ctx context.Context, productID int64, quantity int) ([]domain.CartItem, error)
	RemoveFromCart(ctx context.Context, productID int64) ([]domain.CartItem, error)
	ClearCart(ctx context.Context) error
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
}

func NewCartHandler(cart CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items []domain.CartItem `json:"items"`
	Total float64           `json:"total"`
	Count int               `json:"count"`
	Error string            `json:"error,omitempty"`
}

// cartResponse pairs the returned items with the synchronizer's derived totals.
func (h *CartHandler) cartResponse(items []domain.CartItem, errMsg string) CartResponseDTO {
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponseDTO{
		Items: items,
		Total: h.cart.Total(),
		Count: h.cart.Count(),
		Error: errMsg,
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	items, err := h.cart.Load(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(items, h.cart.Err()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	items, err := h.cart.AddToCart(ctx, domain.Product{ID: req.ProductID}, req.Quantity)
	h.respondCart(w, http.StatusCreated, items, err)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseIDParam(r, "product_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// Zero removes the line.
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	items, err := h.cart.UpdateQuantity(ctx, productID, req.Quantity)
	h.respondCart(w, http.StatusOK, items, err)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseIDParam(r, "product_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	items, err := h.cart.RemoveFromCart(ctx, productID)
	h.respondCart(w, http.StatusOK, items, err)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.ClearCart(ctx); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(h.cart.Items(), h.cart.Err()))
}

// respondCart always returns the reconciled cart; a failed mutation keeps
// its error status and message alongside it.
func (h *CartHandler) respondCart(w http.ResponseWriter, okStatus int, items []domain.CartItem, err error) {
	if err == nil {
		respondJSON(w, okStatus, h.cartResponse(items, ""))
		return
	}
	status, _ := errorStatus(err)
	msg := h.cart.Err()
	if msg == "" {
		msg = backend.UserMessage(err)
	}
	respondJSON(w, status, h.cartResponse(items, msg))
}
