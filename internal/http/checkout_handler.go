package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/service"
)

type CheckoutService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (domain.Flow, error)
	HandleReturn(ctx context.Context, query url.Values) (domain.Flow, error)
	RetryPayment(ctx context.Context, orderID int64) (domain.Flow, error)
	Reset(ctx context.Context) (domain.Flow, error)
	State() domain.Flow
}

// CheckoutHandler exposes the checkout flow. Its timeout covers the order
// and payment polls, so it is much longer than the cart timeout.
type CheckoutHandler struct {
	flow    CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(flow CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		flow:    flow,
		timeout: timeout,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req service.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID <= 0 && req.NewAddress == nil {
		respondError(w, http.StatusBadRequest, "missing_address", "shippingAddressId or shippingAddress is required")
		return
	}

	flow, err := h.flow.Submit(ctx, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondFlow(w, flow)
}

// GET /api/v1/checkout/state
func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.flow.State())
}

// POST /api/v1/checkout/reset
func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flow.Reset(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flow)
}

// POST /api/v1/payments/{order_id}/retry
func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseIDParam(r, "order_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a positive integer")
		return
	}

	flow, err := h.flow.RetryPayment(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondFlow(w, flow)
}

// GET /payment/return is where the gateway sends the browser back.
func (h *CheckoutHandler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	flow, err := h.flow.HandleReturn(ctx, r.URL.Query())
	if errors.Is(err, service.ErrNotGatewayReturn) {
		respondError(w, http.StatusBadRequest, "not_gateway_return", "missing payment gateway response")
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, flowStatus(flow), flow)
}
