package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
)

type AddressService interface {
	List(ctx context.Context) ([]domain.ShippingAddress, error)
	Create(ctx context.Context, addr domain.ShippingAddress) (*domain.ShippingAddress, error)
	Update(ctx context.Context, addr domain.ShippingAddress) (*domain.ShippingAddress, error)
	Delete(ctx context.Context, id int64) error
}

type AddressHandler struct {
	addresses AddressService
	timeout   time.Duration
}

func NewAddressHandler(addresses AddressService, timeout time.Duration) *AddressHandler {
	return &AddressHandler{
		addresses: addresses,
		timeout:   timeout,
	}
}

// GET /api/v1/addresses
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addrs, err := h.addresses.List(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if addrs == nil {
		addrs = []domain.ShippingAddress{}
	}
	respondJSON(w, http.StatusOK, addrs)
}

// POST /api/v1/addresses
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.ShippingAddress
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	created, err := h.addresses.Create(ctx, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// PUT /api/v1/addresses/{address_id}
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseIDParam(r, "address_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be a positive integer")
		return
	}

	var req domain.ShippingAddress
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ID = id

	updated, err := h.addresses.Update(ctx, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/addresses/{address_id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseIDParam(r, "address_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be a positive integer")
		return
	}

	if err := h.addresses.Delete(ctx, id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
