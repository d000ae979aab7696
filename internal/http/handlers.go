package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/checkout-client/internal/backend"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts service and backend errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	resp := ErrorResponse{Error: backend.UserMessage(err), Code: code}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		resp.Error = vErr.Op
		resp.Details = vErr.Reasons
	}
	if status >= http.StatusInternalServerError && code == "internal_error" {
		resp.Error = backend.GenericErrorMessage
	}
	respondJSON(w, status, resp)
}

func errorStatus(err error) (int, string) {
	var vErr *domain.ValidationError
	var apiErr *backend.APIError

	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, service.ErrInvalidProduct):
		return http.StatusBadRequest, "invalid_product_id"
	case errors.Is(err, service.ErrNoAddress):
		return http.StatusBadRequest, "missing_address"
	case errors.Is(err, service.ErrNotGatewayReturn):
		return http.StatusBadRequest, "not_gateway_return"
	case errors.Is(err, service.ErrNoPendingPayment):
		return http.StatusNotFound, "no_pending_payment"
	case errors.Is(err, service.ErrNoCheckout), errors.Is(err, service.ErrCheckoutNotReady):
		return http.StatusConflict, "checkout_not_ready"
	case errors.Is(err, service.ErrFlowBusy):
		return http.StatusConflict, "flow_busy"
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &apiErr):
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return http.StatusNotFound, "not_found"
		case apiErr.StatusCode == http.StatusUnauthorized:
			return http.StatusUnauthorized, "unauthenticated"
		case apiErr.StatusCode == http.StatusForbidden:
			return http.StatusForbidden, "permission_denied"
		case apiErr.StatusCode == http.StatusConflict:
			return http.StatusConflict, "conflict"
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, "rate_limit_exceeded"
		case apiErr.StatusCode < http.StatusInternalServerError:
			return http.StatusBadRequest, "invalid_argument"
		default:
			return http.StatusBadGateway, "backend_error"
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// flowStatus picks the response code for a flow snapshot.
func flowStatus(flow domain.Flow) int {
	switch flow.State {
	case domain.FlowSucceeded:
		return http.StatusCreated
	case domain.FlowRedirecting:
		return http.StatusSeeOther
	case domain.FlowFailed:
		return http.StatusUnprocessableEntity
	case domain.FlowTimedOut, domain.FlowUnconfirmed:
		return http.StatusAccepted
	default:
		return http.StatusOK
	}
}

// respondFlow writes the flow. A redirecting flow also sends the browser to
// the gateway.
func respondFlow(w http.ResponseWriter, flow domain.Flow) {
	if flow.State == domain.FlowRedirecting && flow.RedirectURL != "" {
		w.Header().Set("Location", flow.RedirectURL)
	}
	respondJSON(w, flowStatus(flow), flow)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
