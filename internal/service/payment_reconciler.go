package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/cache"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/poller"
)

type PaymentOutcome string

const (
	PaymentOutcomePaid     PaymentOutcome = "PAID"
	PaymentOutcomeFailed   PaymentOutcome = "FAILED"
	PaymentOutcomeTimedOut PaymentOutcome = "TIMED_OUT"
)

type PaymentResult struct {
	Outcome  PaymentOutcome
	Status   domain.PaymentStatus
	Order    *domain.Order
	Attempts int
}

type PaymentReconciler struct {
	backend     PaymentBackend
	markers     cache.PaymentMarkerStore
	identity    Identity
	policy      poller.Policy
	returnParam string
	now         func() time.Time
	rec         Recorder
	log         *slog.Logger
}

func NewPaymentReconciler(b PaymentBackend, markers cache.PaymentMarkerStore, identity Identity,
	policy poller.Policy, returnParam string, rec Recorder, log *slog.Logger) *PaymentReconciler {
	return &PaymentReconciler{
		backend:     b,
		markers:     markers,
		identity:    identity,
		policy:      policy,
		returnParam: returnParam,
		now:         time.Now,
		rec:         recorderOrNop(rec),
		log:         log.With("component", "payment_reconciler"),
	}
}

// Initiate opens a gateway session for orderID and records the pending
// marker. A response without a redirect url is fatal.
func (r *PaymentReconciler) Initiate(ctx context.Context, orderID int64) (*domain.PaymentSession, error) {
	raw, err := r.backend.InitiatePayment(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("initiate payment for order %d: %w", orderID, err)
	}

	session, err := domain.ParsePaymentSession(raw)
	if err != nil {
		return nil, err
	}
	if session.RedirectURL == "" {
		return nil, ErrNoRedirect
	}
	if _, err := url.ParseRequestURI(session.RedirectURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRedirect, err)
	}

	marker := domain.PendingPayment{
		OrderID:     orderID,
		PaymentID:   session.PaymentID,
		InitiatedAt: r.now().UTC(),
	}
	if err := r.markers.SetPending(ctx, r.identity.UserKey(), marker); err != nil {
		r.log.WarnContext(ctx, "pending payment marker not saved", "order_id", orderID, "error", err)
	}

	r.log.InfoContext(ctx, "payment initiated", "order_id", orderID, "payment_id", session.PaymentID)
	return session, nil
}

// IsGatewayReturn reports whether the gateway response parameter is present.
// Its value is ignored: the outcome is read from the order.
func (r *PaymentReconciler) IsGatewayReturn(query url.Values) bool {
	_, ok := query[r.returnParam]
	return ok
}

// Pending returns the marker of an in-flight redirect payment.
func (r *PaymentReconciler) Pending(ctx context.Context) (*domain.PendingPayment, error) {
	p, err := r.markers.GetPending(ctx, r.identity.UserKey())
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrNoPendingPayment
	}
	return p, err
}

// Reconcile clears the pending marker and polls the order until its payment
// status is terminal or the budget is spent. Transport errors use up attempts
// but do not end the poll.
func (r *PaymentReconciler) Reconcile(ctx context.Context, orderID int64) (*PaymentResult, error) {
	if err := r.markers.ClearPending(ctx, r.identity.UserKey()); err != nil {
		r.log.WarnContext(ctx, "pending payment marker not cleared", "error", err)
	}

	result := &PaymentResult{}
	attempts, err := r.policy.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		order, err := r.backend.GetOrder(ctx, orderID)
		if err != nil {
			r.log.WarnContext(ctx, "payment status poll failed", "order_id", orderID, "attempt", attempt, "error", err)
			return false, nil
		}
		result.Order = order
		result.Status = order.PaymentStatus
		return order.PaymentStatus.IsTerminal(), nil
	})
	result.Attempts = attempts

	switch {
	case err == nil && result.Status.IsPaid():
		result.Outcome = PaymentOutcomePaid
	case err == nil:
		result.Outcome = PaymentOutcomeFailed
	case errors.Is(err, poller.ErrExhausted):
		result.Outcome = PaymentOutcomeTimedOut
	default:
		r.rec.ObservePoll("payment_status", "interrupted", attempts)
		return result, fmt.Errorf("reconcile payment for order %d: %w", orderID, err)
	}

	r.rec.ObservePoll("payment_status", string(result.Outcome), attempts)
	r.log.InfoContext(ctx, "payment reconciled", "order_id", orderID, "outcome", result.Outcome, "attempts", attempts)
	return result, nil
}
