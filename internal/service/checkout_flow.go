package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/backend"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/publisher"
)

const (
	msgUnconfirmed = "Your order was created but could not be confirmed yet. Please check your orders or contact support."
	msgTimedOut    = "We could not confirm your payment yet. Please check your order status."
	msgInterrupted = "Payment status check was interrupted. Please check your order status."
)

type SubmitRequest struct {
	PaymentMethod domain.PaymentMethod    `json:"paymentMethod"`
	AddressID     int64                   `json:"shippingAddressId,omitempty"`
	NewAddress    *domain.ShippingAddress `json:"shippingAddress,omitempty"`
	Email         string                  `json:"email"`
	Phone         string                  `json:"phone"`
	Note          string                  `json:"note,omitempty"`
	PromotionCode string                  `json:"promotionCode,omitempty"`
}

type FlowDelays struct {
	CODConfirm      time.Duration
	SuccessRedirect time.Duration
}

// CheckoutFlow drives one checkout attempt through domain.Flow. Every call
// resolves to a flow state; errors are returned only when the call could not
// act at all.
type CheckoutFlow struct {
	cart      *CartSynchronizer
	checkouts *CheckoutInitiator
	orders    *OrderPlacer
	payments  *PaymentReconciler
	addresses *AddressBook
	identity  Identity
	events    publisher.Publisher
	rec       Recorder
	delays    FlowDelays
	sleep     func(ctx context.Context, d time.Duration) error
	log       *slog.Logger

	busy  atomic.Bool
	mu    sync.RWMutex
	state domain.Flow
}

func NewCheckoutFlow(cart *CartSynchronizer, checkouts *CheckoutInitiator, orders *OrderPlacer,
	payments *PaymentReconciler, addresses *AddressBook, identity Identity,
	events publisher.Publisher, rec Recorder, delays FlowDelays, log *slog.Logger) *CheckoutFlow {
	if events == nil {
		events = publisher.NopPublisher{}
	}
	return &CheckoutFlow{
		cart:      cart,
		checkouts: checkouts,
		orders:    orders,
		payments:  payments,
		addresses: addresses,
		identity:  identity,
		events:    events,
		rec:       recorderOrNop(rec),
		delays:    delays,
		sleep:     sleepContext,
		log:       log.With("component", "checkout_flow"),
		state:     domain.NewFlow(),
	}
}

func (f *CheckoutFlow) State() domain.Flow {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Submit runs checkout creation, order placement and, for redirect methods,
// payment initiation. It returns the resulting flow.
func (f *CheckoutFlow) Submit(ctx context.Context, req SubmitRequest) (domain.Flow, error) {
	if !req.PaymentMethod.Valid() {
		return f.State(), &domain.ValidationError{
			Op:      "invalid payment method",
			Reasons: []string{fmt.Sprintf("Unknown payment method %q", req.PaymentMethod)},
		}
	}
	if !f.busy.CompareAndSwap(false, true) {
		return f.State(), ErrFlowBusy
	}
	defer f.busy.Store(false)

	if err := f.restartIfNeeded(ctx, domain.FlowCreatingCheckout); err != nil {
		return f.State(), err
	}

	items, err := f.cart.Load(ctx)
	if err != nil {
		f.log.WarnContext(ctx, "cart refresh before checkout failed", "error", err)
		items = f.cart.Items()
	}

	checkoutID, err := f.enterPlacingOrder(ctx, items, req.PaymentMethod)
	if err != nil {
		return f.State(), err
	}
	if f.State().State == domain.FlowFailed {
		return f.State(), nil
	}

	if err := f.checkouts.UpdatePaymentMethod(ctx, req.PaymentMethod); err != nil {
		return f.fail(ctx, err), nil
	}

	addr, err := f.addresses.Resolve(ctx, req.AddressID, req.NewAddress)
	if err != nil {
		return f.fail(ctx, err), nil
	}

	orderID, err := f.orders.CreateOrder(ctx, PlaceOrderRequest{
		Items:         items,
		Address:       addr,
		Email:         req.Email,
		Phone:         req.Phone,
		Note:          req.Note,
		PromotionCode: req.PromotionCode,
	})
	if err != nil {
		return f.fail(ctx, err), nil
	}
	if _, err := f.transition(ctx, domain.Event{To: domain.FlowAwaitingAvailability, OrderID: orderID}); err != nil {
		return f.State(), err
	}

	// The checkout is consumed once an order exists.
	f.checkouts.Reset()
	f.refreshCart(ctx)
	f.log.InfoContext(ctx, "order placed", "order_id", orderID, "checkout_id", checkoutID)

	placed, err := f.orders.AwaitAvailability(ctx, orderID)
	if err != nil {
		return f.fail(ctx, err), nil
	}
	if !placed.Confirmed {
		return f.transition(ctx, domain.Event{To: domain.FlowUnconfirmed, Reason: msgUnconfirmed, Attempts: placed.Attempts})
	}

	if !req.PaymentMethod.RequiresRedirect() {
		if err := f.sleep(ctx, f.delays.CODConfirm); err != nil {
			f.log.WarnContext(ctx, "confirmation delay interrupted", "error", err)
		}
		return f.transition(ctx, domain.Event{To: domain.FlowSucceeded, Attempts: placed.Attempts})
	}

	status := placed.Order.PaymentStatus
	switch {
	case status.IsPaid():
		return f.transition(ctx, domain.Event{To: domain.FlowSucceeded, Attempts: placed.Attempts})
	case status.IsFailed():
		return f.transition(ctx, domain.Event{To: domain.FlowFailed, Reason: paymentFailedReason(status)})
	}
	return f.initiatePayment(ctx, orderID)
}

// enterPlacingOrder moves to PLACING_ORDER, creating the checkout when the
// attempt has none. On checkout failure the flow is left FAILED.
func (f *CheckoutFlow) enterPlacingOrder(ctx context.Context, items []domain.CartItem, method domain.PaymentMethod) (string, error) {
	if existing := f.checkouts.Current(); existing != nil {
		_, err := f.transition(ctx, domain.Event{To: domain.FlowPlacingOrder, CheckoutID: existing.ID, PaymentMethod: method})
		return existing.ID, err
	}

	if _, err := f.transition(ctx, domain.Event{To: domain.FlowCreatingCheckout, PaymentMethod: method}); err != nil {
		return "", err
	}
	checkout, _, err := f.checkouts.EnsureCheckout(ctx, items)
	if err != nil {
		f.fail(ctx, err)
		return "", nil
	}
	_, err = f.transition(ctx, domain.Event{To: domain.FlowPlacingOrder, CheckoutID: checkout.ID})
	return checkout.ID, err
}

// HandleReturn reconciles a payment after the browser comes back from the
// gateway. The order id comes from the orderId query parameter or, failing
// that, from the pending payment marker.
func (f *CheckoutFlow) HandleReturn(ctx context.Context, query url.Values) (domain.Flow, error) {
	if !f.payments.IsGatewayReturn(query) {
		return f.State(), ErrNotGatewayReturn
	}
	if !f.busy.CompareAndSwap(false, true) {
		return f.State(), ErrFlowBusy
	}
	defer f.busy.Store(false)

	orderID, err := f.returnOrderID(ctx, query)
	if err != nil {
		return f.State(), err
	}

	if err := f.restartIfNeeded(ctx, domain.FlowPollingPayment); err != nil {
		return f.State(), err
	}
	if _, err := f.transition(ctx, domain.Event{To: domain.FlowPollingPayment, OrderID: orderID}); err != nil {
		return f.State(), err
	}

	result, err := f.payments.Reconcile(ctx, orderID)
	if err != nil {
		return f.transition(ctx, domain.Event{To: domain.FlowTimedOut, Reason: msgInterrupted, Attempts: result.Attempts})
	}

	switch result.Outcome {
	case PaymentOutcomePaid:
		if err := f.sleep(ctx, f.delays.SuccessRedirect); err != nil {
			f.log.WarnContext(ctx, "success delay interrupted", "error", err)
		}
		f.refreshCart(ctx)
		return f.transition(ctx, domain.Event{To: domain.FlowSucceeded, Attempts: result.Attempts})
	case PaymentOutcomeFailed:
		return f.transition(ctx, domain.Event{
			To:       domain.FlowFailed,
			Reason:   paymentFailedReason(result.Status),
			Attempts: result.Attempts,
		})
	default:
		return f.transition(ctx, domain.Event{To: domain.FlowTimedOut, Reason: msgTimedOut, Attempts: result.Attempts})
	}
}

func (f *CheckoutFlow) returnOrderID(ctx context.Context, query url.Values) (int64, error) {
	if raw := query.Get("orderId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && id > 0 {
			return id, nil
		}
		f.log.WarnContext(ctx, "ignoring invalid orderId on gateway return", "order_id", raw)
	}
	pending, err := f.payments.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return pending.OrderID, nil
}

// RetryPayment opens a new gateway session for a failed payment. orderID 0
// means the order of the current flow.
func (f *CheckoutFlow) RetryPayment(ctx context.Context, orderID int64) (domain.Flow, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return f.State(), ErrFlowBusy
	}
	defer f.busy.Store(false)

	current := f.State()
	if orderID == 0 {
		orderID = current.OrderID
	}
	if !current.State.CanTransitionTo(domain.FlowRedirecting) {
		return current, &domain.TransitionError{From: current.State, To: domain.FlowRedirecting}
	}
	if orderID <= 0 {
		return current, &domain.TransitionError{From: current.State, To: domain.FlowRedirecting, Reason: "order id required"}
	}

	session, err := f.payments.Initiate(ctx, orderID)
	if err != nil {
		f.log.ErrorContext(ctx, "payment retry failed", "order_id", orderID, "error", err)
		return current, err
	}
	return f.transition(ctx, domain.Event{To: domain.FlowRedirecting, OrderID: orderID, RedirectURL: session.RedirectURL})
}

// Reset abandons the current attempt and its checkout.
func (f *CheckoutFlow) Reset(ctx context.Context) (domain.Flow, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return f.State(), ErrFlowBusy
	}
	defer f.busy.Store(false)

	f.checkouts.Reset()
	if f.State().State == domain.FlowIdle {
		return f.State(), nil
	}
	return f.transition(ctx, domain.Event{To: domain.FlowIdle})
}

func (f *CheckoutFlow) initiatePayment(ctx context.Context, orderID int64) (domain.Flow, error) {
	session, err := f.payments.Initiate(ctx, orderID)
	if err != nil {
		return f.fail(ctx, err), nil
	}
	return f.transition(ctx, domain.Event{To: domain.FlowRedirecting, RedirectURL: session.RedirectURL})
}

// restartIfNeeded returns a finished flow to IDLE so a new step can start.
func (f *CheckoutFlow) restartIfNeeded(ctx context.Context, next domain.FlowState) error {
	current := f.State().State
	if current.CanTransitionTo(next) {
		return nil
	}
	if !current.CanTransitionTo(domain.FlowIdle) {
		return &domain.TransitionError{From: current, To: next}
	}
	_, err := f.transition(ctx, domain.Event{To: domain.FlowIdle})
	return err
}

// fail moves to FAILED with the user-facing message of err.
func (f *CheckoutFlow) fail(ctx context.Context, err error) domain.Flow {
	ev := domain.Event{To: domain.FlowFailed, Reason: backend.UserMessage(err)}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		ev.Reason = vErr.Op
		ev.Details = vErr.Reasons
	}
	f.log.ErrorContext(ctx, "checkout flow failed", "state", f.State().State, "error", err)

	next, tErr := f.transition(ctx, ev)
	if tErr != nil {
		return f.State()
	}
	return next
}

func (f *CheckoutFlow) transition(ctx context.Context, ev domain.Event) (domain.Flow, error) {
	f.mu.Lock()
	prev := f.state
	next, err := prev.Next(ev)
	if err != nil {
		f.mu.Unlock()
		f.log.ErrorContext(ctx, "rejected flow transition", "error", err)
		return prev, err
	}
	f.state = next
	f.mu.Unlock()

	f.log.InfoContext(ctx, "flow transition",
		"from", prev.State, "to", next.State, "order_id", next.OrderID, "checkout_id", next.CheckoutID)
	f.rec.ObserveTransition(prev.State.String(), next.State.String())
	f.publish(ctx, prev, next)
	return next, nil
}

func (f *CheckoutFlow) publish(ctx context.Context, prev, next domain.Flow) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	err := f.events.Publish(ctx, publisher.FlowEvent{
		UserKey:       f.identity.UserKey(),
		From:          prev.State.String(),
		To:            next.State.String(),
		CheckoutID:    next.CheckoutID,
		OrderID:       next.OrderID,
		PaymentMethod: string(next.PaymentMethod),
		Reason:        next.Reason,
		Attempts:      next.Attempts,
		OccurredAt:    next.UpdatedAt,
	})
	if err != nil {
		f.log.WarnContext(ctx, "flow event not published", "to", next.State, "error", err)
	}
}

func (f *CheckoutFlow) refreshCart(ctx context.Context) {
	if _, err := f.cart.Load(ctx); err != nil {
		f.log.WarnContext(ctx, "cart refresh after order failed", "error", err)
	}
}

func paymentFailedReason(status domain.PaymentStatus) string {
	return fmt.Sprintf("Payment %s. You can retry the payment.", status)
}
