package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/go_cart/checkout-client/internal/backend"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/poller"
)

type PlaceOrderRequest struct {
	Items         []domain.CartItem
	Address       *domain.ShippingAddress
	Email         string
	Phone         string
	Note          string
	PromotionCode string
}

type PlacedOrder struct {
	OrderID int64
	Order   *domain.Order
	// Confirmed is false when the order never became readable within the
	// availability budget. The order still exists.
	Confirmed bool
	Attempts  int
}

type OrderPlacer struct {
	backend   OrderBackend
	checkouts *CheckoutInitiator
	policy    poller.Policy
	rec       Recorder
	log       *slog.Logger
}

func NewOrderPlacer(b OrderBackend, checkouts *CheckoutInitiator, policy poller.Policy, rec Recorder, log *slog.Logger) *OrderPlacer {
	return &OrderPlacer{
		backend:   b,
		checkouts: checkouts,
		policy:    policy,
		rec:       recorderOrNop(rec),
		log:       log.With("component", "order_placer"),
	}
}

// PlaceOrder creates the order and waits for it to become readable.
func (p *OrderPlacer) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlacedOrder, error) {
	orderID, err := p.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.AwaitAvailability(ctx, orderID)
}

// CreateOrder checks preconditions and submits the order. Without a checkout
// it starts creating one and returns ErrCheckoutNotReady.
func (p *OrderPlacer) CreateOrder(ctx context.Context, req PlaceOrderRequest) (int64, error) {
	if err := validatePlaceOrder(req); err != nil {
		return 0, err
	}

	checkout := p.checkouts.Current()
	if checkout == nil {
		if _, err := p.checkouts.CreateCheckout(ctx, req.Items); err != nil {
			p.log.WarnContext(ctx, "checkout re-creation failed", "error", err)
		}
		return 0, ErrCheckoutNotReady
	}

	orderReq := domain.CreateOrderRequest{
		CheckoutID:        checkout.ID,
		Email:             strings.TrimSpace(req.Email),
		Note:              req.Note,
		PromotionCode:     strings.TrimSpace(req.PromotionCode),
		ShippingAddressID: req.Address.ID,
		Items:             domain.OrderLines(req.Items),
	}
	raw, err := p.backend.CreateOrder(ctx, orderReq, "order-"+checkout.ID)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	orderID, err := domain.ExtractOrderID(raw)
	if err != nil {
		p.log.ErrorContext(ctx, "create order response without id", "checkout_id", checkout.ID, "body", string(raw))
		return 0, err
	}
	p.log.InfoContext(ctx, "order created", "order_id", orderID, "checkout_id", checkout.ID)
	return orderID, nil
}

// AwaitAvailability polls until the order is readable. Not-found responses
// are expected while the backend catches up; any other error is fatal.
// Running out of attempts is not an error: the order is returned unconfirmed.
func (p *OrderPlacer) AwaitAvailability(ctx context.Context, orderID int64) (*PlacedOrder, error) {
	placed := &PlacedOrder{OrderID: orderID}

	attempts, err := p.policy.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		order, err := p.backend.GetOrder(ctx, orderID)
		if backend.IsNotFound(err) {
			p.log.DebugContext(ctx, "order not readable yet", "order_id", orderID, "attempt", attempt)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		placed.Order = order
		return true, nil
	})
	placed.Attempts = attempts

	switch {
	case err == nil:
		placed.Confirmed = true
		p.rec.ObservePoll("order_availability", "available", attempts)
		return placed, nil
	case errors.Is(err, poller.ErrExhausted):
		p.rec.ObservePoll("order_availability", "unconfirmed", attempts)
		p.log.WarnContext(ctx, "order created but not confirmed", "order_id", orderID, "attempts", attempts)
		return placed, nil
	default:
		p.rec.ObservePoll("order_availability", "error", attempts)
		return placed, fmt.Errorf("confirm order %d: %w", orderID, err)
	}
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	if err := domain.ValidateCartItems(req.Items).Err(); err != nil {
		return err
	}
	if req.Address == nil || req.Address.ID <= 0 {
		return ErrNoAddress
	}
	if err := domain.ValidateShippingAddress(*req.Address); err != nil {
		return err
	}

	var reasons []string
	if strings.TrimSpace(req.Email) == "" {
		reasons = append(reasons, "Missing contact email")
	}
	if strings.TrimSpace(req.Phone) == "" {
		reasons = append(reasons, "Missing contact phone")
	}
	if len(reasons) > 0 {
		return &domain.ValidationError{Op: "invalid contact", Reasons: reasons}
	}
	return nil
}
