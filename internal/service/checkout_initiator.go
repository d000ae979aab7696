package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/google/uuid"
)

// CheckoutInitiator turns the cart into a server-side checkout, at most once
// per attempt. Later cart changes do not update an existing checkout; only
// the payment method can be patched.
type CheckoutInitiator struct {
	backend CheckoutBackend
	log     *slog.Logger

	mu         sync.Mutex
	current    *domain.Checkout
	attemptKey string
}

func NewCheckoutInitiator(b CheckoutBackend, log *slog.Logger) *CheckoutInitiator {
	return &CheckoutInitiator{
		backend:    b,
		log:        log.With("component", "checkout_initiator"),
		attemptKey: uuid.NewString(),
	}
}

// CreateCheckout validates items, creates a checkout and validates the
// response. Nothing is stored unless every step passes.
func (c *CheckoutInitiator) CreateCheckout(ctx context.Context, items []domain.CartItem) (*domain.Checkout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.create(ctx, items)
}

// EnsureCheckout returns the attempt's checkout, creating it if none exists.
func (c *CheckoutInitiator) EnsureCheckout(ctx context.Context, items []domain.CartItem) (*domain.Checkout, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		checkout := *c.current
		return &checkout, false, nil
	}
	checkout, err := c.create(ctx, items)
	return checkout, err == nil, err
}

func (c *CheckoutInitiator) create(ctx context.Context, items []domain.CartItem) (*domain.Checkout, error) {
	if err := domain.ValidateCartItems(items).Err(); err != nil {
		return nil, err
	}

	raw, err := c.backend.CreateCheckout(ctx, domain.NewCreateCheckoutRequest(items), c.attemptKey)
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	checkout, err := domain.ParseCheckout(raw)
	if err != nil {
		c.log.ErrorContext(ctx, "checkout response rejected", "error", err)
		return nil, err
	}

	c.current = checkout
	c.log.InfoContext(ctx, "checkout created", "checkout_id", checkout.ID, "total", checkout.TotalAmount)
	out := *checkout
	return &out, nil
}

// Current returns a copy of the active checkout, or nil.
func (c *CheckoutInitiator) Current() *domain.Checkout {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	checkout := *c.current
	return &checkout
}

// Reset ends the attempt. The next EnsureCheckout creates a new checkout.
func (c *CheckoutInitiator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.attemptKey = uuid.NewString()
}

func (c *CheckoutInitiator) UpdatePaymentMethod(ctx context.Context, method domain.PaymentMethod) error {
	if !method.Valid() {
		return &domain.ValidationError{Op: "invalid payment method", Reasons: []string{fmt.Sprintf("Unknown payment method %q", method)}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ErrNoCheckout
	}
	if err := c.backend.UpdatePaymentMethod(ctx, c.current.ID, method); err != nil {
		return fmt.Errorf("update payment method: %w", err)
	}
	c.current.PaymentMethod = method
	return nil
}
