package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
)

type CartBackend interface {
	GetCartItems(ctx context.Context) ([]domain.CartItem, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, productID int64) error
	RemoveCartItems(ctx context.Context, productIDs []int64) error
	UpdateCartItem(ctx context.Context, productID int64, quantity int) error
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
}

type CheckoutBackend interface {
	CreateCheckout(ctx context.Context, req domain.CreateCheckoutRequest, idempotencyKey string) (json.RawMessage, error)
	UpdatePaymentMethod(ctx context.Context, checkoutID string, method domain.PaymentMethod) error
}

type OrderBackend interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (json.RawMessage, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

type PaymentBackend interface {
	InitiatePayment(ctx context.Context, orderID int64) (json.RawMessage, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

type AddressBackend interface {
	ListAddresses(ctx context.Context) ([]domain.ShippingAddress, error)
	GetAddress(ctx context.Context, id int64) (*domain.ShippingAddress, error)
	CreateAddress(ctx context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error)
	UpdateAddress(ctx context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error)
	DeleteAddress(ctx context.Context, id int64) error
}

// Identity names the user whose client-side state is being touched.
type Identity interface {
	UserKey() string
}

type Recorder interface {
	ObserveTransition(from, to string)
	ObservePoll(poll, outcome string, attempts int)
	ObserveCartOp(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(string, string) {}
func (nopRecorder) ObservePoll(string, string, int)  {}
func (nopRecorder) ObserveCartOp(string, error)      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
