package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
)

// CartCache holds the last enriched cart. It is a fallback, never the source of truth.
type CartCache interface {
	Get(ctx context.Context, userKey string) ([]domain.CartItem, error)
	Set(ctx context.Context, userKey string, items []domain.CartItem) error
	Delete(ctx context.Context, userKey string) error
}

// PaymentMarkerStore remembers a redirect payment across the gateway round-trip.
type PaymentMarkerStore interface {
	GetPending(ctx context.Context, userKey string) (*domain.PendingPayment, error)
	SetPending(ctx context.Context, userKey string, p domain.PendingPayment) error
	ClearPending(ctx context.Context, userKey string) error
}

type SessionStore interface {
	GetSession(ctx context.Context, key string) (*domain.SessionData, error)
	SetSession(ctx context.Context, key string, data domain.SessionData) error
	DeleteSession(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")
