package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCartTTL   = 7 * 24 * time.Hour
	defaultMarkerTTL = time.Hour
)

type Option func(*RedisCache)

func WithCartTTL(ttl time.Duration) Option {
	return func(r *RedisCache) {
		if ttl > 0 {
			r.baseTTL = ttl
		}
	}
}

func WithMarkerTTL(ttl time.Duration) Option {
	return func(r *RedisCache) {
		if ttl > 0 {
			r.markerTTL = ttl
		}
	}
}

func NewRedisCache(client *redis.Client, opts ...Option) *RedisCache {
	r := &RedisCache{
		client:    client,
		baseTTL:   defaultCartTTL,
		markerTTL: defaultMarkerTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RedisCache implements CartCache, PaymentMarkerStore and SessionStore.
type RedisCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	markerTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userKey string) ([]domain.CartItem, error) {
	var items []domain.CartItem
	if err := r.getJSON(ctx, cacheKey(userKey), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RedisCache) Set(ctx context.Context, userKey string, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	return r.setJSON(ctx, cacheKey(userKey), items, r.baseTTL+jitter)
}

func (r *RedisCache) Delete(ctx context.Context, userKey string) error {
	return r.del(ctx, cacheKey(userKey))
}

func (r *RedisCache) GetPending(ctx context.Context, userKey string) (*domain.PendingPayment, error) {
	var p domain.PendingPayment
	if err := r.getJSON(ctx, paymentKey(userKey), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RedisCache) SetPending(ctx context.Context, userKey string, p domain.PendingPayment) error {
	return r.setJSON(ctx, paymentKey(userKey), p, r.markerTTL)
}

func (r *RedisCache) ClearPending(ctx context.Context, userKey string) error {
	return r.del(ctx, paymentKey(userKey))
}

func (r *RedisCache) GetSession(ctx context.Context, key string) (*domain.SessionData, error) {
	var s domain.SessionData
	if err := r.getJSON(ctx, sessionKey(key), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSession stores without expiry; token expiry is checked by the session itself.
func (r *RedisCache) SetSession(ctx context.Context, key string, data domain.SessionData) error {
	return r.setJSON(ctx, sessionKey(key), data, 0)
}

func (r *RedisCache) DeleteSession(ctx context.Context, key string) error {
	return r.del(ctx, sessionKey(key))
}

func (r *RedisCache) getJSON(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userKey string) string {
	return fmt.Sprintf("cart:%s", userKey)
}

func paymentKey(userKey string) string {
	return fmt.Sprintf("payment:pending:%s", userKey)
}

func sessionKey(key string) string {
	return fmt.Sprintf("session:%s", key)
}
