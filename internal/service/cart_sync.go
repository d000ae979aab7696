package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/backend"
	"github.com/fjod/go_cart/checkout-client/internal/cache"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const enrichConcurrency = 8

// Mutation is one cart change: Apply edits local state before the server
// answers, Commit performs the server call. Reconciliation always follows.
type Mutation struct {
	Op     string
	Apply  func(items []domain.CartItem) []domain.CartItem
	Commit func(ctx context.Context) error
}

// CartSynchronizer keeps a local cart view reconciled with the server cart.
type CartSynchronizer struct {
	backend  CartBackend
	cache    cache.CartCache
	identity Identity
	rec      Recorder
	log      *slog.Logger

	// mutate serializes mutations and loads so a stale fetch never
	// overwrites a newer reconcile.
	mutate sync.Mutex
	sfg    singleflight.Group

	mu      sync.RWMutex
	items   []domain.CartItem
	lastErr string
}

func NewCartSynchronizer(b CartBackend, c cache.CartCache, identity Identity, rec Recorder, log *slog.Logger) *CartSynchronizer {
	return &CartSynchronizer{
		backend:  b,
		cache:    c,
		identity: identity,
		rec:      recorderOrNop(rec),
		log:      log.With("component", "cart_sync"),
		items:    []domain.CartItem{},
	}
}

// Items returns a copy of the current local view.
func (s *CartSynchronizer) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *CartSynchronizer) Total() float64 {
	return domain.CartTotal(s.Items())
}

func (s *CartSynchronizer) Count() int {
	return domain.CartCount(s.Items())
}

// Err is the user-facing message of the last failed operation, or "".
func (s *CartSynchronizer) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *CartSynchronizer) setItems(items []domain.CartItem) {
	if items == nil {
		items = []domain.CartItem{}
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *CartSynchronizer) setErr(err error) {
	msg := ""
	if err != nil {
		msg = backend.UserMessage(err)
	}
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Load fetches the server cart. When the server is unreachable it falls back
// to the cached copy and records the error. Concurrent loads share one fetch.
func (s *CartSynchronizer) Load(ctx context.Context) ([]domain.CartItem, error) {
	key := s.identity.UserKey()
	v, err, _ := s.sfg.Do("load:"+key, func() (interface{}, error) {
		s.mutate.Lock()
		defer s.mutate.Unlock()

		items, err := s.reconcile(ctx)
		if err == nil {
			return items, nil
		}

		s.log.WarnContext(ctx, "cart fetch failed, using cached cart", "error", err)
		cached, cacheErr := s.cache.Get(ctx, key)
		if cacheErr != nil {
			if !errors.Is(cacheErr, cache.ErrCacheMiss) {
				s.log.WarnContext(ctx, "cart cache read failed", "error", cacheErr)
			}
			return nil, fmt.Errorf("load cart: %w", err)
		}
		s.setItems(cached)
		return cached, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.CartItem), nil
}

// AddToCart adds quantity (default 1) of product.
func (s *CartSynchronizer) AddToCart(ctx context.Context, product domain.Product, quantity int) ([]domain.CartItem, error) {
	if product.ID <= 0 {
		return s.Items(), ErrInvalidProduct
	}
	if quantity < 1 {
		quantity = 1
	}
	return s.Run(ctx, Mutation{
		Op: "add",
		Apply: func(items []domain.CartItem) []domain.CartItem {
			for i := range items {
				if items[i].ProductID == product.ID {
					items[i].Quantity += quantity
					return items
				}
			}
			return append(items, domain.CartItem{ProductID: product.ID, Quantity: quantity}.Enrich(product))
		},
		Commit: func(ctx context.Context) error {
			return s.backend.AddCartItem(ctx, product.ID, quantity)
		},
	})
}

func (s *CartSynchronizer) RemoveFromCart(ctx context.Context, productID int64) ([]domain.CartItem, error) {
	return s.Run(ctx, Mutation{
		Op: "remove",
		Apply: func(items []domain.CartItem) []domain.CartItem {
			kept := items[:0]
			for _, item := range items {
				if item.ProductID != productID {
					kept = append(kept, item)
				}
			}
			return kept
		},
		Commit: func(ctx context.Context) error {
			return s.backend.RemoveCartItem(ctx, productID)
		},
	})
}

// UpdateQuantity removes the line when quantity drops below 1.
func (s *CartSynchronizer) UpdateQuantity(ctx context.Context, productID int64, quantity int) ([]domain.CartItem, error) {
	if quantity < 1 {
		return s.RemoveFromCart(ctx, productID)
	}
	return s.Run(ctx, Mutation{
		Op: "update",
		Apply: func(items []domain.CartItem) []domain.CartItem {
			for i := range items {
				if items[i].ProductID == productID {
					items[i].Quantity = quantity
				}
			}
			return items
		},
		Commit: func(ctx context.Context) error {
			return s.backend.UpdateCartItem(ctx, productID, quantity)
		},
	})
}

// ClearCart bulk-removes every line and empties local state even if the
// server call fails. There is no refetch.
func (s *CartSynchronizer) ClearCart(ctx context.Context) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	ids := domain.ProductIDs(s.Items())
	if len(ids) == 0 {
		return nil
	}

	err := s.backend.RemoveCartItems(ctx, ids)
	s.rec.ObserveCartOp("clear", err)
	if err != nil {
		s.log.WarnContext(ctx, "bulk remove failed, clearing local cart anyway", "error", err, "items", len(ids))
	}
	s.setErr(err)
	s.setItems(nil)
	s.persist(ctx, []domain.CartItem{})
	return nil
}

// Run executes m: apply, commit, then reconcile from a fresh server fetch.
// If both the commit and the refetch fail the optimistic change is rolled back.
func (s *CartSynchronizer) Run(ctx context.Context, m Mutation) ([]domain.CartItem, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	before := s.Items()
	if m.Apply != nil {
		s.setItems(m.Apply(s.Items()))
	}

	commitErr := m.Commit(ctx)
	s.rec.ObserveCartOp(m.Op, commitErr)
	if commitErr != nil {
		s.log.WarnContext(ctx, "cart mutation failed, reconciling", "op", m.Op, "error", commitErr)
	}

	items, fetchErr := s.reconcile(ctx)
	if fetchErr != nil {
		s.log.WarnContext(ctx, "cart reconcile failed", "op", m.Op, "error", fetchErr)
		if commitErr != nil {
			s.setItems(before)
		}
		items = s.Items()
	}

	switch {
	case commitErr != nil:
		s.setErr(commitErr)
		return items, fmt.Errorf("%s cart item: %w", m.Op, commitErr)
	case fetchErr != nil:
		s.setErr(fetchErr)
		return items, fmt.Errorf("reconcile cart after %s: %w", m.Op, fetchErr)
	}
	return items, nil
}

// reconcile replaces local state with an enriched server fetch and persists
// it. Callers hold s.mutate.
func (s *CartSynchronizer) reconcile(ctx context.Context) ([]domain.CartItem, error) {
	items, err := s.backend.GetCartItems(ctx)
	if err != nil {
		s.setErr(err)
		return nil, err
	}
	items = s.enrich(ctx, items)

	s.setItems(items)
	s.setErr(nil)
	s.persist(ctx, items)
	return s.Items(), nil
}

// enrich looks up every product concurrently. A failed lookup leaves the
// line as the server returned it.
func (s *CartSynchronizer) enrich(ctx context.Context, items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)

	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i := range out {
		i := i
		g.Go(func() error {
			p, err := s.backend.GetProduct(ctx, out[i].ProductID)
			if err != nil {
				s.log.DebugContext(ctx, "product enrichment failed", "product_id", out[i].ProductID, "error", err)
				return nil
			}
			out[i] = out[i].Enrich(*p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *CartSynchronizer) persist(ctx context.Context, items []domain.CartItem) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, s.identity.UserKey(), items); err != nil {
		s.log.WarnContext(ctx, "cart cache write failed", "error", err)
	}
}
