package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/checkout-client/internal/backend"
	"github.com/fjod/go_cart/checkout-client/internal/cache"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/poller"
	"github.com/fjod/go_cart/checkout-client/internal/publisher"
	"github.com/redis/go-redis/v9"
)

var errNotFound = &backend.APIError{StatusCode: http.StatusNotFound, Message: "Order not found"}

// fakeShop is an in-memory shop backend.
type fakeShop struct {
	mu sync.Mutex

	cart          []domain.CartItem
	products      map[int64]domain.Product
	productErr    map[int64]error
	getCartErr    error
	addErr        error
	removeErr     error
	bulkRemoveErr error
	updateErr     error
	getCartCalls  int
	bulkRemoved   [][]int64

	checkoutResp   string
	checkoutErr    error
	checkoutReqs   []domain.CreateCheckoutRequest
	checkoutKeys   []string
	paymentMethods []domain.PaymentMethod
	methodErr      error

	orderResp     string
	orderErr      error
	orderReqs     []domain.CreateOrderRequest
	orderKeys     []string
	getOrder      func(call int) (*domain.Order, error)
	getOrderCalls int

	initiateResp  string
	initiateErr   error
	initiateCalls int

	addresses  map[int64]domain.ShippingAddress
	nextAddrID int64
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		products:   map[int64]domain.Product{},
		productErr: map[int64]error{},
		addresses:  map[int64]domain.ShippingAddress{},
		nextAddrID: 100,
	}
}

func (f *fakeShop) GetCartItems(context.Context) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCartCalls++
	if f.getCartErr != nil {
		return nil, f.getCartErr
	}
	out := make([]domain.CartItem, len(f.cart))
	copy(out, f.cart)
	return out, nil
}

func (f *fakeShop) AddCartItem(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for i := range f.cart {
		if f.cart[i].ProductID == productID {
			f.cart[i].Quantity += quantity
			return nil
		}
	}
	f.cart = append(f.cart, domain.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (f *fakeShop) RemoveCartItem(_ context.Context, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	kept := f.cart[:0]
	for _, item := range f.cart {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	f.cart = kept
	return nil
}

func (f *fakeShop) RemoveCartItems(_ context.Context, productIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkRemoved = append(f.bulkRemoved, productIDs)
	if f.bulkRemoveErr != nil {
		return f.bulkRemoveErr
	}
	f.cart = nil
	return nil
}

func (f *fakeShop) UpdateCartItem(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.cart {
		if f.cart[i].ProductID == productID {
			f.cart[i].Quantity = quantity
		}
	}
	return nil
}

func (f *fakeShop) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.productErr[productID]; err != nil {
		return nil, err
	}
	p, ok := f.products[productID]
	if !ok {
		return nil, &backend.APIError{StatusCode: http.StatusNotFound}
	}
	return &p, nil
}

func (f *fakeShop) CreateCheckout(_ context.Context, req domain.CreateCheckoutRequest, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkoutReqs = append(f.checkoutReqs, req)
	f.checkoutKeys = append(f.checkoutKeys, key)
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return json.RawMessage(f.checkoutResp), nil
}

func (f *fakeShop) UpdatePaymentMethod(_ context.Context, _ string, method domain.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.methodErr != nil {
		return f.methodErr
	}
	f.paymentMethods = append(f.paymentMethods, method)
	return nil
}

func (f *fakeShop) CreateOrder(_ context.Context, req domain.CreateOrderRequest, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderReqs = append(f.orderReqs, req)
	f.orderKeys = append(f.orderKeys, key)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return json.RawMessage(f.orderResp), nil
}

func (f *fakeShop) GetOrder(_ context.Context, _ int64) (*domain.Order, error) {
	f.mu.Lock()
	f.getOrderCalls++
	call := f.getOrderCalls
	fn := f.getOrder
	f.mu.Unlock()
	if fn == nil {
		return nil, errNotFound
	}
	return fn(call)
}

func (f *fakeShop) InitiatePayment(_ context.Context, _ int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiateCalls++
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return json.RawMessage(f.initiateResp), nil
}

func (f *fakeShop) ListAddresses(context.Context) ([]domain.ShippingAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ShippingAddress, 0, len(f.addresses))
	for _, a := range f.addresses {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeShop) GetAddress(_ context.Context, id int64) (*domain.ShippingAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[id]
	if !ok {
		return nil, &backend.APIError{StatusCode: http.StatusNotFound, Message: "Address not found"}
	}
	return &a, nil
}

func (f *fakeShop) CreateAddress(_ context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextAddrID++
	a.ID = f.nextAddrID
	f.addresses[a.ID] = a
	return &a, nil
}

func (f *fakeShop) UpdateAddress(_ context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.addresses[a.ID]; !ok {
		return nil, &backend.APIError{StatusCode: http.StatusNotFound}
	}
	f.addresses[a.ID] = a
	return &a, nil
}

func (f *fakeShop) DeleteAddress(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.addresses, id)
	return nil
}

type fakeIdentity string

func (f fakeIdentity) UserKey() string { return string(f) }

type fakeRecorder struct {
	mu          sync.Mutex
	transitions []string
	polls       []string
	cartOps     []string
}

func (r *fakeRecorder) ObserveTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+">"+to)
}

func (r *fakeRecorder) ObservePoll(poll, outcome string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = append(r.polls, poll+":"+outcome)
}

func (r *fakeRecorder) ObserveCartOp(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.cartOps = append(r.cartOps, op+":"+result)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publisher.FlowEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev publisher.FlowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

// fakeClock fires immediately and records every requested wait.
type fakeClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

func availabilityPolicy(clock *fakeClock) poller.Policy {
	return poller.Policy{Interval: time.Second, MaxAttempts: 6, After: clock.After}
}

func paymentPolicy(clock *fakeClock) poller.Policy {
	return poller.Policy{Interval: 5 * time.Second, MaxAttempts: 60, After: clock.After}
}

func setupTestRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisCache(client), mr
}

func orderWithStatus(id int64, status domain.PaymentStatus) *domain.Order {
	return &domain.Order{ID: id, Status: "PENDING", PaymentStatus: status}
}

func savedAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		ID:           7,
		ContactName:  "Jane Doe",
		Phone:        "0901234567",
		AddressLine1: "1 Main St",
		City:         "Hanoi",
		ZipCode:      "100000",
	}
}
