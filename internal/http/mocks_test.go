package http

import (
	"context"
	"net/url"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/service"
)

type CartMock struct {
	items   []domain.CartItem
	errMsg  string
	err     error
	added   []domain.Product
	updated map[int64]int
	cleared bool
}

func (c *CartMock) Load(context.Context) ([]domain.CartItem, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.items, nil
}

func (c *CartMock) Items() []domain.CartItem { return c.items }

func (c *CartMock) Total() float64 { return domain.CartTotal(c.items) }

func (c *CartMock) Count() int { return domain.CartCount(c.items) }

func (c *CartMock) Err() string { return c.errMsg }

func (c *CartMock) AddToCart(_ context.Context, product domain.Product, quantity int) ([]domain.CartItem, error) {
	c.added = append(c.added, product)
	if c.err != nil {
		return c.items, c.err
	}
	c.items = append(c.items, domain.CartItem{ProductID: product.ID, Quantity: quantity, Price: domain.Amount(10)})
	return c.items, nil
}

func (c *CartMock) UpdateQuantity(_ context.Context, productID int64, quantity int) ([]domain.CartItem, error) {
	if c.updated == nil {
		c.updated = map[int64]int{}
	}
	c.updated[productID] = quantity
	return c.items, c.err
}

func (c *CartMock) RemoveFromCart(context.Context, int64) ([]domain.CartItem, error) {
	return c.items, c.err
}

func (c *CartMock) ClearCart(context.Context) error {
	c.cleared = true
	c.items = nil
	return nil
}

type FlowMock struct {
	flow      domain.Flow
	err       error
	submitted []service.SubmitRequest
	query     url.Values
	retried   int64
}

func (f *FlowMock) Submit(_ context.Context, req service.SubmitRequest) (domain.Flow, error) {
	f.submitted = append(f.submitted, req)
	return f.flow, f.err
}

func (f *FlowMock) HandleReturn(_ context.Context, query url.Values) (domain.Flow, error) {
	f.query = query
	return f.flow, f.err
}

func (f *FlowMock) RetryPayment(_ context.Context, orderID int64) (domain.Flow, error) {
	f.retried = orderID
	return f.flow, f.err
}

func (f *FlowMock) Reset(context.Context) (domain.Flow, error) {
	return domain.NewFlow(), f.err
}

func (f *FlowMock) State() domain.Flow { return f.flow }

type AddressMock struct {
	addrs   []domain.ShippingAddress
	err     error
	deleted []int64
}

func (a *AddressMock) List(context.Context) ([]domain.ShippingAddress, error) {
	return a.addrs, a.err
}

func (a *AddressMock) Create(_ context.Context, addr domain.ShippingAddress) (*domain.ShippingAddress, error) {
	if a.err != nil {
		return nil, a.err
	}
	if err := domain.ValidateShippingAddress(addr); err != nil {
		return nil, err
	}
	addr.ID = 11
	return &addr, nil
}

func (a *AddressMock) Update(_ context.Context, addr domain.ShippingAddress) (*domain.ShippingAddress, error) {
	if a.err != nil {
		return nil, a.err
	}
	if err := domain.ValidateShippingAddress(addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (a *AddressMock) Delete(_ context.Context, id int64) error {
	if a.err != nil {
		return a.err
	}
	a.deleted = append(a.deleted, id)
	return nil
}

type SessionMock struct {
	data    domain.SessionData
	expires time.Time
	saved   []domain.SessionData
	cleared bool
	err     error
}

func (s *SessionMock) Save(_ context.Context, data domain.SessionData) error {
	if s.err != nil {
		return s.err
	}
	s.data = data
	s.saved = append(s.saved, data)
	return nil
}

func (s *SessionMock) Clear(context.Context) error {
	s.cleared = true
	s.data = domain.SessionData{}
	return s.err
}

func (s *SessionMock) Authenticated() bool { return s.data.AccessToken != "" }

func (s *SessionMock) User() *domain.User { return s.data.User }

func (s *SessionMock) RefreshToken() string { return s.data.RefreshToken }

func (s *SessionMock) ExpiresAt() (time.Time, bool) { return s.expires, !s.expires.IsZero() }
