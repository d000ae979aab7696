package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
)

// GetCartItems accepts either a bare array or an object with an items field.
func (c *Client) GetCartItems(ctx context.Context) ([]domain.CartItem, error) {
	raw, err := c.do(ctx, http.MethodGet, "/cart/items", "/cart/items", nil)
	if err != nil {
		return nil, err
	}
	if t := bytes.TrimSpace(raw); len(t) == 0 || string(t) == "null" {
		return []domain.CartItem{}, nil
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return decode[[]domain.CartItem](raw, "cart items")
	}
	wrapped, err := decode[struct {
		Items []domain.CartItem `json:"items"`
	}](raw, "cart items")
	if err != nil {
		return nil, err
	}
	if wrapped.Items == nil {
		return []domain.CartItem{}, nil
	}
	return wrapped.Items, nil
}

func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) error {
	body := map[string]any{"productId": productID, "quantity": quantity}
	_, err := c.do(ctx, http.MethodPost, "/cart/items", "/cart/items", body)
	return err
}

func (c *Client) RemoveCartItem(ctx context.Context, productID int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/items/{id}", fmt.Sprintf("/cart/items/%d", productID), nil)
	return err
}

func (c *Client) RemoveCartItems(ctx context.Context, productIDs []int64) error {
	body := map[string]any{"productIds": productIDs}
	_, err := c.do(ctx, http.MethodDelete, "/cart/items", "/cart/items", body)
	return err
}

func (c *Client) UpdateCartItem(ctx context.Context, productID int64, quantity int) error {
	body := map[string]any{"quantity": quantity}
	_, err := c.do(ctx, http.MethodPut, "/cart/items/{id}", fmt.Sprintf("/cart/items/%d", productID), body)
	return err
}

func (c *Client) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	raw, err := c.do(ctx, http.MethodGet, "/products/{id}", fmt.Sprintf("/products/%d", productID), nil)
	if err != nil {
		return nil, err
	}
	p, err := decode[domain.Product](raw, "product")
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateCheckout returns the raw response; callers validate it with domain.ParseCheckout.
func (c *Client) CreateCheckout(ctx context.Context, req domain.CreateCheckoutRequest, idempotencyKey string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/checkouts", "/checkouts", req, WithIdempotencyKey(idempotencyKey))
}

func (c *Client) UpdatePaymentMethod(ctx context.Context, checkoutID string, method domain.PaymentMethod) error {
	body := map[string]any{"method": method}
	_, err := c.do(ctx, http.MethodPut, "/checkouts/{id}/payment-method",
		fmt.Sprintf("/checkouts/%s/payment-method", url.PathEscape(checkoutID)), body)
	return err
}

// CreateOrder returns the raw response; callers extract the id with domain.ExtractOrderID.
func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/orders", "/orders", req, WithIdempotencyKey(idempotencyKey))
}

func (c *Client) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	raw, err := c.do(ctx, http.MethodGet, "/orders/{id}", fmt.Sprintf("/orders/%d", orderID), nil)
	if err != nil {
		return nil, err
	}
	o, err := decode[domain.Order](raw, "order")
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InitiatePayment returns the raw response; callers validate it with domain.ParsePaymentSession.
func (c *Client) InitiatePayment(ctx context.Context, orderID int64) (json.RawMessage, error) {
	body := map[string]any{"orderId": orderID}
	return c.do(ctx, http.MethodPost, "/payments/initiate", "/payments/initiate", body)
}

func (c *Client) ListAddresses(ctx context.Context) ([]domain.ShippingAddress, error) {
	raw, err := c.do(ctx, http.MethodGet, "/addresses", "/addresses", nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []domain.ShippingAddress{}, nil
	}
	return decode[[]domain.ShippingAddress](raw, "addresses")
}

func (c *Client) GetAddress(ctx context.Context, id int64) (*domain.ShippingAddress, error) {
	raw, err := c.do(ctx, http.MethodGet, "/addresses/{id}", fmt.Sprintf("/addresses/%d", id), nil)
	if err != nil {
		return nil, err
	}
	a, err := decode[domain.ShippingAddress](raw, "address")
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) CreateAddress(ctx context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error) {
	raw, err := c.do(ctx, http.MethodPost, "/addresses", "/addresses", a)
	if err != nil {
		return nil, err
	}
	created, err := decode[domain.ShippingAddress](raw, "address")
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateAddress(ctx context.Context, a domain.ShippingAddress) (*domain.ShippingAddress, error) {
	raw, err := c.do(ctx, http.MethodPut, "/addresses/{id}", fmt.Sprintf("/addresses/%d", a.ID), a)
	if err != nil {
		return nil, err
	}
	updated, err := decode[domain.ShippingAddress](raw, "address")
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/addresses/{id}", fmt.Sprintf("/addresses/%d", id), nil)
	return err
}
