package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
)

// AddressBook manages the user's saved shipping addresses.
type AddressBook struct {
	backend AddressBackend
}

func NewAddressBook(b AddressBackend) *AddressBook {
	return &AddressBook{backend: b}
}

func (a *AddressBook) List(ctx context.Context) ([]domain.ShippingAddress, error) {
	return a.backend.ListAddresses(ctx)
}

func (a *AddressBook) Get(ctx context.Context, id int64) (*domain.ShippingAddress, error) {
	if id <= 0 {
		return nil, ErrNoAddress
	}
	return a.backend.GetAddress(ctx, id)
}

func (a *AddressBook) Create(ctx context.Context, addr domain.ShippingAddress) (*domain.ShippingAddress, error) {
	if err := domain.ValidateShippingAddress(addr); err != nil {
		return nil, err
	}
	addr.ID = 0
	created, err := a.backend.CreateAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	return created, nil
}

func (a *AddressBook) Update(ctx context.Context, addr domain.ShippingAddress) (*domain.ShippingAddress, error) {
	if addr.ID <= 0 {
		return nil, ErrNoAddress
	}
	if err := domain.ValidateShippingAddress(addr); err != nil {
		return nil, err
	}
	return a.backend.UpdateAddress(ctx, addr)
}

func (a *AddressBook) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNoAddress
	}
	return a.backend.DeleteAddress(ctx, id)
}

// Resolve picks the address for an order: a new one is validated and saved,
// otherwise the saved address id is fetched.
func (a *AddressBook) Resolve(ctx context.Context, id int64, newAddr *domain.ShippingAddress) (*domain.ShippingAddress, error) {
	if newAddr != nil {
		return a.Create(ctx, *newAddr)
	}
	return a.Get(ctx, id)
}
