package domain

import (
	"fmt"
	"strings"
)

// ValidationError lists every reason an input was rejected.
type ValidationError struct {
	Op      string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, strings.Join(e.Reasons, "; "))
}

type CartValidation struct {
	Valid      bool
	Errors     []string
	TotalPrice float64
}

// Err returns nil for a valid cart.
func (v CartValidation) Err() error {
	if v.Valid {
		return nil
	}
	return &ValidationError{Op: "invalid cart", Reasons: v.Errors}
}

func ValidateCartItems(items []CartItem) CartValidation {
	if len(items) == 0 {
		return CartValidation{Errors: []string{"Cart is empty"}}
	}

	var errs []string
	var total float64
	for i, item := range items {
		n := i + 1
		if item.ProductID <= 0 {
			errs = append(errs, fmt.Sprintf("Item %d: missing productId", n))
		}
		if item.Quantity < 1 {
			errs = append(errs, fmt.Sprintf("Item %d: quantity must be at least 1", n))
		}
		switch {
		case item.Price == nil:
			errs = append(errs, fmt.Sprintf("Item %d: missing price", n))
		case *item.Price < 0:
			errs = append(errs, fmt.Sprintf("Item %d: price must not be negative", n))
		default:
			total += *item.Price * float64(item.Quantity)
		}
	}

	if len(errs) > 0 {
		return CartValidation{Errors: errs}
	}
	return CartValidation{Valid: true, TotalPrice: total}
}

// ValidateShippingAddress returns nil when the address can be used for an order.
func ValidateShippingAddress(a ShippingAddress) error {
	var errs []string
	required := []struct {
		name  string
		value string
	}{
		{"contactName", a.ContactName},
		{"phone", a.Phone},
		{"addressLine1", a.AddressLine1},
		{"city", a.City},
		{"zipCode", a.ZipCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Sprintf("Missing %s", f.name))
		}
	}

	if a.Phone != "" && countDigits(a.Phone) < 10 {
		errs = append(errs, "Phone number must have at least 10 digits")
	}
	if a.ZipCode != "" && countDigits(a.ZipCode) < 5 {
		errs = append(errs, "Zip code must have at least 5 digits")
	}

	if len(errs) > 0 {
		return &ValidationError{Op: "invalid shipping address", Reasons: errs}
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
