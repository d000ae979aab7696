package domain

import (
	"encoding/json"
	"errors"
)

var ErrNoOrderID = errors.New("create order did not return a numeric orderId")

type Order struct {
	ID              int64            `json:"id"`
	Status          string           `json:"status"`
	PaymentStatus   PaymentStatus    `json:"paymentStatus"`
	ShipmentStatus  string           `json:"shipmentStatus,omitempty"`
	TotalAmount     float64          `json:"totalAmount"`
	CheckoutID      string           `json:"checkoutId,omitempty"`
	PaymentMethod   PaymentMethod    `json:"paymentMethod,omitempty"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	Items           []OrderLine      `json:"items,omitempty"`
}

// UnmarshalJSON accepts the id under "orderId" or "id", as string or number.
func (o *Order) UnmarshalJSON(data []byte) error {
	type alias Order
	var aux struct {
		alias
		RawID         json.RawMessage `json:"id"`
		RawOrderID    json.RawMessage `json:"orderId"`
		RawCheckoutID json.RawMessage `json:"checkoutId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*o = Order(aux.alias)
	if id, ok := positiveID(aux.RawOrderID); ok {
		o.ID = id
	} else if id, ok := positiveID(aux.RawID); ok {
		o.ID = id
	}
	if id, ok := idString(aux.RawCheckoutID); ok {
		o.CheckoutID = id
	}
	return nil
}

type OrderLine struct {
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type CreateOrderRequest struct {
	CheckoutID        string      `json:"checkoutId"`
	Email             string      `json:"email"`
	Note              string      `json:"note"`
	PromotionCode     string      `json:"promotionCode,omitempty"`
	ShippingAddressID int64       `json:"shippingAddressId"`
	Items             []OrderLine `json:"items"`
}

// OrderLines re-derives order items from the live cart using the unit price.
func OrderLines(items []CartItem) []OrderLine {
	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice(),
		})
	}
	return lines
}

// ExtractOrderID reads the order id from a create-order response, with or
// without the data envelope.
func ExtractOrderID(raw json.RawMessage) (int64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(Unwrap(raw), &fields); err != nil {
		return 0, ErrNoOrderID
	}
	if id, ok := positiveID(fields["orderId"]); ok {
		return id, nil
	}
	if id, ok := positiveID(fields["id"]); ok {
		return id, nil
	}
	return 0, ErrNoOrderID
}
