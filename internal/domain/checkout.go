package domain

import (
	"encoding/json"
	"fmt"
)

type Checkout struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Items         []CheckoutItem `json:"items"`
	TotalAmount   float64        `json:"totalAmount"`
	PaymentMethod PaymentMethod  `json:"paymentMethod,omitempty"`
}

type CheckoutItem struct {
	ProductID int64    `json:"productId"`
	Quantity  int      `json:"quantity"`
	Price     *float64 `json:"price,omitempty"`
	Name      string   `json:"name,omitempty"`
}

type CreateCheckoutRequest struct {
	Items []CheckoutLine `json:"items"`
}

type CheckoutLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func NewCreateCheckoutRequest(items []CartItem) CreateCheckoutRequest {
	lines := make([]CheckoutLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, CheckoutLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return CreateCheckoutRequest{Items: lines}
}

// ParseCheckout validates a create-checkout response. A checkout missing any
// of id, status, items or a non-negative totalAmount is rejected as a whole.
func ParseCheckout(raw json.RawMessage) (*Checkout, error) {
	raw = Unwrap(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ValidationError{Op: "invalid checkout response", Reasons: []string{"Response is not an object"}}
	}

	var errs []string
	id, ok := idString(fields["id"])
	if !ok {
		id, ok = idString(fields["checkoutId"])
	}
	if !ok {
		errs = append(errs, "Missing checkout id")
	}

	var status string
	if s, ok := fields["status"]; !ok || json.Unmarshal(s, &status) != nil || status == "" {
		errs = append(errs, "Missing checkout status")
	}

	var items []CheckoutItem
	if rawItems, ok := fields["items"]; !ok || isNull(rawItems) || json.Unmarshal(rawItems, &items) != nil {
		errs = append(errs, "Missing items array")
	}

	var total float64
	if rawTotal, ok := fields["totalAmount"]; !ok || isNull(rawTotal) {
		errs = append(errs, "Missing total amount")
	} else if err := json.Unmarshal(rawTotal, &total); err != nil || total < 0 {
		errs = append(errs, "Invalid total amount")
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Op: "invalid checkout response", Reasons: errs}
	}

	checkout := &Checkout{ID: id, Status: status, Items: items, TotalAmount: total}
	if rawMethod, ok := fields["paymentMethod"]; ok {
		_ = json.Unmarshal(rawMethod, &checkout.PaymentMethod)
	}
	if checkout.Items == nil {
		checkout.Items = []CheckoutItem{}
	}
	return checkout, nil
}

func (c Checkout) String() string {
	return fmt.Sprintf("checkout %s (%s, %d items, %.2f)", c.ID, c.Status, len(c.Items), c.TotalAmount)
}
