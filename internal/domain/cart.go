package domain

type CartItem struct {
	ProductID     int64    `json:"productId"`
	Quantity      int      `json:"quantity"`
	Price         *float64 `json:"price,omitempty"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Name          string   `json:"name,omitempty"`
	Image         string   `json:"image,omitempty"`
}

// UnitPrice is price, then discountPrice, then originalPrice, then 0.
// Totals and order payloads both use it.
func (i CartItem) UnitPrice() float64 {
	switch {
	case i.Price != nil:
		return *i.Price
	case i.DiscountPrice != nil:
		return *i.DiscountPrice
	case i.OriginalPrice != nil:
		return *i.OriginalPrice
	default:
		return 0
	}
}

// Enrich overlays live product data. Quantity and identity are kept.
func (i CartItem) Enrich(p Product) CartItem {
	if p.Name != "" {
		i.Name = p.Name
	}
	if p.Image != "" {
		i.Image = p.Image
	}
	if p.Price != nil {
		i.Price = p.Price
	}
	if p.DiscountPrice != nil {
		i.DiscountPrice = p.DiscountPrice
	}
	if p.OriginalPrice != nil {
		i.OriginalPrice = p.OriginalPrice
	}
	return i
}

func CartTotal(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitPrice() * float64(item.Quantity)
	}
	return total
}

func CartCount(items []CartItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

func ProductIDs(items []CartItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

type Product struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Price         *float64 `json:"price,omitempty"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Image         string   `json:"image,omitempty"`
}

// Amount returns a pointer to v, for building optional prices.
func Amount(v float64) *float64 {
	return &v
}
