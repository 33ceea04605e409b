package domain

import "time"

// CartLine is one product entry in a cart. Everything except Quantity is a
// value copy of the catalog entry taken when the product was added; it is
// never re-read from the catalog afterwards.
type CartLine struct {
	ProductID     string   `json:"productId"`
	Quantity      int      `json:"quantity"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	UnitPrice     float64  `json:"unitPrice"`
	UnitSalePrice *float64 `json:"unitSalePrice,omitempty"`
	StockSnapshot int      `json:"stockSnapshot"`
	ImageURL      string   `json:"imageUrl"`
}

// EffectivePrice is the sale price when one was captured, otherwise the regular price.
func (l CartLine) EffectivePrice() float64 {
	if l.UnitSalePrice != nil {
		return *l.UnitSalePrice
	}
	return l.UnitPrice
}

func (l CartLine) Total() float64 {
	return l.EffectivePrice() * float64(l.Quantity)
}

// Cart lines are kept in insertion order, which is also display order.
type Cart struct {
	Lines          []CartLine `json:"lines"`
	LastModifiedAt time.Time  `json:"lastModifiedAt"`
}

func NewCart(now time.Time) Cart {
	return Cart{Lines: []CartLine{}, LastModifiedAt: now}
}

// Subtotal sums line totals without rounding.
func (c Cart) Subtotal() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Total()
	}
	return total
}

// Clone returns a deep copy, sale price pointers included.
func (c Cart) Clone() Cart {
	lines := make([]CartLine, len(c.Lines))
	for i, l := range c.Lines {
		if l.UnitSalePrice != nil {
			p := *l.UnitSalePrice
			l.UnitSalePrice = &p
		}
		lines[i] = l
	}
	return Cart{Lines: lines, LastModifiedAt: c.LastModifiedAt}
}

// NewCartLine freezes the catalog attributes of p into a cart line.
func NewCartLine(p Product, quantity int) CartLine {
	line := CartLine{
		ProductID:     p.ID,
		Quantity:      quantity,
		Name:          p.Name,
		Category:      p.Category,
		UnitPrice:     p.Price,
		StockSnapshot: p.StockQuantity,
	}
	if p.SalePrice != nil {
		sale := *p.SalePrice
		line.UnitSalePrice = &sale
	}
	if len(p.Images) > 0 {
		line.ImageURL = p.Images[0]
	}
	return line
}
