package domain

import "github.com/shopspring/decimal"

// LineKey identifies a cart line. At most one line exists per key.
type LineKey struct {
	ProductID string
	Size      string
}

// CartLine is one (product, size) entry of a cart.
type CartLine struct {
	LineID    string
	Product   Product
	Size      string
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  *Discount
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.Product.ID, Size: l.Size}
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// DiscountAmount is derived from the current subtotal on every call.
func (l CartLine) DiscountAmount() decimal.Decimal {
	if l.Discount == nil {
		return decimal.Zero
	}
	amount, _ := CalculateDiscount(l.Subtotal(), *l.Discount)
	return amount
}

func (l CartLine) TotalPrice() decimal.Decimal {
	if l.Discount == nil {
		return l.Subtotal()
	}
	_, total := CalculateDiscount(l.Subtotal(), *l.Discount)
	return total
}

// Label is the operator facing name of the line, e.g. `"Tee" size M`.
func (l CartLine) Label() string {
	if l.Size == "" {
		return "\"" + l.Product.Name + "\""
	}
	return "\"" + l.Product.Name + "\" size " + l.Size
}
