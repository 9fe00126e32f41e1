package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variant is one size of a product with its own stock.
type Variant struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

// Product is owned by the catalog. Within a cart session only its stock
// figures change, and only through the With* methods which return copies.
type Product struct {
	ID       string          `json:"id"`
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	MinStock int             `json:"min_stock"`

	// TotalStock is the flat stock of a product without variants. Nil when
	// stock is tracked per variant.
	TotalStock *int      `json:"total_stock,omitempty"`
	Variants   []Variant `json:"variants,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// Variant returns the variant with the given size.
func (p Product) Variant(size string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Size == size {
			return v, true
		}
	}
	return Variant{}, false
}

// Available is the sellable quantity across all sizes.
func (p Product) Available() int {
	if p.TotalStock != nil {
		return *p.TotalStock
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// LowStock reports whether the product reached its reorder threshold.
func (p Product) LowStock() bool {
	return p.Available() <= p.MinStock
}

// Validate checks the invariants the catalog must uphold.
func (p Product) Validate() error {
	const op = "product.validate"
	if p.Name == "" {
		return Invalid(op, "product name is required")
	}
	if p.Price.IsNegative() {
		return Invalid(op, "price of %q cannot be negative", p.Name)
	}
	if !IsMoney(p.Price) || !IsMoney(p.Cost) {
		return Invalid(op, "prices of %q cannot have more than %d decimals", p.Name, MoneyScale)
	}
	if p.TotalStock != nil && *p.TotalStock < 0 {
		return Invalid(op, "stock of %q cannot be negative", p.Name)
	}
	seen := make(map[string]struct{}, len(p.Variants))
	for _, v := range p.Variants {
		if v.Size == "" {
			return Invalid(op, "variant of %q has no size", p.Name)
		}
		if _, dup := seen[v.Size]; dup {
			return Invalid(op, "size %s appears twice on %q", v.Size, p.Name)
		}
		if v.Stock < 0 {
			return Invalid(op, "stock of %q size %s cannot be negative", p.Name, v.Size)
		}
		seen[v.Size] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so callers may patch stock without touching
// the receiver.
func (p Product) Clone() Product {
	out := p
	if p.TotalStock != nil {
		n := *p.TotalStock
		out.TotalStock = &n
	}
	if p.Variants != nil {
		out.Variants = make([]Variant, len(p.Variants))
		copy(out.Variants, p.Variants)
	}
	return out
}

// WithStockDecrement returns a copy with qty units of size removed. The
// size is ignored for products without variants. Stock clamps at zero.
func (p Product) WithStockDecrement(size string, qty int) Product {
	return p.adjustStock(size, -qty)
}

// WithStockIncrement is the inverse of WithStockDecrement.
func (p Product) WithStockIncrement(size string, qty int) Product {
	return p.adjustStock(size, qty)
}

func (p Product) adjustStock(size string, delta int) Product {
	out := p.Clone()
	if out.HasVariants() && size != "" {
		for i := range out.Variants {
			if out.Variants[i].Size == size {
				out.Variants[i].Stock = clampStock(out.Variants[i].Stock + delta)
			}
		}
		// A product may carry both a flat total and variants; keep them in step.
		if out.TotalStock != nil {
			n := clampStock(*out.TotalStock + delta)
			out.TotalStock = &n
		}
		return out
	}
	if out.TotalStock != nil {
		n := clampStock(*out.TotalStock + delta)
		out.TotalStock = &n
	}
	return out
}

func clampStock(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// IntPtr is a helper for building products with a flat stock.
func IntPtr(n int) *int { return &n }
