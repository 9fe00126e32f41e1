package service

import "github.com/rl1809/pos-checkout/internal/core/domain"

// ResolveCeiling returns the largest quantity a single cart line of
// product/size may hold right now. With a size and variants, the matching
// variant's stock is the ceiling, 0 if the size does not exist. Otherwise
// the flat total stock, else the sum over variants, else 0.
//
// It is called on every scan, add and quantity change and must stay cheap
// and free of side effects.
func ResolveCeiling(product domain.Product, size string) int {
	if size != "" && product.HasVariants() {
		v, ok := product.Variant(size)
		if !ok {
			return 0
		}
		return v.Stock
	}
	if product.TotalStock != nil {
		return *product.TotalStock
	}
	total := 0
	for _, v := range product.Variants {
		total += v.Stock
	}
	return total
}

// StockView answers ceiling queries for the cart.
type StockView interface {
	Ceiling(product domain.Product, size string) int
}

// StockViewFunc adapts a plain function to StockView.
type StockViewFunc func(product domain.Product, size string) int

func (f StockViewFunc) Ceiling(product domain.Product, size string) int {
	return f(product, size)
}

// ProductStock resolves ceilings against the product passed in, with no
// ledger behind it.
var ProductStock StockView = StockViewFunc(ResolveCeiling)
