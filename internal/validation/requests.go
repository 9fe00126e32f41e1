package validation

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

type VariantRequest struct {
	Size  string `json:"size" validate:"required,max=32"`
	Stock int    `json:"stock" validate:"min=0"`
}

// ProductRequest is the payload for POST /api/products and PUT /api/products/:id
type ProductRequest struct {
	Barcode    string           `json:"barcode" validate:"max=64"`
	Name       string           `json:"name" validate:"required,max=255"`
	Category   string           `json:"category" validate:"max=128"`
	Price      decimal.Decimal  `json:"price"`
	Cost       decimal.Decimal  `json:"cost"`
	MinStock   int              `json:"min_stock" validate:"min=0"`
	TotalStock *int             `json:"total_stock" validate:"omitempty,min=0"`
	Variants   []VariantRequest `json:"variants" validate:"omitempty,dive"`
}

func (r ProductRequest) Product(id string) domain.Product {
	p := domain.Product{
		ID:         id,
		Barcode:    r.Barcode,
		Name:       r.Name,
		Category:   r.Category,
		Price:      r.Price,
		Cost:       r.Cost,
		MinStock:   r.MinStock,
		TotalStock: r.TotalStock,
	}
	for _, v := range r.Variants {
		p.Variants = append(p.Variants, domain.Variant{Size: v.Size, Stock: v.Stock})
	}
	return p
}

// AddLineRequest is the payload for POST /api/sessions/:id/cart/lines
type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// UpdateLineRequest is the payload for PATCH /api/sessions/:id/cart/lines.
// A quantity of zero or less removes the line.
type UpdateLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type ScanRequest struct {
	Barcode  string `json:"barcode" validate:"required"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity" validate:"min=0"`
}

type DiscountRequest struct {
	ProductID string              `json:"product_id" validate:"required"`
	Size      string              `json:"size"`
	Type      domain.DiscountType `json:"type" validate:"required"`
	Value     decimal.Decimal     `json:"value"`
}

type CheckoutRequest struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"required"`
}
