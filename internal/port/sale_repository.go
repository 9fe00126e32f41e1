package port

import (
	"context"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

type SaleRepository interface {
	// CreateSale persists one sale and decrements the product stock, failing
	// when the stock would go negative
	CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error)

	// VoidSale deletes a sale and restores the stock it consumed
	VoidSale(ctx context.Context, sale domain.Sale) error
}

type SaleHistory interface {
	// ListSales returns the most recent sales across all terminals, newest first
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
}
