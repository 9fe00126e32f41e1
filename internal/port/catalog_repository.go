package port

import (
	"context"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

type CatalogRepository interface {
	// FetchProducts returns the whole catalog with variants, ordered by name
	FetchProducts(ctx context.Context) ([]domain.Product, error)

	// GetProductByBarcode returns nil, nil when no product has the barcode
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)

	// GetProduct returns nil, nil when the product does not exist
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)

	// UpdateProduct replaces display fields, prices and stock figures
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}
