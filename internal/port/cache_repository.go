package port

import (
	"context"
	"time"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

type CacheRepository interface {
	// GetProductByBarcode returns nil, nil on a cache miss
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)

	SetProduct(ctx context.Context, product domain.Product, ttl time.Duration) error

	// InvalidateBarcode drops a cached product after a catalog edit
	InvalidateBarcode(ctx context.Context, barcode string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseIdempotency drops a key so the request may be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
