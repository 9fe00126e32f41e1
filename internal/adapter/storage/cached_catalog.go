package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

// CachedCatalog serves barcode lookups from the cache and falls through to
// the catalog on a miss. Cache failures are logged and never fail a lookup.
type CachedCatalog struct {
	port.CatalogRepository
	cache  port.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedCatalog(catalog port.CatalogRepository, cache port.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCatalog{CatalogRepository: catalog, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedCatalog) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if c.ttl > 0 {
		cached, err := c.cache.GetProductByBarcode(ctx, barcode)
		if err != nil {
			c.logger.Warn("barcode cache read failed", zap.String("barcode", barcode), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	product, err := c.CatalogRepository.GetProductByBarcode(ctx, barcode)
	if err != nil || product == nil {
		return product, err
	}

	if c.ttl > 0 {
		if err := c.cache.SetProduct(ctx, *product, c.ttl); err != nil {
			c.logger.Warn("barcode cache write failed", zap.String("barcode", barcode), zap.Error(err))
		}
	}
	return product, nil
}

func (c *CachedCatalog) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	var oldBarcode string
	if old, err := c.CatalogRepository.GetProduct(ctx, product.ID); err == nil && old != nil {
		oldBarcode = old.Barcode
	}

	updated, err := c.CatalogRepository.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	c.invalidate(ctx, oldBarcode)
	if updated.Barcode != oldBarcode {
		c.invalidate(ctx, updated.Barcode)
	}
	return updated, nil
}

// SaleCommitted drops the cached copy so the next scan sees the new stock.
func (c *CachedCatalog) SaleCommitted(sale domain.Sale) {
	c.invalidateProduct(sale.ProductID)
}

func (c *CachedCatalog) SaleVoided(sale domain.Sale) {
	c.invalidateProduct(sale.ProductID)
}

func (c *CachedCatalog) invalidateProduct(productID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := c.CatalogRepository.GetProduct(ctx, productID)
	if err != nil || p == nil {
		return
	}
	c.invalidate(ctx, p.Barcode)
}

func (c *CachedCatalog) invalidate(ctx context.Context, barcode string) {
	if barcode == "" {
		return
	}
	if err := c.cache.InvalidateBarcode(ctx, barcode); err != nil {
		c.logger.Warn("barcode cache invalidate failed", zap.String("barcode", barcode), zap.Error(err))
	}
}
