package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
	"github.com/rl1809/pos-checkout/internal/telemetry"
)

// StockLedger is the in-memory copy of the catalog that every ceiling check
// reads. Cached products are never modified in place; a stock change swaps
// in a patched copy.
type StockLedger struct {
	catalog port.CatalogRepository
	logger  *zap.Logger
	metrics *telemetry.Metrics

	mu       sync.RWMutex
	products map[string]domain.Product
	order    []string
}

func NewStockLedger(catalog port.CatalogRepository, logger *zap.Logger, metrics *telemetry.Metrics) *StockLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedger{
		catalog:  catalog,
		logger:   logger,
		metrics:  metrics,
		products: make(map[string]domain.Product),
	}
}

// Refresh replaces the cache with the catalog's current state.
func (l *StockLedger) Refresh(ctx context.Context) error {
	products, err := l.catalog.FetchProducts(ctx)
	if err != nil {
		l.metrics.LedgerRefresh("error")
		return fmt.Errorf("fetch products: %w", err)
	}
	l.Load(products)
	l.metrics.LedgerRefresh("ok")
	l.logger.Debug("ledger refreshed", zap.Int("products", len(products)))
	return nil
}

// Load replaces the cache with products, keeping their order.
func (l *StockLedger) Load(products []domain.Product) {
	byID := make(map[string]domain.Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		if _, dup := byID[p.ID]; !dup {
			order = append(order, p.ID)
		}
		byID[p.ID] = p.Clone()
	}

	l.mu.Lock()
	l.products = byID
	l.order = order
	l.mu.Unlock()
}

// Put caches a single product, replacing any older copy.
func (l *StockLedger) Put(product domain.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.products[product.ID]; !ok {
		l.order = append(l.order, product.ID)
	}
	l.products[product.ID] = product.Clone()
}

// Remember caches product unless the ledger already holds it, and returns
// the ledger's copy.
func (l *StockLedger) Remember(product domain.Product) domain.Product {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.products[product.ID]; ok {
		return cached.Clone()
	}
	l.order = append(l.order, product.ID)
	l.products[product.ID] = product.Clone()
	return product.Clone()
}

func (l *StockLedger) Product(id string) (domain.Product, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return p.Clone(), true
}

func (l *StockLedger) Products() []domain.Product {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Product, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.products[id].Clone())
	}
	return out
}

// LowStock lists cached products at or below their reorder threshold.
func (l *StockLedger) LowStock() []domain.Product {
	var out []domain.Product
	for _, p := range l.Products() {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out
}

// Ceiling resolves against the cached copy of the product when the ledger
// knows it, so optimistic decrements are seen by the next check.
func (l *StockLedger) Ceiling(product domain.Product, size string) int {
	l.mu.RLock()
	cached, ok := l.products[product.ID]
	l.mu.RUnlock()
	if ok {
		return ResolveCeiling(cached, size)
	}
	return ResolveCeiling(product, size)
}

// Decrement removes qty units of product/size from the cached stock.
// Unknown products are ignored; the next refresh brings them in.
func (l *StockLedger) Decrement(productID, size string, qty int) {
	l.patch(productID, func(p domain.Product) domain.Product {
		return p.WithStockDecrement(size, qty)
	})
}

// Increment restores qty units, used when a committed sale is voided.
func (l *StockLedger) Increment(productID, size string, qty int) {
	l.patch(productID, func(p domain.Product) domain.Product {
		return p.WithStockIncrement(size, qty)
	})
}

func (l *StockLedger) patch(productID string, fn func(domain.Product) domain.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[productID]
	if !ok {
		return
	}
	l.products[productID] = fn(p)
}
