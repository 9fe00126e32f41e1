package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
	"github.com/rl1809/pos-checkout/internal/telemetry"
)

var ErrProductNotFound = &domain.Error{Code: domain.ENOTFOUND, Message: "product not found"}

// Scanner resolves scanned or typed barcodes to products. A miss is
// reported as ErrProductNotFound, never folded into other failures.
type Scanner struct {
	catalog port.CatalogRepository
	ledger  *StockLedger
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

func NewScanner(catalog port.CatalogRepository, ledger *StockLedger, logger *zap.Logger, metrics *telemetry.Metrics) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{catalog: catalog, ledger: ledger, logger: logger, metrics: metrics}
}

// Scan looks up the product with exactly this barcode. Products the ledger
// already knows are returned as the ledger has them.
func (s *Scanner) Scan(ctx context.Context, barcode string) (domain.Product, error) {
	const op = "scan"

	code := strings.TrimSpace(barcode)
	if code == "" {
		s.metrics.Scan("invalid")
		return domain.Product{}, domain.Invalid(op, "barcode is required")
	}

	product, err := s.catalog.GetProductByBarcode(ctx, code)
	if err != nil {
		s.metrics.Scan("error")
		return domain.Product{}, domain.Internal(fmt.Errorf("get product by barcode: %w", err), op, "barcode lookup failed")
	}
	if product == nil {
		s.metrics.Scan("not_found")
		s.logger.Info("barcode not found", zap.String("barcode", code))
		return domain.Product{}, &domain.Error{
			Code:    domain.ENOTFOUND,
			Op:      op,
			Message: fmt.Sprintf("no product with barcode %s", code),
			Err:     ErrProductNotFound,
		}
	}

	s.metrics.Scan("found")
	if s.ledger == nil {
		return *product, nil
	}
	// The barcode lookup may be served from a cache that predates this
	// session's sales; the ledger copy carries the optimistic decrements.
	return s.ledger.Remember(*product), nil
}
