package service

import (
	"context"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// StockReconciler keeps the ledger in line with what checkout committed.
type StockReconciler interface {
	// Committed runs after each successful sale, before the next line.
	Committed(ctx context.Context, sale domain.Sale) error
	// Reverted runs after a committed sale was voided.
	Reverted(ctx context.Context, sale domain.Sale) error
	// Finished runs once after every line committed.
	Finished(ctx context.Context) error
}

// OptimisticReconciler decrements the cached stock as soon as a sale
// commits and only asks the catalog for the truth once the cart is done.
type OptimisticReconciler struct {
	Ledger *StockLedger
}

func (r OptimisticReconciler) Committed(_ context.Context, sale domain.Sale) error {
	r.Ledger.Decrement(sale.ProductID, sale.Size, sale.Quantity)
	return nil
}

func (r OptimisticReconciler) Reverted(_ context.Context, sale domain.Sale) error {
	r.Ledger.Increment(sale.ProductID, sale.Size, sale.Quantity)
	return nil
}

func (r OptimisticReconciler) Finished(ctx context.Context) error {
	return r.Ledger.Refresh(ctx)
}

// RefetchReconciler reloads the catalog after every committed line. Slower,
// but the next line is checked against server state.
type RefetchReconciler struct {
	Ledger *StockLedger
}

func (r RefetchReconciler) Committed(ctx context.Context, _ domain.Sale) error {
	return r.Ledger.Refresh(ctx)
}

func (r RefetchReconciler) Reverted(ctx context.Context, _ domain.Sale) error {
	return r.Ledger.Refresh(ctx)
}

func (r RefetchReconciler) Finished(context.Context) error {
	return nil
}
