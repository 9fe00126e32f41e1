package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
	"github.com/rl1809/pos-checkout/internal/telemetry"
)

var ErrCartEmpty = &domain.Error{Code: domain.EINVALID, Message: "cart is empty"}

// FailurePolicy decides what a checkout pass does when one line fails.
type FailurePolicy int

const (
	// Halt stops at the failed line. Committed lines stay committed and
	// leave the cart; the failed line and everything after it stay.
	Halt FailurePolicy = iota
	// ContinueRemaining attempts every line; only failed lines stay.
	ContinueRemaining
	// RollbackAll voids every committed sale and leaves the cart as it was.
	RollbackAll
)

func (p FailurePolicy) String() string {
	switch p {
	case Halt:
		return "halt"
	case ContinueRemaining:
		return "continue"
	case RollbackAll:
		return "rollback"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "halt":
		return Halt, nil
	case "continue", "continue_remaining":
		return ContinueRemaining, nil
	case "rollback", "rollback_all":
		return RollbackAll, nil
	default:
		return Halt, fmt.Errorf("unknown checkout failure policy %q", s)
	}
}

// LineFailure is one line that did not commit.
type LineFailure struct {
	Line domain.CartLine
	Err  error
}

// Reason is the operator facing cause, without internal detail.
func (f LineFailure) Reason() string {
	return failureReason(f.Err)
}

type CheckoutResult struct {
	Sales    []domain.Sale
	Failures []LineFailure
	// Voided holds sales that committed and were voided by RollbackAll.
	Voided []domain.Sale
	Total  decimal.Decimal
}

// CheckoutError reports a checkout pass that did not commit every line.
type CheckoutError struct {
	Policy    FailurePolicy
	Lines     int
	Committed int
	Failures  []LineFailure
	// RollbackErrs holds sales that RollbackAll could not void.
	RollbackErrs []error
}

func (e *CheckoutError) Error() string {
	var b strings.Builder
	first := e.Failures[0]
	switch e.Policy {
	case ContinueRemaining:
		fmt.Fprintf(&b, "%d of %d lines failed: ", len(e.Failures), e.Lines)
		for i, f := range e.Failures {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", f.Line.Label(), failureReason(f.Err))
		}
	case RollbackAll:
		fmt.Fprintf(&b, "checkout rolled back after %s failed: %s", first.Line.Label(), failureReason(first.Err))
		if n := len(e.RollbackErrs); n > 0 {
			fmt.Fprintf(&b, "; %d sale(s) could not be voided", n)
		}
	default:
		fmt.Fprintf(&b, "checkout stopped at %s: %s", first.Line.Label(), failureReason(first.Err))
	}
	fmt.Fprintf(&b, "; %d of %d lines committed", e.Committed, e.Lines)
	return b.String()
}

func (e *CheckoutError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+len(e.RollbackErrs))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return append(errs, e.RollbackErrs...)
}

// FailedLine is the first line that failed.
func (e *CheckoutError) FailedLine() domain.CartLine {
	return e.Failures[0].Line
}

// failureReason prefers the collaborator's own message.
func failureReason(err error) string {
	var de *domain.Error
	switch {
	case errors.As(err, &de) && de.Code != domain.EINTERNAL:
		return de.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "the sale request timed out"
	case errors.Is(err, context.Canceled):
		return "the sale request was cancelled"
	default:
		return "the sale could not be recorded"
	}
}

type SequencerOption func(*CheckoutSequencer)

func WithFailurePolicy(p FailurePolicy) SequencerOption {
	return func(s *CheckoutSequencer) { s.policy = p }
}

func WithNotifier(n port.Notifier) SequencerOption {
	return func(s *CheckoutSequencer) { s.notifier = n }
}

func WithSaleObserver(o port.SaleObserver) SequencerOption {
	return func(s *CheckoutSequencer) { s.observer = o }
}

func WithLogger(l *zap.Logger) SequencerOption {
	return func(s *CheckoutSequencer) { s.logger = l }
}

func WithMetrics(m *telemetry.Metrics) SequencerOption {
	return func(s *CheckoutSequencer) { s.metrics = m }
}

// CheckoutSequencer commits a cart one line at a time, in cart order. Each
// sale request is awaited before the next line is checked, so the next
// ceiling check sees the stock left by the previous commit.
type CheckoutSequencer struct {
	sales      port.SaleRepository
	stock      StockView
	reconciler StockReconciler
	policy     FailurePolicy
	notifier   port.Notifier
	observer   port.SaleObserver
	logger     *zap.Logger
	metrics    *telemetry.Metrics
}

func NewCheckoutSequencer(sales port.SaleRepository, stock StockView, reconciler StockReconciler, opts ...SequencerOption) *CheckoutSequencer {
	s := &CheckoutSequencer{
		sales:      sales,
		stock:      stock,
		reconciler: reconciler,
		policy:     Halt,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CheckoutSequencer) Policy() FailurePolicy {
	return s.policy
}

// Checkout commits cart with the given payment method. On full success the
// cart is emptied and the reconciler's Finished step runs. Otherwise a
// *CheckoutError is returned and the cart holds whatever the policy left.
func (s *CheckoutSequencer) Checkout(ctx context.Context, cart *Cart, method domain.PaymentMethod) (CheckoutResult, error) {
	const op = "checkout"
	start := time.Now()

	if cart.Len() == 0 {
		err := wrapOp(ErrCartEmpty, op)
		s.notify(domain.EventError, "Checkout failed", domain.ErrorMessage(err))
		s.metrics.Checkout("empty", time.Since(start).Seconds())
		return CheckoutResult{}, err
	}
	if !method.Valid() {
		err := domain.Invalid(op, "select a payment method")
		s.notify(domain.EventError, "Checkout failed", domain.ErrorMessage(err))
		return CheckoutResult{}, err
	}

	lines := cart.Lines()
	result := CheckoutResult{Total: decimal.Zero}
	committed := make(map[domain.LineKey]struct{}, len(lines))

	for _, line := range lines {
		sale, err := s.commitLine(ctx, line, method)
		if err != nil {
			s.logger.Warn("checkout line failed",
				zap.String("product_id", line.Product.ID),
				zap.String("size", line.Size),
				zap.Int("quantity", line.Quantity),
				zap.String("policy", s.policy.String()),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, LineFailure{Line: line, Err: err})
			if s.policy == ContinueRemaining {
				continue
			}
			break
		}

		result.Sales = append(result.Sales, sale)
		result.Total = result.Total.Add(sale.TotalPrice)
		committed[line.Key()] = struct{}{}
		s.metrics.SaleCommitted(sale.TotalPrice.InexactFloat64())
		if s.observer != nil {
			s.observer.SaleCommitted(sale)
		}
		if err := s.reconciler.Committed(ctx, sale); err != nil {
			s.logger.Warn("stock reconcile after sale failed", zap.String("sale_id", sale.ID), zap.Error(err))
		}
	}

	if len(result.Failures) == 0 {
		cart.Clear()
		if err := s.reconciler.Finished(ctx); err != nil {
			s.logger.Warn("catalog refresh after checkout failed", zap.Error(err))
			s.notify(domain.EventWarning, "Stock may be out of date", "The catalog could not be refreshed after the sale.")
		}
		s.notify(domain.EventSuccess, "Sale completed",
			fmt.Sprintf("%d line(s) committed, total %s", len(result.Sales), result.Total.StringFixed(2)))
		s.metrics.Checkout("committed", time.Since(start).Seconds())
		s.logger.Info("checkout committed",
			zap.Int("lines", len(result.Sales)),
			zap.String("total", result.Total.String()),
			zap.String("payment_method", method.String()),
		)
		return result, nil
	}

	cerr := &CheckoutError{
		Policy:   s.policy,
		Lines:    len(lines),
		Failures: result.Failures,
	}

	if s.policy == RollbackAll && len(result.Sales) > 0 {
		kept := s.rollback(ctx, &result, cerr)
		committed = make(map[domain.LineKey]struct{}, len(kept))
		for _, sale := range kept {
			committed[domain.LineKey{ProductID: sale.ProductID, Size: sale.Size}] = struct{}{}
		}
	}

	cerr.Committed = len(committed)
	cart.removeKeys(committed)

	s.notify(domain.EventError, "Checkout failed", cerr.Error())
	s.metrics.Checkout("partial", time.Since(start).Seconds())
	s.logger.Error("checkout incomplete",
		zap.Int("lines", cerr.Lines),
		zap.Int("committed", cerr.Committed),
		zap.Int("failed", len(cerr.Failures)),
		zap.String("policy", s.policy.String()),
	)
	return result, cerr
}

func (s *CheckoutSequencer) commitLine(ctx context.Context, line domain.CartLine, method domain.PaymentMethod) (domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	// The cart was checked when the line was last changed; stock may have
	// moved since.
	if ceiling := s.stock.Ceiling(line.Product, line.Size); line.Quantity > ceiling {
		return domain.Sale{}, &domain.Error{
			Code:    domain.ECONFLICT,
			Op:      "checkout.line",
			Message: fmt.Sprintf("only %d of %s left, %d in cart", ceiling, line.Label(), line.Quantity),
			Err:     ErrInsufficientStock,
		}
	}

	sale, err := s.sales.CreateSale(ctx, domain.NewSaleRequest(line, method))
	if err != nil {
		return domain.Sale{}, fmt.Errorf("create sale for %s: %w", line.Label(), err)
	}
	return sale, nil
}

// rollback voids committed sales newest first and returns the ones that
// could not be voided.
func (s *CheckoutSequencer) rollback(ctx context.Context, result *CheckoutResult, cerr *CheckoutError) []domain.Sale {
	var kept []domain.Sale
	for i := len(result.Sales) - 1; i >= 0; i-- {
		sale := result.Sales[i]
		if err := s.sales.VoidSale(ctx, sale); err != nil {
			s.logger.Error("CRITICAL: void sale failed", zap.String("sale_id", sale.ID), zap.Error(err))
			cerr.RollbackErrs = append(cerr.RollbackErrs, fmt.Errorf("void sale %s: %w", sale.ID, err))
			kept = append(kept, sale)
			continue
		}
		result.Voided = append(result.Voided, sale)
		result.Total = result.Total.Sub(sale.TotalPrice)
		s.metrics.SaleVoided()
		if s.observer != nil {
			s.observer.SaleVoided(sale)
		}
		if err := s.reconciler.Reverted(ctx, sale); err != nil {
			s.logger.Warn("stock reconcile after void failed", zap.String("sale_id", sale.ID), zap.Error(err))
		}
	}

	// Sales keeps only what is still committed, in cart order.
	still := result.Sales[:0]
	for _, sale := range result.Sales {
		for _, k := range kept {
			if k.ID == sale.ID {
				still = append(still, sale)
				break
			}
		}
	}
	result.Sales = still
	return kept
}

func (s *CheckoutSequencer) notify(t domain.EventType, title, description string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(domain.Event{Type: t, Title: title, Description: description, At: time.Now()})
}
