package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
	"github.com/rl1809/pos-checkout/internal/telemetry"
)

// Terminal is one checkout session: a cart, the sales it committed, and the
// shared ledger, scanner and sequencer. Like Cart it is not safe for
// concurrent use.
type Terminal struct {
	ID string

	cart      *Cart
	ledger    *StockLedger
	scanner   *Scanner
	sequencer *CheckoutSequencer
	notifier  port.Notifier
	metrics   *telemetry.Metrics

	history []domain.Sale
}

type TerminalDeps struct {
	Ledger    *StockLedger
	Scanner   *Scanner
	Sequencer *CheckoutSequencer
	Notifier  port.Notifier
	Metrics   *telemetry.Metrics
}

func NewTerminal(id string, deps TerminalDeps, opts ...CartOption) *Terminal {
	return &Terminal{
		ID:        id,
		cart:      NewCart(deps.Ledger, opts...),
		ledger:    deps.Ledger,
		scanner:   deps.Scanner,
		sequencer: deps.Sequencer,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
	}
}

func (t *Terminal) Cart() *Cart {
	return t.cart
}

// AddLine adds a product known to the ledger.
func (t *Terminal) AddLine(productID string, quantity int, size string) error {
	product, ok := t.ledger.Product(productID)
	if !ok {
		err := domain.NotFound("cart.add", "product", productID)
		t.rejected("add", err)
		return err
	}
	return t.observe("add", t.cart.AddLine(product, quantity, size))
}

// ScanToCart resolves a barcode and adds the product in one step. Scans
// of sold out products warn without touching the cart.
func (t *Terminal) ScanToCart(ctx context.Context, barcode string, quantity int, size string) (domain.Product, error) {
	product, err := t.scanner.Scan(ctx, barcode)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			t.notify(domain.EventWarning, "Product not found", domain.ErrorMessage(err))
		} else {
			t.notify(domain.EventError, "Scan failed", domain.ErrorMessage(err))
		}
		return domain.Product{}, err
	}

	if t.ledger.Ceiling(product, "") <= 0 {
		t.notify(domain.EventWarning, "Out of stock", fmt.Sprintf("%q has no stock left", product.Name))
	}
	if quantity == 0 {
		return product, nil
	}
	return product, t.observe("scan", t.cart.AddLine(product, quantity, size))
}

func (t *Terminal) UpdateQuantity(productID string, quantity int, size string) error {
	return t.observe("update", t.cart.UpdateQuantity(productID, quantity, size))
}

func (t *Terminal) RemoveLine(productID, size string) {
	t.cart.RemoveLine(productID, size)
	t.metrics.CartMutation("remove")
}

func (t *Terminal) Clear() {
	t.cart.Clear()
	t.metrics.CartMutation("clear")
}

func (t *Terminal) ApplyDiscount(productID, size string, discount domain.Discount) error {
	return t.observe("discount", t.cart.ApplyDiscount(productID, size, discount))
}

func (t *Terminal) RemoveDiscount(productID, size string) error {
	return t.observe("discount_remove", t.cart.RemoveDiscount(productID, size))
}

func (t *Terminal) Total() decimal.Decimal {
	return t.cart.Total()
}

func (t *Terminal) ItemCount() int {
	return t.cart.ItemCount()
}

// Checkout commits the cart and records the resulting sales in the
// session history, including the ones committed before a failure.
func (t *Terminal) Checkout(ctx context.Context, method domain.PaymentMethod) (CheckoutResult, error) {
	result, err := t.sequencer.Checkout(ctx, t.cart, method)
	t.history = append(t.history, result.Sales...)
	return result, err
}

// History lists the sales this session committed, oldest first.
func (t *Terminal) History() []domain.Sale {
	out := make([]domain.Sale, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Terminal) observe(op string, err error) error {
	if err != nil {
		t.rejected(op, err)
		return err
	}
	t.metrics.CartMutation(op)
	return nil
}

func (t *Terminal) rejected(op string, err error) {
	t.metrics.CartRejection(op, domain.ErrorCode(err))
	t.notify(domain.EventError, "Cart not updated", domain.ErrorMessage(err))
}

func (t *Terminal) notify(typ domain.EventType, title, description string) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(domain.Event{Type: typ, Title: title, Description: description, SessionID: t.ID, At: time.Now()})
}
