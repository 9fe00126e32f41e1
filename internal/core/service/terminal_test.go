package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/telemetry"
)

type terminalFixture struct {
	catalog  *mockCatalog
	sales    *mockSales
	notifier *recordingNotifier
	metrics  *telemetry.Metrics
	terminal *Terminal
}

func newTerminalFixture(t *testing.T, products ...domain.Product) *terminalFixture {
	t.Helper()
	f := &terminalFixture{
		catalog:  newMockCatalog(products...),
		sales:    newMockSales(),
		notifier: &recordingNotifier{},
		metrics:  telemetry.NewMetrics(prometheus.NewRegistry()),
	}
	ledger := NewStockLedger(f.catalog, nil, f.metrics)
	require.NoError(t, ledger.Refresh(context.Background()))
	f.terminal = NewTerminal("till-1", TerminalDeps{
		Ledger:  ledger,
		Scanner: NewScanner(f.catalog, ledger, nil, f.metrics),
		Sequencer: NewCheckoutSequencer(f.sales, ledger, OptimisticReconciler{Ledger: ledger},
			WithNotifier(f.notifier), WithMetrics(f.metrics)),
		Notifier: f.notifier,
		Metrics:  f.metrics,
	}, WithLineIDs(sequentialIDs()))
	return f
}

func TestTerminal_AddLineUnknownProduct(t *testing.T) {
	f := newTerminalFixture(t, flatProduct("A", "Alpha", 10, 5))

	err := f.terminal.AddLine("zzz", 1, "")

	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, domain.EventError, f.notifier.last().Type)
	assert.Equal(t, "till-1", f.notifier.last().SessionID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CartRejections.WithLabelValues("add", domain.ENOTFOUND)))
}

func TestTerminal_RejectionNotifies(t *testing.T) {
	f := newTerminalFixture(t, sizedProduct("T", "Tee", 100, domain.Variant{Size: "M", Stock: 3}))

	err := f.terminal.AddLine("T", 5, "M")

	require.Error(t, err)
	assert.Equal(t, 0, f.terminal.Cart().Len())
	e := f.notifier.last()
	assert.Equal(t, domain.EventError, e.Type)
	assert.Contains(t, e.Description, "only 3 available")
}

func TestTerminal_ScanToCart(t *testing.T) {
	f := newTerminalFixture(t, flatProduct("A", "Alpha", 10, 5), flatProduct("Z", "Zero", 10, 0))

	t.Run("adds scanned product", func(t *testing.T) {
		p, err := f.terminal.ScanToCart(context.Background(), "bc-A", 2, "")
		require.NoError(t, err)
		assert.Equal(t, "A", p.ID)
		assert.Equal(t, 2, f.terminal.ItemCount())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CartMutations.WithLabelValues("scan")))
	})

	t.Run("lookup only", func(t *testing.T) {
		before := f.terminal.ItemCount()
		_, err := f.terminal.ScanToCart(context.Background(), "bc-A", 0, "")
		require.NoError(t, err)
		assert.Equal(t, before, f.terminal.ItemCount())
	})

	t.Run("unknown barcode warns", func(t *testing.T) {
		_, err := f.terminal.ScanToCart(context.Background(), "missing", 1, "")
		assert.True(t, errors.Is(err, ErrProductNotFound))
		assert.Equal(t, "Product not found", f.notifier.last().Title)
		assert.Equal(t, domain.EventWarning, f.notifier.last().Type)
	})

	t.Run("sold out warns", func(t *testing.T) {
		_, err := f.terminal.ScanToCart(context.Background(), "bc-Z", 0, "")
		require.NoError(t, err)
		assert.Equal(t, "Out of stock", f.notifier.last().Title)
	})
}

func TestTerminal_CheckoutRecordsHistory(t *testing.T) {
	f := newTerminalFixture(t, flatProduct("A", "Alpha", 10, 5), flatProduct("B", "Beta", 20, 5))
	require.NoError(t, f.terminal.AddLine("A", 2, ""))
	require.NoError(t, f.terminal.AddLine("B", 1, ""))
	f.sales.failFor["B"] = errors.New("boom")

	_, err := f.terminal.Checkout(context.Background(), domain.PaymentCash)
	require.Error(t, err)
	require.Len(t, f.terminal.History(), 1)

	delete(f.sales.failFor, "B")
	_, err = f.terminal.Checkout(context.Background(), domain.PaymentCash)
	require.NoError(t, err)

	history := f.terminal.History()
	require.Len(t, history, 2)
	assert.Equal(t, "A", history[0].ProductID)
	assert.Equal(t, "B", history[1].ProductID)
	assert.Equal(t, 0, f.terminal.Cart().Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CheckoutResults.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CheckoutResults.WithLabelValues("partial")))
}
