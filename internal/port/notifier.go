package port

import "github.com/rl1809/pos-checkout/internal/core/domain"

// Notifier receives operator notifications. Implementations must not block
// the caller for long; checkout waits on Notify between lines.
type Notifier interface {
	Notify(event domain.Event)
}

// SaleObserver is told about every committed and voided sale.
type SaleObserver interface {
	SaleCommitted(sale domain.Sale)
	SaleVoided(sale domain.Sale)
}
