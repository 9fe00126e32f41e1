package notify

import (
	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

// Multi fans one event out to every notifier, in order. Nil entries are
// skipped.
type Multi []port.Notifier

func (m Multi) Notify(e domain.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

// Observers fans sale events out the same way.
type Observers []port.SaleObserver

func (o Observers) SaleCommitted(sale domain.Sale) {
	for _, obs := range o {
		if obs != nil {
			obs.SaleCommitted(sale)
		}
	}
}

func (o Observers) SaleVoided(sale domain.Sale) {
	for _, obs := range o {
		if obs != nil {
			obs.SaleVoided(sale)
		}
	}
}
