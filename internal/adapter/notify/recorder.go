package notify

import (
	"sync"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// Recorder keeps a session's events until the client collects them.
// Oldest events are dropped beyond max.
type Recorder struct {
	mu     sync.Mutex
	max    int
	events []domain.Event
}

func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 50
	}
	return &Recorder{max: max}
}

func (r *Recorder) Notify(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if over := len(r.events) - r.max; over > 0 {
		r.events = append(r.events[:0], r.events[over:]...)
	}
}

// Drain returns the pending events and forgets them.
func (r *Recorder) Drain() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
