package notify

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

type message struct {
	subject string
	payload any
}

type saleMessage struct {
	Action string      `json:"action"`
	Sale   domain.Sale `json:"sale"`
}

// NATSNotifier publishes events and sales from a single worker, so the
// checkout never waits on the broker. Messages are dropped when the queue
// is full.
type NATSNotifier struct {
	pub    Publisher
	prefix string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan message
	wg     sync.WaitGroup
}

// NewNATSNotifier starts the publishing worker. Events go to
// <prefix>.events, sales to <prefix>.sales.
func NewNATSNotifier(pub Publisher, prefix string, queueSize int, logger *zap.Logger) *NATSNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NATSNotifier{
		pub:    pub,
		prefix: prefix,
		logger: logger,
		queue:  make(chan message, queueSize),
	}
	n.wg.Add(1)
	go n.worker()
	return n
}

func (n *NATSNotifier) Notify(e domain.Event) {
	n.enqueue(message{subject: n.prefix + ".events", payload: e})
}

func (n *NATSNotifier) SaleCommitted(sale domain.Sale) {
	n.enqueue(message{subject: n.prefix + ".sales", payload: saleMessage{Action: "committed", Sale: sale}})
}

func (n *NATSNotifier) SaleVoided(sale domain.Sale) {
	n.enqueue(message{subject: n.prefix + ".sales", payload: saleMessage{Action: "voided", Sale: sale}})
}

func (n *NATSNotifier) enqueue(m message) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- m:
	default:
		n.logger.Warn("nats queue full, message dropped", zap.String("subject", m.subject))
	}
}

func (n *NATSNotifier) worker() {
	defer n.wg.Done()
	for m := range n.queue {
		data, err := json.Marshal(m.payload)
		if err != nil {
			n.logger.Error("encode nats message", zap.String("subject", m.subject), zap.Error(err))
			continue
		}
		if err := n.pub.Publish(m.subject, data); err != nil {
			n.logger.Warn("publish failed", zap.String("subject", m.subject), zap.Error(err))
		}
	}
}

// Close stops accepting messages and waits for the queue to drain.
func (n *NATSNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}
