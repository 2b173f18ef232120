/*
notify.go - Customer/technician notification side channel

PURPOSE:
  Core operations trigger notifications (redemption assigned, fulfilled,
  rejected) but never depend on them: delivery is fire-and-forget and a
  failure must not roll back the ledger operation that caused it.

OBSERVABILITY:
  Failures are not silently dropped. Every failed delivery is logged through
  the injected zap logger with the recipient and redemption attached, which
  keeps the side channel explicit and greppable.

IMPLEMENTATIONS:
  LogNotifier:   Logs each notification; the default when no real
                 delivery backend is wired.
  AsyncNotifier: Decouples delivery from the request path with a worker
                 goroutine and a bounded queue.

SEE ALSO:
  - redemption.go: The operations that notify
*/
package rewards

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// =============================================================================
// NOTIFIER CONTRACT
// =============================================================================

// Notification is a message for a customer or technician about a redemption.
type Notification struct {
	Recipient    string // customer or technician ID
	Message      string
	RedemptionID RedemptionID
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// =============================================================================
// LOG NOTIFIER
// =============================================================================

// LogNotifier records notifications in the structured log. Useful as the
// default backend and in tests.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.log.Info("notification",
		zap.String("recipient", msg.Recipient),
		zap.String("redemption_id", string(msg.RedemptionID)),
		zap.String("message", msg.Message),
	)
	return nil
}

// =============================================================================
// ASYNC NOTIFIER - Bounded queue with a delivery worker
// =============================================================================

// AsyncNotifier queues notifications and delivers them on a worker
// goroutine. Enqueueing never blocks the caller: when the queue is full the
// notification is dropped and logged, which honors the fire-and-forget
// contract under load.
type AsyncNotifier struct {
	inner Notifier
	log   *zap.Logger
	queue chan Notification
	done  chan struct{}
	once  sync.Once
}

func NewAsyncNotifier(inner Notifier, log *zap.Logger, queueSize int) *AsyncNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	an := &AsyncNotifier{
		inner: inner,
		log:   log,
		queue: make(chan Notification, queueSize),
		done:  make(chan struct{}),
	}
	go an.run()
	return an
}

func (an *AsyncNotifier) Notify(_ context.Context, n Notification) error {
	select {
	case an.queue <- n:
	default:
		an.log.Warn("notification queue full, dropping",
			zap.String("recipient", n.Recipient),
			zap.String("redemption_id", string(n.RedemptionID)),
		)
	}
	return nil
}

func (an *AsyncNotifier) run() {
	for n := range an.queue {
		if err := an.inner.Notify(context.Background(), n); err != nil {
			an.log.Warn("notification delivery failed",
				zap.String("recipient", n.Recipient),
				zap.String("redemption_id", string(n.RedemptionID)),
				zap.Error(err),
			)
		}
	}
	close(an.done)
}

// Close drains the queue and stops the worker.
func (an *AsyncNotifier) Close() {
	an.once.Do(func() { close(an.queue) })
	<-an.done
}
