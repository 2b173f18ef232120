package rewards_test

import (
	"context"
	"sync"
	"testing"

	"github.com/glasslink/rewards-engine/rewards"
)

// recordingNotifier captures delivered notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	received []rewards.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n rewards.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func TestAsyncNotifier_DeliversEverythingBeforeClose(t *testing.T) {
	rec := &recordingNotifier{}
	an := rewards.NewAsyncNotifier(rec, nil, 32)

	for i := 0; i < 10; i++ {
		if err := an.Notify(context.Background(), rewards.Notification{
			Recipient: "cust-1",
			Message:   "reward ready",
		}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	an.Close()

	if got := rec.count(); got != 10 {
		t.Errorf("expected 10 delivered notifications, got %d", got)
	}
}

func TestAsyncNotifier_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	// A notifier whose delivery never completes would stall the worker; the
	// bounded queue must shed load without blocking the caller.
	block := make(chan struct{})
	slow := notifierFunc(func(ctx context.Context, n rewards.Notification) error {
		<-block
		return nil
	})

	an := rewards.NewAsyncNotifier(slow, nil, 1)
	for i := 0; i < 20; i++ {
		// Must return immediately even with the worker stuck.
		if err := an.Notify(context.Background(), rewards.Notification{Recipient: "cust-1"}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	close(block)
	an.Close()
}

type notifierFunc func(ctx context.Context, n rewards.Notification) error

func (f notifierFunc) Notify(ctx context.Context, n rewards.Notification) error {
	return f(ctx, n)
}
