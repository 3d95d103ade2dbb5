package notification

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Async queues alerts for a background goroutine so callers on the tick
// path never wait on network delivery. When the queue is full the alert is
// dropped and counted.
type Async struct {
	next    Notifier
	queue   chan Alert
	log     *slog.Logger
	dropped atomic.Uint64
}

// NewAsync wraps next with a queue of the given size.
func NewAsync(next Notifier, size int, log *slog.Logger) *Async {
	if size <= 0 {
		size = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Async{next: next, queue: make(chan Alert, size), log: log}
}

// Send enqueues the alert. It never blocks.
func (a *Async) Send(_ context.Context, alert Alert) error {
	if alert.Time.IsZero() {
		alert.Time = time.Now()
	}
	select {
	case a.queue <- alert:
	default:
		a.dropped.Add(1)
	}
	return nil
}

// Dropped returns the number of alerts discarded on a full queue.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Run delivers queued alerts until ctx is cancelled.
func (a *Async) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-a.queue:
			sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			if err := a.next.Send(sendCtx, alert); err != nil {
				a.log.Warn("notification delivery failed",
					slog.String("title", alert.Title),
					slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}
