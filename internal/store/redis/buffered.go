package redis

import (
	"context"
	"log/slog"
	"sync"

	"alphafx/internal/model"
)

// UpdateSink accepts session updates. *Publisher implements it.
type UpdateSink interface {
	PublishUpdate(ctx context.Context, u model.Update) error
}

// BufferedPublisher guards an UpdateSink with a circuit breaker.
// While the circuit is open updates are buffered locally, oldest dropped
// first, and replayed once a write succeeds again.
type BufferedPublisher struct {
	sink UpdateSink
	cb   *CircuitBreaker
	log  *slog.Logger

	mu     sync.Mutex
	buffer []model.Update
	maxBuf int

	// Callbacks
	OnBuffer func()          // called when an update is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered updates
}

// NewBufferedPublisher wraps sink. maxBufferSize defaults to 10000.
func NewBufferedPublisher(sink UpdateSink, cb *CircuitBreaker, maxBufferSize int, log *slog.Logger) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	if log == nil {
		log = slog.Default()
	}
	return &BufferedPublisher{
		sink:   sink,
		cb:     cb,
		log:    log.With(slog.String("component", "redis-buffer")),
		buffer: make([]model.Update, 0, 256),
		maxBuf: maxBufferSize,
	}
}

// Publish writes u through the breaker. An open breaker or a failed write
// buffers the update instead of losing it.
func (bp *BufferedPublisher) Publish(ctx context.Context, u model.Update) {
	err := bp.cb.Execute(func() error { return bp.sink.PublishUpdate(ctx, u) })
	if err != nil {
		bp.bufferUpdate(u)
		return
	}
	bp.flush(ctx)
}

// Run publishes updates from ch until ctx is cancelled or ch is closed.
func (bp *BufferedPublisher) Run(ctx context.Context, ch <-chan model.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			bp.Publish(ctx, u)
		}
	}
}

func (bp *BufferedPublisher) bufferUpdate(u model.Update) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if len(bp.buffer) >= bp.maxBuf {
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, u)

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays buffered updates in order. It stops at the first failure
// and keeps the remainder.
func (bp *BufferedPublisher) flush(ctx context.Context) {
	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return
	}
	toFlush := bp.buffer
	bp.buffer = make([]model.Update, 0, 256)
	bp.mu.Unlock()

	flushed := 0
	for i, u := range toFlush {
		if err := bp.cb.Execute(func() error { return bp.sink.PublishUpdate(ctx, u) }); err != nil {
			bp.mu.Lock()
			bp.buffer = append(append([]model.Update(nil), toFlush[i:]...), bp.buffer...)
			if len(bp.buffer) > bp.maxBuf {
				bp.buffer = bp.buffer[len(bp.buffer)-bp.maxBuf:]
			}
			bp.mu.Unlock()
			break
		}
		flushed++
	}

	if flushed > 0 {
		bp.log.Info("flushed buffered updates", slog.Int("count", flushed))
		if bp.OnFlush != nil {
			bp.OnFlush(flushed)
		}
	}
}

// PendingCount returns the number of buffered updates waiting to be flushed.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}
