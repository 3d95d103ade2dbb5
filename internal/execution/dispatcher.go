// Package execution hands orders to the external submission collaborator
// and reports each outcome back.
//
// The Dispatcher owns a buffered order queue drained by a single Run loop,
// so the tick path never blocks on network I/O. Every queued order produces
// exactly one OrderResult; submission errors become rejections.
package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"alphafx/internal/model"
)

// ErrQueueFull is returned by Enqueue when the order queue is saturated.
var ErrQueueFull = errors.New("execution: order queue full")

// Submitter places one order with the external collaborator. A nil error
// with a REJECTED status is a business rejection; a non-nil error is a
// transport failure.
type Submitter interface {
	Submit(ctx context.Context, order model.Order) (model.OrderResult, error)
}

// Dispatcher submits queued orders and publishes their results.
type Dispatcher struct {
	sub      Submitter
	orderCh  chan model.Order
	resultCh chan model.OrderResult
	timeout  time.Duration
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher with the given queue size.
func NewDispatcher(sub Submitter, bufferSize int, log *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sub:      sub,
		orderCh:  make(chan model.Order, bufferSize),
		resultCh: make(chan model.OrderResult, bufferSize),
		timeout:  10 * time.Second,
		log:      log.With(slog.String("component", "dispatcher")),
	}
}

// Results returns the channel of order results.
func (d *Dispatcher) Results() <-chan model.OrderResult {
	return d.resultCh
}

// Enqueue queues an order without blocking.
func (d *Dispatcher) Enqueue(order model.Order) error {
	select {
	case d.orderCh <- order:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run consumes queued orders and submits them one at a time.
// Blocks until ctx is cancelled. Orders still queued at that point are
// reported as rejected before the result channel closes.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.resultCh)
	for {
		select {
		case <-ctx.Done():
			d.drain(nil)
			return
		case order := <-d.orderCh:
			res := d.submit(ctx, order)
			select {
			case d.resultCh <- res:
			case <-ctx.Done():
				d.drain(&res)
				return
			}
		}
	}
}

// drain rejects every queued order without submitting it. pending is a
// result that was produced but not yet delivered.
func (d *Dispatcher) drain(pending *model.OrderResult) {
	var out []model.OrderResult
	if pending != nil {
		out = append(out, *pending)
	}
	for len(d.orderCh) > 0 {
		order := <-d.orderCh
		out = append(out, model.OrderResult{Order: order, Status: model.StatusRejected, Message: "dispatcher stopped"})
	}
	for i, res := range out {
		select {
		case d.resultCh <- res:
		default:
			d.log.Warn("result channel full at shutdown", slog.Int("undelivered", len(out)-i))
			return
		}
	}
	if len(out) > 0 {
		d.log.Info("drained order queue", slog.Int("orders", len(out)))
	}
}

func (d *Dispatcher) submit(ctx context.Context, order model.Order) model.OrderResult {
	subCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.sub.Submit(subCtx, order)
	if err != nil {
		d.log.Warn("submission failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()))
		return model.OrderResult{Order: order, Status: model.StatusRejected, Message: err.Error()}
	}
	res.Order = order
	if res.Status == "" {
		res.Status = model.StatusAccepted
	}

	d.log.Info("order submitted",
		slog.String("order_id", order.ID),
		slog.String("action", string(order.Action)),
		slog.String("pair", order.CurrencyPair),
		slog.Float64("qty", order.Quantity),
		slog.Float64("price", order.Price),
		slog.String("status", string(res.Status)))
	return res
}
