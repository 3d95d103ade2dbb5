// Package autotrade gates signals into orders.
//
// The Controller is a three-state machine (Inactive, Active, Suspended).
// While Active every Buy or Sell becomes exactly one order of the configured
// quantity, provided the VolumeLedger can reserve it. When it cannot, the
// controller suspends itself and stays suspended until an operator
// reactivates it with room left under the limit.
package autotrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"alphafx/internal/model"
	"alphafx/internal/notification"
	"alphafx/internal/portfolio"
	"alphafx/internal/strategy"
)

var (
	// ErrVolumeLimitReached is returned by Activate while the ledger is full.
	ErrVolumeLimitReached = errors.New("autotrade: volume limit reached")
	// ErrInvalidOrder is returned for manual orders with bad fields.
	ErrInvalidOrder = errors.New("autotrade: invalid order")
)

// State is the controller's activation state.
type State int32

const (
	Inactive State = iota
	Active
	Suspended
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	}
	return "inactive"
}

// MarshalText encodes the state as its lower-case name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time view of the controller.
type Status struct {
	State    State                  `json:"state"`
	Pair     string                 `json:"pair"`
	Quantity float64                `json:"quantity"`
	InFlight int                    `json:"inFlight"`
	Ledger   portfolio.LedgerStatus `json:"ledger"`
}

// Controller converts signals into orders under the volume policy.
// All methods are safe for concurrent use; auto and manual orders
// serialize on the same ledger.
type Controller struct {
	mu       sync.Mutex
	state    State
	pair     string
	quantity float64
	ledger   *portfolio.VolumeLedger
	inflight map[string]model.Order

	notifier notification.Notifier
	log      *slog.Logger
	newID    func() string
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets the operator notice sink.
func WithNotifier(n notification.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithIDFunc overrides order ID generation.
func WithIDFunc(f func() string) Option {
	return func(c *Controller) { c.newID = f }
}

// WithClock overrides the time source for order timestamps.
func WithClock(f func() time.Time) Option {
	return func(c *Controller) { c.now = f }
}

// New creates an Inactive controller trading quantity units of pair.
func New(pair string, quantity float64, ledger *portfolio.VolumeLedger, opts ...Option) (*Controller, error) {
	if pair == "" || quantity <= 0 {
		return nil, fmt.Errorf("%w: pair %q quantity %v", ErrInvalidOrder, pair, quantity)
	}
	c := &Controller{
		pair:     pair,
		quantity: quantity,
		ledger:   ledger,
		inflight: make(map[string]model.Order),
		notifier: notification.NewLogNotifier(nil),
		log:      slog.Default(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With(slog.String("component", "autotrade"))
	return c, nil
}

// State returns the current activation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate turns auto-trading on. It is refused while the ledger cannot fit
// another order, leaving the state unchanged.
func (c *Controller) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ledger.CanFit(c.quantity) {
		return ErrVolumeLimitReached
	}
	if c.state != Active {
		c.log.Info("auto-trade activated", slog.String("from", c.state.String()))
	}
	c.state = Active
	return nil
}

// Deactivate turns auto-trading off. It always succeeds.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Inactive {
		c.log.Info("auto-trade deactivated", slog.String("from", c.state.String()))
	}
	c.state = Inactive
}

// OnSignal converts a non-Hold signal into one order while Active. The tick
// supplies the price and timestamp. If the ledger cannot reserve the
// quantity the controller suspends and no order is emitted.
func (c *Controller) OnSignal(sig strategy.Signal, tick model.PriceTick) (*model.Order, bool) {
	action, ok := sig.Action()
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return nil, false
	}

	reserved, err := c.ledger.TryReserve(c.quantity)
	if err != nil || !reserved {
		c.state = Suspended
		st := c.ledger.Status()
		c.mu.Unlock()

		c.log.Warn("volume limit reached, auto-trade suspended",
			slog.Float64("total", st.Total),
			slog.Float64("pending", st.Pending),
			slog.Float64("limit", st.Limit))
		c.notify(notification.EventVolumeLimit, nil, "Volume limit reached",
			fmt.Sprintf("auto-trading suspended at %.2f of %.2f; %s signal skipped", st.Total+st.Pending, st.Limit, sig))
		return nil, false
	}

	order := model.Order{
		ID:           c.newID(),
		Action:       action,
		CurrencyPair: c.pair,
		Quantity:     c.quantity,
		Price:        tick.Rate,
		Timestamp:    tick.Timestamp,
		Source:       model.SourceAuto,
	}
	c.inflight[order.ID] = order
	c.mu.Unlock()

	return &order, true
}

// PlaceManual records an operator order. Manual orders are not capped by the
// limit but their volume still counts against it.
func (c *Controller) PlaceManual(action model.Action, pair string, qty, price float64) (model.Order, error) {
	if action != model.ActionBuy && action != model.ActionSell {
		return model.Order{}, fmt.Errorf("%w: action %q", ErrInvalidOrder, action)
	}
	if pair == "" {
		pair = c.pair
	}
	if qty <= 0 || price <= 0 {
		return model.Order{}, fmt.Errorf("%w: quantity %v price %v", ErrInvalidOrder, qty, price)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ledger.Reserve(qty); err != nil {
		return model.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	order := model.Order{
		ID:           c.newID(),
		Action:       action,
		CurrencyPair: pair,
		Quantity:     qty,
		Price:        price,
		Timestamp:    c.now().UnixMilli(),
		Source:       model.SourceManual,
	}
	c.inflight[order.ID] = order
	return order, nil
}

// Settle applies the submission outcome of an order emitted by this
// controller: acceptance commits its volume, rejection releases it.
// It reports whether the order was known.
func (c *Controller) Settle(res model.OrderResult) bool {
	c.mu.Lock()
	order, ok := c.inflight[res.Order.ID]
	if !ok {
		c.mu.Unlock()
		c.log.Warn("settle for unknown order", slog.String("order_id", res.Order.ID))
		return false
	}
	delete(c.inflight, res.Order.ID)

	if res.Accepted() {
		c.ledger.Commit(order.Quantity)
		c.mu.Unlock()
		return true
	}
	c.ledger.Release(order.Quantity)
	c.mu.Unlock()

	c.log.Warn("order rejected",
		slog.String("order_id", order.ID),
		slog.String("action", string(order.Action)),
		slog.String("reason", res.Message))
	c.notify(notification.EventOrderRejected, &order, "Order rejected",
		fmt.Sprintf("%s %v %s @ %.4f: %s", order.Action, order.Quantity, order.CurrencyPair, order.Price, res.Message))
	return true
}

// Status returns the current controller status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:    c.state,
		Pair:     c.pair,
		Quantity: c.quantity,
		InFlight: len(c.inflight),
		Ledger:   c.ledger.Status(),
	}
}

func (c *Controller) notify(event notification.AlertEvent, order *model.Order, title, msg string) {
	if c.notifier == nil {
		return
	}
	alert := notification.Alert{
		Level:   notification.AlertWarning,
		Event:   event,
		Pair:    c.pair,
		Title:   title,
		Message: msg,
		Order:   order,
		Time:    c.now(),
	}
	if err := c.notifier.Send(context.Background(), alert); err != nil {
		c.log.Warn("notice delivery failed", slog.String("error", err.Error()))
	}
}
