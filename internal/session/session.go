// Package session runs the live trading pipeline for one currency pair:
// tick → indicator engine → signal generator → auto-trade controller →
// order dispatch, with every step's output published as a model.Update.
//
// A Session owns its engine, generator and controller. There is no
// package-level state, so several sessions can run side by side.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"alphafx/internal/autotrade"
	"alphafx/internal/indicator"
	"alphafx/internal/metrics"
	"alphafx/internal/model"
	"alphafx/internal/notification"
	"alphafx/internal/portfolio"
	"alphafx/internal/strategy"
)

// OrderQueue accepts orders for asynchronous submission.
// *execution.Dispatcher implements it.
type OrderQueue interface {
	Enqueue(order model.Order) error
}

// Publisher receives every update the session produces.
// *bus.FanOut[model.Update] implements it.
type Publisher interface {
	Publish(u model.Update)
}

// Config describes one trading session.
type Config struct {
	Pair        string
	Strategy    strategy.Kind
	Quantity    float64
	VolumeLimit float64
	Indicators  indicator.Config
}

// Status is the dashboard view of a session.
type Status struct {
	Pair       string                   `json:"pair"`
	Strategy   strategy.Kind            `json:"strategy"`
	LastSignal string                   `json:"lastSignal"`
	AutoTrade  autotrade.Status         `json:"autoTrade"`
	Snapshot   *model.IndicatorSnapshot `json:"snapshot,omitempty"`
}

// Session is the live pipeline for one currency pair.
type Session struct {
	cfg Config

	// mu serializes tick processing and strategy changes.
	mu     sync.Mutex
	engine *indicator.Engine
	gen    *strategy.Generator
	last   *model.Update

	ctrl   *autotrade.Controller
	ledger *portfolio.VolumeLedger
	pnl    *portfolio.PnLTracker
	reco   *strategy.Recommendation

	queue    OrderQueue
	pub      Publisher
	journal  chan<- model.OrderResult
	notifier notification.Notifier
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	log      *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithQueue sets where emitted orders are submitted. Without a queue,
// orders are settled as rejected.
func WithQueue(q OrderQueue) Option { return func(s *Session) { s.queue = q } }

// WithPublisher sets the update sink.
func WithPublisher(p Publisher) Option { return func(s *Session) { s.pub = p } }

// WithJournal forwards every settled order result to ch.
func WithJournal(ch chan<- model.OrderResult) Option { return func(s *Session) { s.journal = ch } }

// WithNotifier sets the operator notice sink.
func WithNotifier(n notification.Notifier) Option { return func(s *Session) { s.notifier = n } }

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Session) { s.metrics = m } }

// WithHealth reports tick liveness.
func WithHealth(h *metrics.HealthStatus) Option { return func(s *Session) { s.health = h } }

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

// New builds a session and its engine, generator, ledger and controller.
func New(cfg Config, opts ...Option) (*Session, error) {
	s := &Session{cfg: cfg, log: slog.Default(), reco: &strategy.Recommendation{}}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("pair", cfg.Pair))

	engine, err := indicator.NewEngine(cfg.Indicators)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	rule, err := s.newRule(cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	ledger, err := portfolio.NewVolumeLedger(cfg.VolumeLimit)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	ctrlOpts := []autotrade.Option{autotrade.WithLogger(s.log)}
	if s.notifier != nil {
		ctrlOpts = append(ctrlOpts, autotrade.WithNotifier(s.notifier))
	}
	ctrl, err := autotrade.New(cfg.Pair, cfg.Quantity, ledger, ctrlOpts...)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s.engine = engine
	s.gen = strategy.NewGenerator(rule)
	s.ledger = ledger
	s.ctrl = ctrl
	s.pnl = portfolio.NewPnLTracker()
	s.observeController()
	return s, nil
}

func (s *Session) newRule(kind strategy.Kind) (strategy.Rule, error) {
	if kind == strategy.KindExternal {
		return s.reco, nil
	}
	return strategy.NewRule(kind)
}

// OnTick processes one tick to completion: indicators, signal, order
// emission and publication. A rejected tick returns an error wrapping one
// of the indicator sentinels and changes nothing.
func (s *Session) OnTick(ctx context.Context, tick model.PriceTick) (model.Update, error) {
	start := time.Now()
	if tick.Pair == "" {
		tick.Pair = s.cfg.Pair
	}

	s.mu.Lock()
	if tick.Pair != s.cfg.Pair {
		s.mu.Unlock()
		err := fmt.Errorf("%w: %s != %s", indicator.ErrPairMismatch, tick.Pair, s.cfg.Pair)
		s.rejectTick(tick, err)
		return model.Update{}, err
	}
	snap, err := s.engine.PushTick(tick)
	if err != nil {
		s.mu.Unlock()
		s.rejectTick(tick, err)
		return model.Update{}, err
	}
	sig := s.gen.Next(snap)
	order, emitted := s.ctrl.OnSignal(sig, tick)

	update := model.Update{Snapshot: snap, Signal: sig.String()}
	if emitted {
		update.Order = order
	}
	s.last = &update
	s.mu.Unlock()

	s.pnl.Mark(tick)
	if emitted {
		s.dispatch(ctx, *order)
	}
	if s.pub != nil {
		s.pub.Publish(update)
	}

	if s.health != nil {
		s.health.SetLastTickTime(time.UnixMilli(tick.Timestamp))
	}
	if m := s.metrics; m != nil {
		m.TicksTotal.Inc()
		if sig != strategy.Hold {
			m.SignalsTotal.WithLabelValues(sig.String()).Inc()
		}
		m.TickProcessDur.Observe(time.Since(start).Seconds())
	}
	s.observeController()
	return update, nil
}

// Run processes ticks from ch in arrival order until ctx is cancelled or
// ch is closed. Rejected ticks are logged and skipped.
func (s *Session) Run(ctx context.Context, ch <-chan model.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ch:
			if !ok {
				return
			}
			s.OnTick(ctx, tick)
		}
	}
}

func (s *Session) rejectTick(tick model.PriceTick, err error) {
	reason := "invalid_rate"
	switch {
	case errors.Is(err, indicator.ErrOutOfOrder):
		reason = "out_of_order"
	case errors.Is(err, indicator.ErrPairMismatch):
		reason = "pair_mismatch"
	}
	s.log.Warn("tick rejected",
		slog.String("reason", reason),
		slog.Float64("rate", tick.Rate),
		slog.Int64("timestamp", tick.Timestamp),
		slog.String("error", err.Error()))
	if s.metrics != nil {
		s.metrics.TicksRejected.WithLabelValues(reason).Inc()
	}
}

// dispatch hands an order to the queue. An order that cannot be queued is
// settled as rejected so its reservation is released.
func (s *Session) dispatch(ctx context.Context, order model.Order) {
	if s.queue == nil {
		s.Settle(ctx, model.OrderResult{Order: order, Status: model.StatusRejected, Message: "no order submitter configured"})
		return
	}
	if err := s.queue.Enqueue(order); err != nil {
		s.Settle(ctx, model.OrderResult{Order: order, Status: model.StatusRejected, Message: err.Error()})
	}
}

// Settle applies one submission outcome: the controller commits or
// releases the reserved volume, accepted orders are booked for analytics
// at their fill price when one is reported, and the result is forwarded to
// the journal.
func (s *Session) Settle(ctx context.Context, res model.OrderResult) {
	if !s.ctrl.Settle(res) {
		return
	}
	if res.Accepted() {
		booked := res.Order
		if res.FillPrice > 0 {
			booked.Price = res.FillPrice
		}
		s.pnl.RecordTrade(booked)
	}
	if s.metrics != nil {
		s.metrics.OrdersTotal.WithLabelValues(string(res.Order.Source), string(res.Status)).Inc()
	}
	s.observeController()

	if s.journal != nil {
		select {
		case s.journal <- res:
		case <-ctx.Done():
		}
	}
}

// RunResults settles results from ch until it is closed. After ctx is
// cancelled it keeps settling whatever the dispatcher drains, so queued
// orders release their reservations.
func (s *Session) RunResults(ctx context.Context, ch <-chan model.OrderResult) {
	for res := range ch {
		s.Settle(ctx, res)
	}
}

// SubmitManual places an operator order at the given price. A zero price
// uses the last observed rate.
func (s *Session) SubmitManual(ctx context.Context, action model.Action, pair string, qty, price float64) (model.Order, error) {
	if price == 0 {
		if snap, ok := s.Snapshot(); ok {
			price = snap.Rate
		}
	}
	order, err := s.ctrl.PlaceManual(action, pair, qty, price)
	if err != nil {
		return model.Order{}, err
	}
	s.log.Info("manual order placed",
		slog.String("order_id", order.ID),
		slog.String("action", string(order.Action)),
		slog.Float64("qty", order.Quantity),
		slog.Float64("price", order.Price))
	s.dispatch(ctx, order)
	s.observeController()
	return order, nil
}

// SetAutoTrade activates or deactivates automatic trading.
func (s *Session) SetAutoTrade(on bool) error {
	defer s.observeController()
	if !on {
		s.ctrl.Deactivate()
		return nil
	}
	return s.ctrl.Activate()
}

// SetVolumeLimit changes the volume limit. A suspended controller stays
// suspended until it is activated again.
func (s *Session) SetVolumeLimit(limit float64) error {
	if err := s.ledger.SetLimit(limit); err != nil {
		return err
	}
	s.log.Info("volume limit changed", slog.Float64("limit", limit))
	s.observeController()
	return nil
}

// SetStrategy switches the signal rule. The last emitted action carries
// over, so a held Buy can only be followed by a Sell.
func (s *Session) SetStrategy(kind strategy.Kind) error {
	rule, err := s.newRule(kind)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Strategy = kind
	s.gen = s.gen.Switch(rule)
	s.mu.Unlock()
	s.log.Info("strategy changed", slog.String("strategy", string(kind)))
	return nil
}

// Recommend sets the signal used by the external strategy.
func (s *Session) Recommend(sig strategy.Signal) {
	s.reco.Set(sig)
}

// Restore replays journaled accepted orders: their volume counts against
// the limit again and they are booked for analytics.
func (s *Session) Restore(orders []model.Order) error {
	for _, o := range orders {
		if err := s.ledger.Reserve(o.Quantity); err != nil {
			return fmt.Errorf("session: restore %s: %w", o.ID, err)
		}
		s.ledger.Commit(o.Quantity)
	}
	s.pnl.Restore(orders)
	s.observeController()
	if len(orders) > 0 {
		s.log.Info("restored trade history",
			slog.Int("orders", len(orders)),
			slog.Float64("volume", s.ledger.Total()))
	}
	return nil
}

// Snapshot returns the most recent indicator snapshot.
func (s *Session) Snapshot() (model.IndicatorSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Last()
}

// History returns the retained ticks, oldest first.
func (s *Session) History() []model.PriceTick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.History()
}

// IndicatorConfig returns the engine configuration.
func (s *Session) IndicatorConfig() indicator.Config { return s.cfg.Indicators }

// Analytics returns the trade analytics.
func (s *Session) Analytics() portfolio.Analytics { return s.pnl.Summary() }

// Positions returns the open positions.
func (s *Session) Positions() []portfolio.Position { return s.pnl.Positions() }

// Status returns the dashboard status.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{Pair: s.cfg.Pair, Strategy: s.cfg.Strategy, LastSignal: strategy.Hold.String()}
	if s.last != nil {
		snap := s.last.Snapshot
		st.Snapshot = &snap
		st.LastSignal = s.last.Signal
	}
	s.mu.Unlock()
	st.AutoTrade = s.ctrl.Status()
	return st
}

func (s *Session) observeController() {
	if s.metrics == nil {
		return
	}
	st := s.ledger.Status()
	s.metrics.LedgerVolume.Set(st.Total)
	s.metrics.LedgerPending.Set(st.Pending)
	s.metrics.ControllerState.Set(float64(s.ctrl.State()))
}
