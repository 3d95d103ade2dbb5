package indicator

import (
	"errors"
	"fmt"

	"alphafx/internal/model"
	"alphafx/internal/ringbuf"
)

var (
	// ErrInvalidRate is returned for non-positive or non-finite rates.
	ErrInvalidRate = errors.New("indicator: invalid rate")
	// ErrOutOfOrder is returned for a tick older than the last accepted one.
	ErrOutOfOrder = errors.New("indicator: out-of-order tick")
	// ErrPairMismatch is returned for a tick of a different currency pair.
	ErrPairMismatch = errors.New("indicator: currency pair mismatch")
)

// Engine computes every configured indicator for a single currency pair.
// Designed for single-goroutine usage; callers serialize PushTick.
type Engine struct {
	cfg Config

	sma  *SMA
	ema  *EMA
	boll *Bollinger
	rsi  *RSI

	history *ringbuf.Window[model.PriceTick]
	pair    string
	lastTS  int64
	last    model.IndicatorSnapshot
	seen    bool
}

// NewEngine creates an indicator engine from a validated config.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		sma:     NewSMA(cfg.SMAPeriod),
		ema:     NewEMA(cfg.EMAPeriod),
		boll:    NewBollinger(cfg.BollingerPeriod, cfg.BollingerWidth),
		rsi:     NewRSI(cfg.RSIPeriod),
		history: ringbuf.New[model.PriceTick](cfg.MaxWindowRetention),
	}, nil
}

// Config returns the engine's indicator configuration.
func (e *Engine) Config() Config { return e.cfg }

// PushTick appends one tick and returns the snapshot for it.
// A rejected tick leaves every window untouched.
func (e *Engine) PushTick(tick model.PriceTick) (model.IndicatorSnapshot, error) {
	if !tick.Valid() {
		return model.IndicatorSnapshot{}, fmt.Errorf("%w: %v", ErrInvalidRate, tick.Rate)
	}
	if e.seen {
		if tick.Timestamp < e.lastTS {
			return model.IndicatorSnapshot{}, fmt.Errorf("%w: %d < %d", ErrOutOfOrder, tick.Timestamp, e.lastTS)
		}
		if tick.Pair != "" && e.pair != "" && tick.Pair != e.pair {
			return model.IndicatorSnapshot{}, fmt.Errorf("%w: %s != %s", ErrPairMismatch, tick.Pair, e.pair)
		}
	}

	if e.pair == "" {
		e.pair = tick.Pair
	}
	e.seen = true
	e.lastTS = tick.Timestamp
	e.history.Push(tick)

	e.sma.Update(tick.Rate)
	e.ema.Update(tick.Rate)
	e.boll.Update(tick.Rate)
	e.rsi.Update(tick.Rate)

	snap := model.IndicatorSnapshot{
		Pair:      e.pair,
		Rate:      tick.Rate,
		Timestamp: tick.Timestamp,
	}
	if e.sma.Ready() {
		snap.SMA = model.Float(e.sma.Value())
	}
	if e.ema.Ready() {
		snap.EMA = model.Float(e.ema.Value())
	}
	snap.BollingerUpper, snap.BollingerLower = e.boll.Bands()
	if e.rsi.Ready() {
		snap.RSI = model.Float(e.rsi.Value())
	}

	e.last = snap
	return snap, nil
}

// Last returns the most recent snapshot and whether one exists.
func (e *Engine) Last() (model.IndicatorSnapshot, bool) {
	return e.last, e.seen
}

// History returns the retained ticks, oldest first.
func (e *Engine) History() []model.PriceTick {
	return e.history.Slice()
}

// Reset clears all indicator state and history.
func (e *Engine) Reset() {
	e.sma.Reset()
	e.ema.Reset()
	e.boll.Reset()
	e.rsi.Reset()
	e.history.Reset()
	e.pair = ""
	e.lastTS = 0
	e.last = model.IndicatorSnapshot{}
	e.seen = false
}

// Compute runs a fresh engine over ticks and returns one snapshot per
// accepted tick. Rejected ticks are skipped and counted.
func Compute(cfg Config, ticks []model.PriceTick) ([]model.IndicatorSnapshot, int, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, 0, err
	}
	out := make([]model.IndicatorSnapshot, 0, len(ticks))
	skipped := 0
	for _, t := range ticks {
		snap, err := e.PushTick(t)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, snap)
	}
	return out, skipped, nil
}
