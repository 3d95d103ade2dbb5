package strategy

import (
	"fmt"
	"sync/atomic"

	"alphafx/internal/model"
)

// Rule reports a raw trading intent for the current snapshot. prev is nil on
// the first tick. Rules are stateless; position tracking lives in Generator.
type Rule interface {
	Kind() Kind
	Evaluate(prev *model.IndicatorSnapshot, cur model.IndicatorSnapshot) Signal
}

// NewRule returns the rule for kind. KindExternal returns a fresh
// *Recommendation whose Set method drives it.
func NewRule(kind Kind) (Rule, error) {
	switch kind {
	case KindEMACrossover:
		return EMACrossover{}, nil
	case KindBollinger:
		return BollingerTouch{}, nil
	case KindRSI:
		return RSIThreshold{Oversold: 30, Overbought: 70}, nil
	case KindSMACrossover:
		return SMACrossover{}, nil
	case KindExternal:
		return &Recommendation{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
}

// EMACrossover buys when price crosses above the EMA and sells when it
// crosses back below.
type EMACrossover struct{}

func (EMACrossover) Kind() Kind { return KindEMACrossover }

func (EMACrossover) Evaluate(prev *model.IndicatorSnapshot, cur model.IndicatorSnapshot) Signal {
	if prev == nil || prev.EMA == nil || cur.EMA == nil {
		return Hold
	}
	switch {
	case cur.Rate > *cur.EMA && prev.Rate <= *prev.EMA:
		return Buy
	case cur.Rate < *cur.EMA && prev.Rate >= *prev.EMA:
		return Sell
	}
	return Hold
}

// BollingerTouch buys below the lower band and sells above the upper band.
type BollingerTouch struct{}

func (BollingerTouch) Kind() Kind { return KindBollinger }

func (BollingerTouch) Evaluate(_ *model.IndicatorSnapshot, cur model.IndicatorSnapshot) Signal {
	if !cur.HasBands() {
		return Hold
	}
	switch {
	case cur.Rate < cur.BollingerLower:
		return Buy
	case cur.Rate > cur.BollingerUpper:
		return Sell
	}
	return Hold
}

// RSIThreshold buys when RSI is oversold and sells when overbought.
type RSIThreshold struct {
	Oversold   float64
	Overbought float64
}

func (RSIThreshold) Kind() Kind { return KindRSI }

func (r RSIThreshold) Evaluate(_ *model.IndicatorSnapshot, cur model.IndicatorSnapshot) Signal {
	if cur.RSI == nil {
		return Hold
	}
	switch {
	case *cur.RSI < r.Oversold:
		return Buy
	case *cur.RSI > r.Overbought:
		return Sell
	}
	return Hold
}

// SMACrossover treats the EMA as the fast line and the SMA as the slow line:
// Buy on a golden cross, Sell on a death cross.
type SMACrossover struct{}

func (SMACrossover) Kind() Kind { return KindSMACrossover }

func (SMACrossover) Evaluate(prev *model.IndicatorSnapshot, cur model.IndicatorSnapshot) Signal {
	if prev == nil || prev.EMA == nil || prev.SMA == nil || cur.EMA == nil || cur.SMA == nil {
		return Hold
	}
	prevFast, prevSlow := *prev.EMA, *prev.SMA
	fast, slow := *cur.EMA, *cur.SMA
	switch {
	case fast > slow && prevFast <= prevSlow:
		return Buy
	case fast < slow && prevFast >= prevSlow:
		return Sell
	}
	return Hold
}

// Recommendation relays a signal set by an outside source, such as a
// model-serving process. Safe for concurrent Set and Evaluate.
type Recommendation struct {
	current atomic.Int32
}

func (*Recommendation) Kind() Kind { return KindExternal }

// Set replaces the current recommendation.
func (r *Recommendation) Set(s Signal) { r.current.Store(int32(s)) }

// Current returns the current recommendation.
func (r *Recommendation) Current() Signal { return Signal(r.current.Load()) }

func (r *Recommendation) Evaluate(_ *model.IndicatorSnapshot, cur model.IndicatorSnapshot) Signal {
	if cur.Rate <= 0 {
		return Hold
	}
	return r.Current()
}
