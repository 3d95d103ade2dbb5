package indicator

// EMA calculates the Exponential Moving Average.
//
// The first rate seeds the average and every later rate applies
// ema = rate*k + ema*(1-k) with k = 2/(period+1). The EMA is ready from the
// first tick; early values lean toward the seed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return name("EMA", e.period) }

func (e *EMA) Update(rate float64) {
	e.count++
	if e.count == 1 {
		e.current = rate
		return
	}
	e.current = (rate * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= 1 }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
}
