// Package indicator computes technical indicators over a stream of FX rates.
//
// Every indicator implements the Indicator interface, receiving one rate at
// a time and producing a float64 value once enough data has been seen.
// The Engine composes the configured indicators for one currency pair and
// turns each accepted tick into a model.IndicatorSnapshot.
package indicator

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name with its period (e.g. "SMA_14").
	Name() string

	// Update feeds the next rate and recalculates.
	Update(rate float64)

	// Value returns the current calculated value. Returns 0 if not ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears all accumulated state.
	Reset()
}

func name(kind string, period int) string {
	return kind + "_" + itoa(period)
}

// itoa converts a non-negative int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
