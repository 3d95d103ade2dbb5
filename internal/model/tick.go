package model

import (
	"encoding/json"
	"math"
)

// PriceTick is one timestamped rate observation for a currency pair.
// Timestamp is epoch milliseconds.
type PriceTick struct {
	Pair      string  `json:"pair"`
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
}

// Valid reports whether the rate is finite and strictly positive.
func (t PriceTick) Valid() bool {
	return t.Rate > 0 && !math.IsInf(t.Rate, 0) && !math.IsNaN(t.Rate)
}

// JSON returns the JSON-encoded tick (ignoring errors for hot-path usage).
func (t *PriceTick) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
