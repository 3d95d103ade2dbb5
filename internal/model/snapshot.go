package model

import "encoding/json"

// IndicatorSnapshot holds the indicator values computed for one tick.
// Nil pointers mean "not ready". Bollinger bands report 0/0 until ready,
// and downstream logic treats a zero band as "no band".
type IndicatorSnapshot struct {
	Pair           string   `json:"pair"`
	Rate           float64  `json:"rate"`
	Timestamp      int64    `json:"timestamp"`
	SMA            *float64 `json:"sma"`
	EMA            *float64 `json:"ema"`
	BollingerUpper float64  `json:"bollingerUpper"`
	BollingerLower float64  `json:"bollingerLower"`
	RSI            *float64 `json:"rsi"`
}

// HasBands reports whether the Bollinger bands carry real values.
func (s *IndicatorSnapshot) HasBands() bool {
	return s.BollingerUpper != 0 || s.BollingerLower != 0
}

// Update is everything a session produced for one tick.
type Update struct {
	Snapshot IndicatorSnapshot `json:"snapshot"`
	Signal   string            `json:"signal"`
	Order    *Order            `json:"order,omitempty"`
}

// JSON returns the JSON-encoded update.
func (u *Update) JSON() []byte {
	b, _ := json.Marshal(u)
	return b
}

// Float returns a pointer to v, for building snapshots.
func Float(v float64) *float64 { return &v }
