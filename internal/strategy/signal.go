// Package strategy turns indicator snapshots into trading signals.
//
// A Rule looks at the previous and current snapshot and reports a raw
// Buy/Sell/Hold intent. The Generator wraps a Rule with the position
// debounce, so a Buy is only ever followed by a Sell and vice versa.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"alphafx/internal/model"
)

// ErrUnknownStrategy is returned for a strategy identifier with no rule.
var ErrUnknownStrategy = errors.New("strategy: unknown strategy")

// Signal is the per-tick output of the Generator.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return "Hold"
}

// MarshalText encodes the signal as "Hold", "Buy" or "Sell".
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the MarshalText form in any case.
func (s *Signal) UnmarshalText(b []byte) error {
	v, err := ParseSignal(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSignal parses "hold", "buy" or "sell" in any case.
func ParseSignal(v string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "hold", "":
		return Hold, nil
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return Hold, fmt.Errorf("strategy: unknown signal %q", v)
}

// Action maps Buy/Sell onto an order action. Hold reports false.
func (s Signal) Action() (model.Action, bool) {
	switch s {
	case Buy:
		return model.ActionBuy, true
	case Sell:
		return model.ActionSell, true
	}
	return "", false
}

// Kind identifies a strategy.
type Kind string

const (
	KindEMACrossover Kind = "ema_crossover"
	KindBollinger    Kind = "bollinger"
	KindRSI          Kind = "rsi"
	KindSMACrossover Kind = "sma_crossover"
	KindExternal     Kind = "external"
)

// Kinds returns the built-in strategies that can be backtested and compared.
// KindExternal is excluded; its decisions come from outside the process.
func Kinds() []Kind {
	return []Kind{KindEMACrossover, KindBollinger, KindRSI, KindSMACrossover}
}

// ParseKind resolves a strategy identifier. Dashes, spaces and case are ignored,
// so "EMA Crossover" and "ema-crossover" both resolve to KindEMACrossover.
func ParseKind(v string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(v))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch Kind(norm) {
	case KindEMACrossover, KindBollinger, KindRSI, KindSMACrossover, KindExternal:
		return Kind(norm), nil
	case "bollinger_bands":
		return KindBollinger, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, v)
}
