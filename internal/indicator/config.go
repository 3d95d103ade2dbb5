package indicator

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when indicator periods or widths are unusable.
var ErrInvalidConfig = errors.New("indicator: invalid config")

// Config holds the periods for every indicator the Engine computes.
type Config struct {
	SMAPeriod          int     `json:"sma_period"`
	EMAPeriod          int     `json:"ema_period"`
	BollingerPeriod    int     `json:"bollinger_period"`
	BollingerWidth     float64 `json:"bollinger_width"`
	RSIPeriod          int     `json:"rsi_period"`
	MaxWindowRetention int     `json:"max_window_retention"`
}

// DefaultConfig returns the dashboard defaults: SMA 14, EMA 5,
// Bollinger 20 x 2, RSI 14 and 50 retained ticks.
func DefaultConfig() Config {
	return Config{
		SMAPeriod:          14,
		EMAPeriod:          5,
		BollingerPeriod:    20,
		BollingerWidth:     2,
		RSIPeriod:          14,
		MaxWindowRetention: 50,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.SMAPeriod <= 0:
		return fmt.Errorf("%w: sma period %d", ErrInvalidConfig, c.SMAPeriod)
	case c.EMAPeriod <= 0:
		return fmt.Errorf("%w: ema period %d", ErrInvalidConfig, c.EMAPeriod)
	case c.BollingerPeriod <= 0:
		return fmt.Errorf("%w: bollinger period %d", ErrInvalidConfig, c.BollingerPeriod)
	case c.BollingerWidth <= 0:
		return fmt.Errorf("%w: bollinger width %g", ErrInvalidConfig, c.BollingerWidth)
	case c.RSIPeriod <= 0:
		return fmt.Errorf("%w: rsi period %d", ErrInvalidConfig, c.RSIPeriod)
	case c.MaxWindowRetention < c.SMAPeriod || c.MaxWindowRetention < c.BollingerPeriod:
		return fmt.Errorf("%w: retention %d smaller than sma/bollinger period", ErrInvalidConfig, c.MaxWindowRetention)
	}
	return nil
}
