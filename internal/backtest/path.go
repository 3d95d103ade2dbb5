package backtest

import (
	"errors"
	"math/rand"
)

// ErrInvalidPath is returned for unusable path settings.
var ErrInvalidPath = errors.New("backtest: invalid path config")

// PathConfig describes a bounded random walk. Each step moves the rate by a
// uniform amount in [-Step/2, +Step/2], clamped into [Floor, Ceiling].
type PathConfig struct {
	Start   float64 `json:"start"`
	Steps   int     `json:"steps"`
	Step    float64 `json:"step"`
	Floor   float64 `json:"floor"`
	Ceiling float64 `json:"ceiling"`
}

// DefaultPathConfig walks 500 steps around 83 with the live simulator's
// ±0.05 jitter.
func DefaultPathConfig() PathConfig {
	return PathConfig{Start: 83, Steps: 500, Step: 0.1, Floor: 0.0001, Ceiling: 1e6}
}

// Validate reports unusable settings.
func (c PathConfig) Validate() error {
	switch {
	case c.Steps < 0, c.Step < 0:
		return ErrInvalidPath
	case c.Floor <= 0, c.Ceiling <= c.Floor:
		return ErrInvalidPath
	case c.Start < c.Floor, c.Start > c.Ceiling:
		return ErrInvalidPath
	}
	return nil
}

// GeneratePath draws a path of c.Steps prices from rng. The same seed
// always yields the same path.
func GeneratePath(rng *rand.Rand, c PathConfig) ([]float64, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, c.Steps)
	rate := c.Start
	for i := range out {
		rate += (rng.Float64() - 0.5) * c.Step
		if rate < c.Floor {
			rate = c.Floor
		}
		if rate > c.Ceiling {
			rate = c.Ceiling
		}
		out[i] = rate
	}
	return out, nil
}
