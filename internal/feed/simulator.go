package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"alphafx/internal/model"
)

// SimulatorConfig configures the random-walk tick simulator.
type SimulatorConfig struct {
	Pair     string
	Start    float64       // initial rate
	Step     float64       // max move per tick is ±Step/2; defaults to 0.1
	Floor    float64       // rate never drops below Floor; defaults to 0.0001
	Interval time.Duration // defaults to 3s
	Seed     int64         // 0 seeds from the clock
}

// Simulator emits a bounded random walk: rate += (rand − 0.5) · Step.
type Simulator struct {
	cfg  SimulatorConfig
	rng  *rand.Rand
	rate float64
	pace *pace
	now  func() time.Time
	log  *slog.Logger
}

// NewSimulator creates a Simulator positioned at cfg.Start.
func NewSimulator(cfg SimulatorConfig, log *slog.Logger) *Simulator {
	if cfg.Step <= 0 {
		cfg.Step = 0.1
	}
	if cfg.Floor <= 0 {
		cfg.Floor = 0.0001
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Start < cfg.Floor {
		cfg.Start = cfg.Floor
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(seed)),
		rate: cfg.Start,
		pace: newPace(cfg.Interval),
		now:  time.Now,
		log:  log.With(slog.String("component", "feed-sim")),
	}
}

// Next advances the walk one step and returns the new tick.
func (s *Simulator) Next() model.PriceTick {
	s.rate += (s.rng.Float64() - 0.5) * s.cfg.Step
	if s.rate < s.cfg.Floor {
		s.rate = s.cfg.Floor
	}
	return model.PriceTick{Pair: s.cfg.Pair, Rate: s.rate, Timestamp: s.now().UnixMilli()}
}

// SetInterval changes the tick interval of a running simulator.
func (s *Simulator) SetInterval(d time.Duration) error { return s.pace.set(d) }

// Interval returns the current tick interval.
func (s *Simulator) Interval() time.Duration { return s.pace.get() }

// Run emits one tick per interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, out chan<- model.PriceTick) error {
	interval := s.pace.get()
	s.log.Info("simulator started",
		slog.String("pair", s.cfg.Pair),
		slog.Float64("start", s.cfg.Start),
		slog.Duration("interval", interval),
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.pace.changed:
			interval = s.pace.get()
			ticker.Reset(interval)
			s.log.Info("tick interval changed", slog.Duration("interval", interval))
		case <-ticker.C:
			emit(out, s.Next(), s.log)
		}
	}
}
