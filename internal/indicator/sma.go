package indicator

import "alphafx/internal/ringbuf"

// SMA calculates the Simple Moving Average over a rolling window.
// The running sum is adjusted on eviction, so Update is O(1).
type SMA struct {
	period  int
	window  *ringbuf.Window[float64]
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		window: ringbuf.New[float64](period),
	}
}

func (s *SMA) Name() string { return name("SMA", s.period) }

func (s *SMA) Update(rate float64) {
	if old, evicted := s.window.Push(rate); evicted {
		s.sum -= old
	}
	s.sum += rate

	if s.window.Full() {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.window.Full() }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.window.Reset()
	s.sum = 0
	s.current = 0
}
