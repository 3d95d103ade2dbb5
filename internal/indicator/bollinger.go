package indicator

import (
	"math"

	"alphafx/internal/ringbuf"
)

// Bollinger computes Bollinger Bands: the mean of the last period rates
// plus and minus width population standard deviations.
//
// Before the window is full both bands are 0.
type Bollinger struct {
	period int
	width  float64
	window *ringbuf.Window[float64]

	mean  float64
	std   float64
	upper float64
	lower float64
}

// NewBollinger creates Bollinger Bands with the given period and width.
func NewBollinger(period int, width float64) *Bollinger {
	return &Bollinger{
		period: period,
		width:  width,
		window: ringbuf.New[float64](period),
	}
}

func (b *Bollinger) Name() string { return name("BB", b.period) }

func (b *Bollinger) Update(rate float64) {
	b.window.Push(rate)
	if !b.window.Full() {
		return
	}

	// Population variance, two-pass.
	n := float64(b.period)
	var sum float64
	for i := 0; i < b.window.Len(); i++ {
		sum += b.window.At(i)
	}
	b.mean = sum / n

	var sq float64
	for i := 0; i < b.window.Len(); i++ {
		d := b.window.At(i) - b.mean
		sq += d * d
	}
	b.std = math.Sqrt(sq / n)
	b.upper = b.mean + b.width*b.std
	b.lower = b.mean - b.width*b.std
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.mean }
func (b *Bollinger) Ready() bool    { return b.window.Full() }

// Bands returns the upper and lower band, 0/0 until ready.
func (b *Bollinger) Bands() (upper, lower float64) { return b.upper, b.lower }

// StdDev returns the population standard deviation of the window.
func (b *Bollinger) StdDev() float64 { return b.std }

// Reset clears the band state for reuse.
func (b *Bollinger) Reset() {
	b.window.Reset()
	b.mean, b.std, b.upper, b.lower = 0, 0, 0, 0
}
