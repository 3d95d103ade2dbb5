package feed

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidInterval is returned for a non-positive refresh interval.
var ErrInvalidInterval = errors.New("feed: refresh interval must be positive")

// Pacer is a Source whose refresh interval can change while it runs.
// The simulator and the HTTP poller implement it; the WebSocket client
// does not, since the tick server sets the pace.
type Pacer interface {
	SetInterval(d time.Duration) error
	Interval() time.Duration
}

// pace holds a source's current interval and wakes its Run loop when the
// interval changes.
type pace struct {
	mu      sync.Mutex
	d       time.Duration
	changed chan struct{}
}

func newPace(d time.Duration) *pace {
	return &pace{d: d, changed: make(chan struct{}, 1)}
}

func (p *pace) set(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, d)
	}
	p.mu.Lock()
	p.d = d
	p.mu.Unlock()
	select {
	case p.changed <- struct{}{}:
	default:
	}
	return nil
}

func (p *pace) get() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.d
}

var (
	_ Pacer = (*Simulator)(nil)
	_ Pacer = (*HTTPPoller)(nil)
)
