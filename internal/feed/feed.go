// Package feed provides tick sources for a trading session: a local
// random-walk simulator, a WebSocket client for a tick server, and an HTTP
// poller for an exchange-rate API.
package feed

import (
	"context"
	"log/slog"

	"alphafx/internal/model"
)

// Source produces price ticks into out until ctx is cancelled.
// Implementations never close out.
type Source interface {
	Run(ctx context.Context, out chan<- model.PriceTick) error
}

// emit delivers t without blocking; a full channel drops the tick.
func emit(out chan<- model.PriceTick, t model.PriceTick, log *slog.Logger) bool {
	select {
	case out <- t:
		return true
	default:
		log.Warn("tick channel full, dropping tick", slog.String("pair", t.Pair), slog.Int64("timestamp", t.Timestamp))
		return false
	}
}
