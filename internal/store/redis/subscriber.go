package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"alphafx/internal/strategy"
)

// SubscribeRecommendations listens on the recommendation channel for pair
// and calls fn with every parsed signal ("Buy", "Sell", "Hold"). Messages
// that do not parse are logged and ignored. Blocks until ctx is cancelled.
func (p *Publisher) SubscribeRecommendations(ctx context.Context, pair string, fn func(strategy.Signal)) error {
	channel := RecommendationChannel(pair)
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	// Wait for confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", channel, err)
	}
	p.log.Info("subscribed to recommendations", slog.String("channel", channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handleRecommendation(msg, fn, p.log)
		}
	}
}

func handleRecommendation(msg *goredis.Message, fn func(strategy.Signal), log *slog.Logger) {
	sig, err := strategy.ParseSignal(msg.Payload)
	if err != nil {
		log.Warn("ignoring recommendation", slog.String("payload", msg.Payload), slog.String("error", err.Error()))
		return
	}
	fn(sig)
}
