// Package redis mirrors session updates into Redis so other processes can
// follow the live dashboard: the latest snapshot under a key, a capped
// stream of updates, and a pub/sub channel per currency pair.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"alphafx/internal/model"
)

const (
	updateStreamMaxLen = 10000
	defaultLatestTTL   = 30 * time.Minute
	ordersStream       = "fx:orders"
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Logger   *slog.Logger
}

// Publisher writes session updates to Redis.
type Publisher struct {
	client *goredis.Client
	log    *slog.Logger
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "redis"))
	log.Info("connected to redis", slog.String("addr", cfg.Addr))
	return &Publisher{client: client, log: log}, nil
}

// pairKey turns "USD/INR" into "USDINR" for key names.
func pairKey(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}

// LatestKey is the key holding the most recent update for pair.
func LatestKey(pair string) string { return "fx:latest:" + pairKey(pair) }

// StreamKey is the capped stream of updates for pair.
func StreamKey(pair string) string { return "fx:updates:" + pairKey(pair) }

// ChannelKey is the pub/sub channel of updates for pair.
func ChannelKey(pair string) string { return "pub:fx:" + pairKey(pair) }

// RecommendationChannel carries external Buy/Sell/Hold recommendations for pair.
func RecommendationChannel(pair string) string { return "pub:fx:reco:" + pairKey(pair) }

// PublishUpdate writes one update in a single pipeline: SET latest,
// XADD to the update stream, PUBLISH to subscribers, and XADD the order
// (if any) to the order stream.
func (p *Publisher) PublishUpdate(ctx context.Context, u model.Update) error {
	pair := u.Snapshot.Pair
	jsonData := string(u.JSON())

	pipe := p.client.Pipeline()
	pipe.Set(ctx, LatestKey(pair), jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: StreamKey(pair),
		MaxLen: updateStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, ChannelKey(pair), jsonData)
	if u.Order != nil {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: ordersStream,
			MaxLen: updateStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(u.Order.JSON())},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish update %s: %w", pair, err)
	}
	return nil
}

// Latest reads back the most recent update for pair.
func (p *Publisher) Latest(ctx context.Context, pair string) (string, error) {
	v, err := p.client.Get(ctx, LatestKey(pair)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return v, err
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
