// Package notification delivers operator notices (volume limit reached,
// order rejected, feed lost) to external channels.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"alphafx/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// AlertEvent names the trading condition behind an alert.
type AlertEvent string

const (
	EventVolumeLimit   AlertEvent = "volume_limit"
	EventOrderRejected AlertEvent = "order_rejected"
	EventFeedLost      AlertEvent = "feed_lost"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel   `json:"level"`
	Event   AlertEvent   `json:"event,omitempty"`
	Pair    string       `json:"pair,omitempty"`
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Order   *model.Order `json:"order,omitempty"`
	Time    time.Time    `json:"time"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier. A nil logger uses slog.Default.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	level := slog.LevelInfo
	switch alert.Level {
	case AlertWarning:
		level = slog.LevelWarn
	case AlertCritical:
		level = slog.LevelError
	}
	attrs := []any{slog.String("message", alert.Message)}
	if alert.Event != "" {
		attrs = append(attrs, slog.String("event", string(alert.Event)))
	}
	if alert.Pair != "" {
		attrs = append(attrs, slog.String("pair", alert.Pair))
	}
	if alert.Order != nil {
		attrs = append(attrs, slog.String("order_id", alert.Order.ID))
	}
	n.log.Log(ctx, level, alert.Title, attrs...)
	return nil
}

// Multi sends every alert to all of its notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
