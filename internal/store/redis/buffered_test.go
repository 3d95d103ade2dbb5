package redis

import (
	"context"
	"testing"
	"time"

	"alphafx/internal/model"
)

type fakeSink struct {
	down bool
	got  []int64
}

func (s *fakeSink) PublishUpdate(_ context.Context, u model.Update) error {
	if s.down {
		return errFail
	}
	s.got = append(s.got, u.Snapshot.Timestamp)
	return nil
}

func update(ts int64) model.Update {
	return model.Update{Snapshot: model.IndicatorSnapshot{Pair: "USD/INR", Rate: 83, Timestamp: ts}, Signal: "Hold"}
}

func TestBufferedPublisher_BuffersWhileDownAndFlushesInOrder(t *testing.T) {
	sink := &fakeSink{down: true}
	cb, clk := newTestBreaker(2, time.Second)
	bp := NewBufferedPublisher(sink, cb, 100, nil)
	buffered, flushed := 0, 0
	bp.OnBuffer = func() { buffered++ }
	bp.OnFlush = func(n int) { flushed += n }

	ctx := context.Background()
	for ts := int64(1); ts <= 4; ts++ {
		bp.Publish(ctx, update(ts))
	}
	if bp.PendingCount() != 4 || buffered != 4 {
		t.Fatalf("pending = %d buffered = %d, want 4/4", bp.PendingCount(), buffered)
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("breaker should be open, got %v", cb.CurrentState())
	}

	sink.down = false
	clk.advance(2 * time.Second)
	bp.Publish(ctx, update(5))

	want := []int64{5, 1, 2, 3, 4}
	if len(sink.got) != len(want) {
		t.Fatalf("got %v, want %v", sink.got, want)
	}
	for i := range want {
		if sink.got[i] != want[i] {
			t.Errorf("got %v, want %v", sink.got, want)
			break
		}
	}
	if bp.PendingCount() != 0 || flushed != 4 {
		t.Errorf("pending = %d flushed = %d", bp.PendingCount(), flushed)
	}
}

func TestBufferedPublisher_DropsOldestWhenFull(t *testing.T) {
	sink := &fakeSink{down: true}
	cb, clk := newTestBreaker(1, time.Second)
	bp := NewBufferedPublisher(sink, cb, 3, nil)

	ctx := context.Background()
	for ts := int64(1); ts <= 5; ts++ {
		bp.Publish(ctx, update(ts))
	}
	if bp.PendingCount() != 3 {
		t.Fatalf("pending = %d, want 3", bp.PendingCount())
	}

	sink.down = false
	clk.advance(2 * time.Second)
	bp.Publish(ctx, update(6))

	want := []int64{6, 3, 4, 5}
	if len(sink.got) != len(want) {
		t.Fatalf("got %v, want %v", sink.got, want)
	}
	for i := range want {
		if sink.got[i] != want[i] {
			t.Errorf("got %v, want %v", sink.got, want)
			break
		}
	}
}

func TestBufferedPublisher_RunStopsOnClose(t *testing.T) {
	sink := &fakeSink{}
	cb, _ := newTestBreaker(3, time.Second)
	bp := NewBufferedPublisher(sink, cb, 10, nil)

	ch := make(chan model.Update, 2)
	ch <- update(1)
	ch <- update(2)
	close(ch)
	bp.Run(context.Background(), ch)

	if len(sink.got) != 2 {
		t.Errorf("published %d, want 2", len(sink.got))
	}
}

func TestKeys(t *testing.T) {
	if LatestKey("usd/inr") != "fx:latest:USDINR" {
		t.Errorf("LatestKey = %s", LatestKey("usd/inr"))
	}
	if StreamKey("USD/INR") != "fx:updates:USDINR" || ChannelKey("USD/INR") != "pub:fx:USDINR" {
		t.Error("unexpected stream/channel key")
	}
	if RecommendationChannel("EUR/USD") != "pub:fx:reco:EURUSD" {
		t.Errorf("RecommendationChannel = %s", RecommendationChannel("EUR/USD"))
	}
}
