package traderd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphafx/config"
	"alphafx/internal/feed"
	"alphafx/internal/model"
	sqlitestore "alphafx/internal/store/sqlite"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "data", "trades.db"))
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("TICK_INTERVAL_MS", "5")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewSource_SelectsByMode(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer svc.close()

	_, ok := svc.source.(*feed.Simulator)
	assert.True(t, ok, "sim mode should build a simulator, got %T", svc.source)

	cfg.FeedMode = config.FeedWS
	cfg.FeedURL = "ws://127.0.0.1:1/ws"
	src, err := newSource(cfg, svc.prom, svc.health, nil, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &feed.WSIngest{}, src)

	cfg.FeedMode = config.FeedHTTP
	cfg.FeedURL = "http://127.0.0.1:1"
	src, err = newSource(cfg, svc.prom, svc.health, nil, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &feed.HTTPPoller{}, src)

	cfg.FeedMode = "carrier-pigeon"
	_, err = newSource(cfg, svc.prom, svc.health, nil, quietLogger())
	assert.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.OrderQuantity = 0
	_, err := New(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}

func TestNew_RestoresJournaledVolume(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755))

	j, err := sqlitestore.New(sqlitestore.JournalConfig{DBPath: cfg.SQLitePath, Logger: quietLogger()})
	require.NoError(t, err)
	ctx := context.Background()
	for i, status := range []model.OrderStatus{model.StatusAccepted, model.StatusRejected, model.StatusAccepted} {
		res := model.OrderResult{
			Order: model.Order{
				ID:           string(rune('a' + i)),
				Action:       model.ActionBuy,
				CurrencyPair: "USD/INR",
				Quantity:     2,
				Price:        83,
				Timestamp:    int64(1000 + i),
				Source:       model.SourceManual,
			},
			Status: status,
		}
		require.NoError(t, j.Record(ctx, res))
	}
	require.NoError(t, j.Close())

	svc, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer svc.close()

	st := svc.Session().Status()
	assert.Equal(t, 4.0, st.AutoTrade.Ledger.Total)
	assert.Equal(t, 2, svc.Session().Analytics().TotalTrades)
}

func TestRun_ProcessesSimulatedTicksUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(svc.Session().History()) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	snap, ok := svc.Session().Snapshot()
	require.True(t, ok)
	assert.Equal(t, "USD/INR", snap.Pair)
	assert.Greater(t, snap.Rate, 0.0)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
