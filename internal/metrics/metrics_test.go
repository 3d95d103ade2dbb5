package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.TicksTotal.Inc()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "alphafx_ticks_total 1") {
		t.Errorf("metrics output missing ticks counter:\n%s", body)
	}

	rec = httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ = io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "alphafx_ticks_total 0") {
		t.Errorf("second registry should be untouched:\n%s", body)
	}
}

func TestHealthStatus_Report(t *testing.T) {
	h := NewHealthStatus()
	if _, code := h.Report(); code != http.StatusServiceUnavailable {
		t.Fatalf("fresh status code = %d, want 503", code)
	}

	h.SetFeedConnected(true)
	h.SetSQLiteOK(true)
	h.SetLastTickTime(time.Now())
	r, code := h.Report()
	if code != http.StatusOK || r.Status != "healthy" {
		t.Fatalf("report = %+v (%d)", r, code)
	}

	// Enabled but unreachable Redis degrades the service.
	h.SetRedisEnabled(true)
	if r, _ := h.Report(); r.Status != "degraded" {
		t.Errorf("status = %s, want degraded", r.Status)
	}
}

func TestHealthStatus_CheckSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := NewHealthStatus()
	h.CheckSQLite(context.Background(), db)
	h.SetFeedConnected(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var r Report
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatal(err)
	}
	if !r.SQLiteOK || r.Status != "healthy" || r.LastCheckAt == "" {
		t.Errorf("report = %+v", r)
	}
}
