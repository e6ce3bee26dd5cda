package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"relstrength-scanner/internal/model"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanner.db")
	db, err := Open(path, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCandleUpsertIdempotent(t *testing.T) {
	db := openRaw(t)
	store := NewCandleStore(db)
	ctx := context.Background()

	candles := []model.Candle{
		{Symbol: "TCS", Timeframe: "5m", TS: time.Unix(1000, 0).UTC(), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Symbol: "TCS", Timeframe: "5m", TS: time.Unix(1300, 0).UTC(), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 150},
	}

	if err := store.Upsert(ctx, candles); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.Upsert(ctx, candles); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.LatestWindow(ctx, "TCS", "5m", 10)
	if err != nil {
		t.Fatalf("LatestWindow: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2 (re-applying the batch must not duplicate rows)", len(got))
	}
}

func TestSnapshotLatestAtomicity(t *testing.T) {
	db := openRaw(t)
	store := NewSnapshotStore(db)
	ctx := context.Background()

	older := model.ScannerSnapshot{
		Timeframe: "5m", TS: time.Unix(1000, 0).UTC(),
		Rows: []model.ScannerRow{{Symbol: "A", Timeframe: "5m", BenchmarkSymbol: "NIFTY", Signal: model.SignalNeutral}},
	}
	newer := model.ScannerSnapshot{
		Timeframe: "5m", TS: time.Unix(2000, 0).UTC(),
		Rows: []model.ScannerRow{
			{Symbol: "A", Timeframe: "5m", BenchmarkSymbol: "NIFTY", Signal: model.SignalWatch},
			{Symbol: "B", Timeframe: "5m", BenchmarkSymbol: "NIFTY", Signal: model.SignalTriggerLong},
		},
	}
	if err := store.Save(ctx, older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := store.Save(ctx, newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	got, err := store.Latest(ctx, "5m")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !got.TS.Equal(newer.TS) {
		t.Fatalf("Latest returned ts %v, want %v", got.TS, newer.TS)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("Latest returned %d rows, want all rows at max(ts) (2)", len(got.Rows))
	}
}

func TestSnapshotLatestEmptyWhenNoData(t *testing.T) {
	db := openRaw(t)
	store := NewSnapshotStore(db)
	got, err := store.Latest(context.Background(), "1h")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got.Rows) != 0 {
		t.Fatalf("expected empty snapshot, got %d rows", len(got.Rows))
	}
}

func TestBenchmarkStateSaveAndLatestRoundTripsParticipation(t *testing.T) {
	db := openRaw(t)
	store := NewBenchmarkStateStore(db)
	ctx := context.Background()

	ts := time.Unix(5000, 0).UTC()
	states := []model.BenchmarkState{
		{Symbol: "NIFTY", Timeframe: "5m", TS: ts, Trend: 1.5, VolExp: 0.5, Participation: 0.25, Regime: model.RegimeBullish},
	}
	if err := store.Save(ctx, states); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Latest(ctx, "5m")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d benchmark states, want 1", len(got))
	}
	if got[0].Participation != 0.25 {
		t.Fatalf("Participation = %v, want 0.25", got[0].Participation)
	}

	// A conflicting upsert at the same key must update participation too.
	states[0].Participation = 0.75
	if err := store.Save(ctx, states); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	got, err = store.Latest(ctx, "5m")
	if err != nil {
		t.Fatalf("Latest after update: %v", err)
	}
	if got[0].Participation != 0.75 {
		t.Fatalf("Participation after upsert = %v, want 0.75", got[0].Participation)
	}
}

func TestWatchlistDefaultBenchmarkFallback(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO watch_indices (symbol, data_symbol, active, is_default) VALUES (?, ?, 1, 1)`,
		"NIFTY", "NIFTY_50"); err != nil {
		t.Fatalf("seed default index: %v", err)
	}
	repo := NewWatchlistRepository(db)

	got, err := repo.BenchmarkFor(ctx, "UNMAPPED_STOCK")
	if err != nil {
		t.Fatalf("BenchmarkFor: %v", err)
	}
	if got != "NIFTY_50" {
		t.Fatalf("BenchmarkFor fallback = %q, want default data_symbol %q", got, "NIFTY_50")
	}
}
