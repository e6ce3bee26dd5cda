package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"relstrength-scanner/internal/model"
)

// CandleStore implements model.CandleStore. Grounded on the teacher's
// batched-transaction writer (internal/store/sqlite/writer.go's
// insertBatch), adapted from a channel-fed background writer into a direct
// call the ingestor makes once per symbol per sweep — the ingest sweep
// already groups candles per symbol, so there is no streaming-channel
// boundary left to batch across.
type CandleStore struct {
	db *sql.DB
}

func NewCandleStore(db *sql.DB) *CandleStore { return &CandleStore{db: db} }

// Upsert idempotently inserts or overwrites value columns for each candle,
// keyed by (symbol, timeframe, ts). Re-applying the same batch is a no-op
// on the stored data.
func (s *CandleStore) Upsert(ctx context.Context, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin upsert candles: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare upsert candles: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, c.Timeframe, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: upsert candle %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

// LatestWindow returns the most recent n candles for symbol+timeframe,
// ascending by TS.
func (s *CandleStore) LatestWindow(ctx context.Context, symbol, timeframe string, n int) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume FROM candles
			WHERE symbol = ? AND timeframe = ?
			ORDER BY ts DESC LIMIT ?
		) ORDER BY ts ASC
	`, symbol, timeframe, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query latest window: %w", err)
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		c := model.Candle{Symbol: symbol, Timeframe: timeframe}
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite: scan candle: %w", err)
		}
		c.TS = time.Unix(ts, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestBatch is LatestWindow for many symbols, grouped by symbol in a
// single query.
func (s *CandleStore) LatestBatch(ctx context.Context, symbols []string, timeframe string, n int) (map[string][]model.Candle, error) {
	out := make(map[string][]model.Candle, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	placeholders := make([]byte, 0, len(symbols)*2)
	args := make([]any, 0, len(symbols)+2)
	for i, sym := range symbols {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, sym)
	}
	args = append(args, timeframe)

	query := fmt.Sprintf(`
		SELECT symbol, ts, open, high, low, close, volume FROM candles
		WHERE symbol IN (%s) AND timeframe = ?
		ORDER BY symbol ASC, ts ASC
	`, string(placeholders))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query latest batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym string
		c := model.Candle{Timeframe: timeframe}
		var ts int64
		if err := rows.Scan(&sym, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite: scan batch candle: %w", err)
		}
		c.TS = time.Unix(ts, 0).UTC()
		c.Symbol = sym
		out[sym] = append(out[sym], c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// n is enforced per symbol by trimming the tail we just read ascending;
	// a single IN-query can't LIMIT per group, so trim here.
	for sym, cs := range out {
		if len(cs) > n {
			out[sym] = cs[len(cs)-n:]
		}
	}
	return out, nil
}

func (s *CandleStore) Close() error { return s.db.Close() }
