package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"relstrength-scanner/internal/model"
)

// BenchmarkStateStore implements model.BenchmarkStateStore, the same
// upsert/atomic-latest shape as SnapshotStore applied to benchmark regime
// readings (spec's distillation folds this store into prose; SPEC_FULL.md
// §4.B/C gives it first-class treatment).
type BenchmarkStateStore struct {
	db *sql.DB
}

func NewBenchmarkStateStore(db *sql.DB) *BenchmarkStateStore { return &BenchmarkStateStore{db: db} }

func (s *BenchmarkStateStore) Save(ctx context.Context, states []model.BenchmarkState) error {
	if len(states) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save benchmark state: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO benchmark_state (ts, timeframe, symbol, trend, vol_exp, participation, regime)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ts, timeframe, symbol) DO UPDATE SET
			trend = excluded.trend, vol_exp = excluded.vol_exp,
			participation = excluded.participation, regime = excluded.regime
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare save benchmark state: %w", err)
	}
	defer stmt.Close()

	for _, st := range states {
		if _, err := stmt.ExecContext(ctx, st.TS.Unix(), st.Timeframe, st.Symbol, st.Trend, st.VolExp, st.Participation, string(st.Regime)); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: save benchmark state %s: %w", st.Symbol, err)
		}
	}
	return tx.Commit()
}

func (s *BenchmarkStateStore) Latest(ctx context.Context, timeframe string) ([]model.BenchmarkState, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin latest benchmark state: %w", err)
	}
	defer tx.Rollback()

	var maxTS sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM benchmark_state WHERE timeframe = ?`, timeframe,
	).Scan(&maxTS); err != nil {
		return nil, fmt.Errorf("sqlite: query max ts: %w", err)
	}
	if !maxTS.Valid {
		return nil, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT symbol, trend, vol_exp, participation, regime FROM benchmark_state
		WHERE timeframe = ? AND ts = ? ORDER BY symbol ASC
	`, timeframe, maxTS.Int64)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query benchmark state rows: %w", err)
	}
	defer rows.Close()

	ts := time.Unix(maxTS.Int64, 0).UTC()
	var out []model.BenchmarkState
	for rows.Next() {
		st := model.BenchmarkState{Timeframe: timeframe, TS: ts}
		var regime string
		if err := rows.Scan(&st.Symbol, &st.Trend, &st.VolExp, &st.Participation, &regime); err != nil {
			return nil, fmt.Errorf("sqlite: scan benchmark state row: %w", err)
		}
		st.Regime = model.Regime(regime)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *BenchmarkStateStore) Close() error { return s.db.Close() }
