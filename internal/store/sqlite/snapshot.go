package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"relstrength-scanner/internal/model"
)

// SnapshotStore implements model.SnapshotStore. Grounded on
// infra/db/repositories.py's SnapshotRepository, with the max(ts)-then-rows
// read wrapped in a single sql.Tx so Latest is genuinely atomic (the
// Python original issues the two queries outside any shared transaction).
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore { return &SnapshotStore{db: db} }

// Save upserts every row of a snapshot tick, keyed by (ts, timeframe, symbol).
func (s *SnapshotStore) Save(ctx context.Context, snap model.ScannerSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scanner_snapshot (ts, timeframe, symbol, benchmark_symbol, rrs, rrv, rve, signal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ts, timeframe, symbol) DO UPDATE SET
			benchmark_symbol = excluded.benchmark_symbol, rrs = excluded.rrs,
			rrv = excluded.rrv, rve = excluded.rve, signal = excluded.signal
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare save snapshot: %w", err)
	}
	defer stmt.Close()

	ts := snap.TS.Unix()
	for _, row := range snap.Rows {
		if _, err := stmt.ExecContext(ctx, ts, snap.Timeframe, row.Symbol, row.BenchmarkSymbol,
			row.RRS, row.RRV, row.RVE, string(row.Signal)); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: save snapshot row %s: %w", row.Symbol, err)
		}
	}
	return tx.Commit()
}

// Latest returns the rows at max(ts) for a timeframe, read inside one
// transaction so concurrent writers can't produce a torn read spanning two
// different ticks.
func (s *SnapshotStore) Latest(ctx context.Context, timeframe string) (model.ScannerSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return model.ScannerSnapshot{}, fmt.Errorf("sqlite: begin latest snapshot: %w", err)
	}
	defer tx.Rollback()

	var maxTS sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM scanner_snapshot WHERE timeframe = ?`, timeframe,
	).Scan(&maxTS); err != nil {
		return model.ScannerSnapshot{}, fmt.Errorf("sqlite: query max ts: %w", err)
	}
	if !maxTS.Valid {
		return model.ScannerSnapshot{Timeframe: timeframe}, nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT symbol, benchmark_symbol, rrs, rrv, rve, signal
		FROM scanner_snapshot WHERE timeframe = ? AND ts = ?
		ORDER BY symbol ASC
	`, timeframe, maxTS.Int64)
	if err != nil {
		return model.ScannerSnapshot{}, fmt.Errorf("sqlite: query snapshot rows: %w", err)
	}
	defer rows.Close()

	snap := model.ScannerSnapshot{Timeframe: timeframe, TS: time.Unix(maxTS.Int64, 0).UTC()}
	for rows.Next() {
		var r model.ScannerRow
		var sig string
		if err := rows.Scan(&r.Symbol, &r.BenchmarkSymbol, &r.RRS, &r.RRV, &r.RVE, &sig); err != nil {
			return model.ScannerSnapshot{}, fmt.Errorf("sqlite: scan snapshot row: %w", err)
		}
		r.Timeframe = snap.Timeframe
		r.TS = snap.TS
		r.Signal = model.Signal(sig)
		snap.Rows = append(snap.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return model.ScannerSnapshot{}, err
	}
	model.SortRows(snap.Rows)
	return snap, tx.Commit()
}

func (s *SnapshotStore) Close() error { return s.db.Close() }
