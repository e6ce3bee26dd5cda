// Package sqlite implements the scanner's relational stores (candles,
// scanner snapshots, benchmark states, watchlists) on top of a single
// WAL-mode SQLite database, grounded in the teacher's single-writer
// connection-pool pattern.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if necessary) the scanner's SQLite database in WAL
// mode and ensures the schema exists. maxOpenConns should be 1 for the
// writer-side DB handle (SQLite allows only one writer at a time) and can
// be higher for a read-only handle.
func Open(path string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL    NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, timeframe, ts)
		);
		CREATE INDEX IF NOT EXISTS idx_candles_tf_ts ON candles (timeframe, ts);

		CREATE TABLE IF NOT EXISTS scanner_snapshot (
			ts               INTEGER NOT NULL,
			timeframe        TEXT    NOT NULL,
			symbol           TEXT    NOT NULL,
			benchmark_symbol TEXT    NOT NULL,
			rrs              REAL    NOT NULL,
			rrv              REAL    NOT NULL,
			rve              REAL    NOT NULL,
			signal           TEXT    NOT NULL,
			PRIMARY KEY (ts, timeframe, symbol)
		);
		CREATE INDEX IF NOT EXISTS idx_snapshot_tf_ts ON scanner_snapshot (timeframe, ts);

		CREATE TABLE IF NOT EXISTS benchmark_state (
			ts            INTEGER NOT NULL,
			timeframe     TEXT    NOT NULL,
			symbol        TEXT    NOT NULL,
			trend         REAL    NOT NULL,
			vol_exp       REAL    NOT NULL,
			participation REAL    NOT NULL DEFAULT 0,
			regime        TEXT    NOT NULL,
			PRIMARY KEY (ts, timeframe, symbol)
		);
		CREATE INDEX IF NOT EXISTS idx_benchmark_tf_ts ON benchmark_state (timeframe, ts);

		CREATE TABLE IF NOT EXISTS watch_stocks (
			symbol TEXT PRIMARY KEY,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS watch_indices (
			symbol      TEXT PRIMARY KEY,
			data_symbol TEXT NOT NULL,
			active      INTEGER NOT NULL DEFAULT 1,
			is_default  INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS ticker_index (
			stock_symbol TEXT NOT NULL,
			index_symbol TEXT NOT NULL,
			PRIMARY KEY (stock_symbol, index_symbol)
		);
	`)
	return err
}
