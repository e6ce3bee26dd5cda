package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// WatchlistRepository implements model.WatchlistRepository as three narrow
// queries over watch_stocks/watch_indices/ticker_index, grounded on
// infra/db/repositories.py's repository-per-aggregate convention and
// services/indices.py's "default index first, de-duplicated, sorted"
// ordering rule.
type WatchlistRepository struct {
	db *sql.DB
}

func NewWatchlistRepository(db *sql.DB) *WatchlistRepository { return &WatchlistRepository{db: db} }

func (r *WatchlistRepository) ActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol FROM watch_stocks WHERE active = 1 ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query active symbols: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r *WatchlistRepository) IndexSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data_symbol FROM watch_indices WHERE active = 1 ORDER BY data_symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query index symbols: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r *WatchlistRepository) DefaultBenchmark(ctx context.Context) (string, error) {
	var dataSymbol string
	err := r.db.QueryRowContext(ctx,
		`SELECT data_symbol FROM watch_indices WHERE is_default = 1 AND active = 1 ORDER BY symbol ASC LIMIT 1`,
	).Scan(&dataSymbol)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: query default benchmark: %w", err)
	}
	return dataSymbol, nil
}

// BenchmarkFor resolves the benchmark a stock is measured against: its
// lexicographically-first explicit index mapping, falling back to the
// default index when no mapping row exists. (The source's compute.py reads
// a single mapping per stock, not the display-oriented multi-index set
// services/indices.py exposes; this mirrors that single-mapping contract.)
func (r *WatchlistRepository) BenchmarkFor(ctx context.Context, stockSymbol string) (string, error) {
	var dataSymbol string
	err := r.db.QueryRowContext(ctx, `
		SELECT wi.data_symbol FROM ticker_index ti
		JOIN watch_indices wi ON wi.symbol = ti.index_symbol AND wi.active = 1
		WHERE ti.stock_symbol = ?
		ORDER BY ti.index_symbol ASC LIMIT 1
	`, stockSymbol).Scan(&dataSymbol)
	if err == nil {
		return dataSymbol, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("sqlite: query benchmark for %s: %w", stockSymbol, err)
	}
	return r.DefaultBenchmark(ctx)
}

// AssociatedIndices returns every index symbol mapped to a stock, with the
// default index always first, de-duplicated, remainder sorted — the exact
// ordering services/indices.py's get_associated_indices produces.
func (r *WatchlistRepository) AssociatedIndices(ctx context.Context, stockSymbol string) ([]string, error) {
	def, err := r.defaultIndexSymbol(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT index_symbol FROM ticker_index WHERE stock_symbol = ?`, stockSymbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query associated indices: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var extras []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("sqlite: scan associated index: %w", err)
		}
		if sym == def || seen[sym] {
			continue
		}
		seen[sym] = true
		extras = append(extras, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(extras)

	if def == "" {
		return extras, nil
	}
	return append([]string{def}, extras...), nil
}

func (r *WatchlistRepository) defaultIndexSymbol(ctx context.Context) (string, error) {
	var symbol string
	err := r.db.QueryRowContext(ctx,
		`SELECT symbol FROM watch_indices WHERE is_default = 1 AND active = 1 ORDER BY symbol ASC LIMIT 1`,
	).Scan(&symbol)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: query default index symbol: %w", err)
	}
	return symbol, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
