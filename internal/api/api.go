// Package api implements the scanner's read surface: GET /scanner,
// GET /symbol/{s}, GET /benchmarks, and the WS /ws/scanner upgrade that
// delegates to the broadcaster. Grounded on the teacher's
// cmd/api_gateway/main.go handler style (plain net/http mux, manual
// query-param parsing, setCORS on every JSON endpoint) generalized from
// indicator-series endpoints to scanner-snapshot endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"relstrength-scanner/internal/cache"
	"relstrength-scanner/internal/model"
)

// ErrNotFound signals that a handler found no data for the requested
// timeframe/symbol.
var ErrNotFound = errors.New("api: not found")

// Broadcaster is the subset of internal/broadcaster.Broadcaster the WS
// handler needs.
type Broadcaster interface {
	ServeWS(w http.ResponseWriter, r *http.Request, timeframe string)
}

// Server answers the scanner's read API: cache-first, falling back to the
// durable store, matching spec's "cache[key] else store.latest(T)" rule.
type Server struct {
	Cache       model.Cache
	Snapshots   model.SnapshotStore
	Benchmarks  model.BenchmarkStateStore
	Broadcaster Broadcaster
	Logger      *slog.Logger
}

// Mux builds the scanner's HTTP handler tree.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/scanner", s.handleScanner)
	mux.HandleFunc("/symbol/", s.handleSymbol)
	mux.HandleFunc("/benchmarks", s.handleBenchmarks)
	mux.HandleFunc("/ws/scanner", s.handleWS)
	return mux
}

func (s *Server) handleScanner(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		http.Error(w, "timeframe is required", http.StatusBadRequest)
		return
	}
	snap, err := s.loadSnapshot(r.Context(), timeframe)
	if err != nil {
		s.notFoundOrError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	symbol := strings.TrimPrefix(r.URL.Path, "/symbol/")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		http.Error(w, "timeframe is required", http.StatusBadRequest)
		return
	}
	snap, err := s.loadSnapshot(r.Context(), timeframe)
	if err != nil {
		s.notFoundOrError(w, err)
		return
	}
	for _, row := range snap.Rows {
		if strings.EqualFold(row.Symbol, symbol) {
			writeJSON(w, row)
			return
		}
	}
	http.Error(w, "symbol not present in latest snapshot", http.StatusNotFound)
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		http.Error(w, "timeframe is required", http.StatusBadRequest)
		return
	}

	var states []model.BenchmarkState
	hit, err := s.Cache.GetJSON(r.Context(), cache.BenchmarksKey(timeframe), &states)
	if err != nil && s.Logger != nil {
		s.Logger.Warn("benchmarks cache read failed", "timeframe", timeframe, "error", err)
	}
	if !hit || len(states) == 0 {
		states, err = s.Benchmarks.Latest(r.Context(), timeframe)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if len(states) == 0 {
		http.Error(w, "no benchmark data for timeframe", http.StatusNotFound)
		return
	}
	writeJSON(w, struct {
		Timeframe string                 `json:"timeframe"`
		States    []model.BenchmarkState `json:"states"`
	}{Timeframe: timeframe, States: states})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		http.Error(w, "timeframe is required", http.StatusBadRequest)
		return
	}
	s.Broadcaster.ServeWS(w, r, timeframe)
}

// loadSnapshot is cache-first, falling back to the snapshot store, matching
// the read API's documented cache[scanner:T] else snapshot_store.latest(T).
func (s *Server) loadSnapshot(ctx context.Context, timeframe string) (model.ScannerSnapshot, error) {
	var snap model.ScannerSnapshot
	hit, err := s.Cache.GetJSON(ctx, cache.SnapshotKey(timeframe), &snap)
	if err != nil && s.Logger != nil {
		s.Logger.Warn("scanner cache read failed", "timeframe", timeframe, "error", err)
	}
	if hit && len(snap.Rows) > 0 {
		return snap, nil
	}

	snap, err = s.Snapshots.Latest(ctx, timeframe)
	if err != nil {
		return model.ScannerSnapshot{}, err
	}
	if snap.TS.IsZero() {
		return model.ScannerSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *Server) notFoundOrError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "no data for timeframe", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
