package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig configures the upstream historical-candle endpoint.
type HTTPConfig struct {
	BaseURL     string // e.g. https://api.groww.in
	Credentials Credentials
	Timeout     time.Duration // default 10s
	Debug       bool
}

// HTTPClient is a Client backed by a plain REST call to the upstream
// historical-candle endpoint, following the header/auth/JSON-decode shape
// of the teacher's smartconnect.doRequest.
type HTTPClient struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// NewHTTPClient builds an HTTPClient with sane defaults.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12}}
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}
}

// FetchCandles walks [start, end) in per-timeframe-tier chunks, issuing
// one request per chunk and concatenating the normalized results.
func (c *HTTPClient) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]RawCandle, error) {
	interval, ok := Intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("provider: unsupported timeframe %q", timeframe)
	}

	token, err := ResolveAccessToken(c.cfg.Credentials, time.Now())
	if err != nil {
		return nil, err
	}

	var out []RawCandle
	for _, w := range chunkWindows(start, end, interval.MaxDays) {
		chunk, err := c.fetchChunk(ctx, token, symbol, interval, w[0], w[1])
		if err != nil {
			return nil, fmt.Errorf("provider: fetch %s %s chunk [%s,%s): %w",
				symbol, timeframe, w[0].Format(time.RFC3339), w[1].Format(time.RFC3339), err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *HTTPClient) fetchChunk(ctx context.Context, token, symbol string, interval Interval, start, end time.Time) ([]RawCandle, error) {
	q := url.Values{}
	q.Set("trading_symbol", symbol)
	q.Set("interval_in_minutes", strconv.Itoa(interval.Minutes))
	q.Set("start_time", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end_time", strconv.FormatInt(end.UnixMilli(), 10))

	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/historical/candles?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	if c.cfg.Debug {
		log.Printf("[provider] GET %s", reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}

	var payload struct {
		Payload struct {
			Candles [][]json.Number `json:"candles"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return normalizeCandles(payload.Payload.Candles), nil
}

// normalizeCandles mirrors RealGrowwClient._normalize_candles: rows with
// fewer than 6 fields, a nil timestamp, or a non-numeric OHLC value are
// dropped rather than erroring the whole batch.
func normalizeCandles(rows [][]json.Number) []RawCandle {
	var out []RawCandle
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		tsEpoch, err := row[0].Int64()
		if err != nil {
			continue
		}
		open, okO := safeFloat(row[1])
		high, okH := safeFloat(row[2])
		low, okL := safeFloat(row[3])
		closeV, okC := safeFloat(row[4])
		if !okO || !okH || !okL || !okC {
			continue
		}
		volume, _ := safeFloat(row[5])
		out = append(out, RawCandle{
			TS:     time.Unix(tsEpoch, 0).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeV,
			Volume: volume,
		})
	}
	return out
}

func safeFloat(n json.Number) (float64, bool) {
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}
