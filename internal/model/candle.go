package model

import (
	"encoding/json"
	"time"
)

// Candle is a single OHLCV bar for one symbol at one timeframe.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	TS        time.Time `json:"ts"` // bar open time, UTC, timeframe-aligned
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns "symbol:timeframe:unixTS", the composite identity of a bar.
func (c Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe + ":" + itoa64(c.TS.Unix())
}

// JSON returns the JSON encoding, swallowing marshal errors for hot-path use.
func (c Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
