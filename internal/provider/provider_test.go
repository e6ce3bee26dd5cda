package provider

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestResolveAccessTokenPrefersPreMintedToken(t *testing.T) {
	got, err := ResolveAccessToken(Credentials{AccessToken: "minted"}, time.Now())
	if err != nil {
		t.Fatalf("ResolveAccessToken: %v", err)
	}
	if got != "minted" {
		t.Fatalf("got %q, want %q", got, "minted")
	}
}

func TestResolveAccessTokenFallsBackToTOTP(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	now := time.Unix(1700000000, 0)
	want, err := totp.GenerateCode(secret, now)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	got, err := ResolveAccessToken(Credentials{APIKey: "key", TOTPSecret: secret}, now)
	if err != nil {
		t.Fatalf("ResolveAccessToken: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveAccessTokenErrorsWithNoCredentials(t *testing.T) {
	if _, err := ResolveAccessToken(Credentials{}, time.Now()); err == nil {
		t.Fatalf("expected error with no credentials")
	}
}

func TestChunkWindowsSplitsAtMaxDays(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(75 * 24 * time.Hour)

	windows := chunkWindows(start, end, 30)
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if !windows[0][0].Equal(start) {
		t.Fatalf("first window start = %v, want %v", windows[0][0], start)
	}
	if !windows[len(windows)-1][1].Equal(end) {
		t.Fatalf("last window end = %v, want %v", windows[len(windows)-1][1], end)
	}
}

func TestFakeClientGeneratesBarsOnInterval(t *testing.T) {
	fc := NewFakeClient()
	fc.Series["TCS"] = func(i int) float64 { return 100 + float64(i) }

	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	end := start.Add(25 * time.Minute)

	candles, err := fc.FetchCandles(context.Background(), "TCS", "5m", start, end)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 5 {
		t.Fatalf("got %d candles, want 5", len(candles))
	}
	if candles[0].Close != 100 || candles[4].Close != 104 {
		t.Fatalf("unexpected close path: %v", candles)
	}
}

func TestFakeClientUnknownSymbolReturnsEmpty(t *testing.T) {
	fc := NewFakeClient()
	candles, err := fc.FetchCandles(context.Background(), "NOPE", "5m", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 0 {
		t.Fatalf("expected no candles for unscripted symbol, got %d", len(candles))
	}
}
