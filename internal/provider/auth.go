package provider

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// Credentials carries whatever combination of API key/secret/pre-minted
// access token/TOTP secret the operator configured. ResolveAccessToken
// resolves the one access token FetchCandles actually authenticates with.
type Credentials struct {
	APIKey      string
	APISecret   string
	AccessToken string
	TOTPSecret  string
}

// ResolveAccessToken returns a usable access token, following the same
// fallback chain as the Python client's _generate_access_token: a
// pre-minted access token wins outright; otherwise an API secret is tried
// first, then a TOTP-derived one-time code.
//
// The teacher's smartconnect client accepts a TOTP string as a caller-
// supplied parameter and never generates one itself; this generates it,
// matching pyotp.TOTP(secret).now() in the original.
func ResolveAccessToken(creds Credentials, now time.Time) (string, error) {
	if creds.AccessToken != "" {
		return creds.AccessToken, nil
	}
	if creds.APIKey == "" {
		return "", fmt.Errorf("provider: missing API key and no pre-minted access token")
	}
	if creds.APISecret != "" {
		return creds.APISecret, nil
	}
	if creds.TOTPSecret != "" {
		code, err := totp.GenerateCode(creds.TOTPSecret, now)
		if err != nil {
			return "", fmt.Errorf("provider: generate TOTP code: %w", err)
		}
		return code, nil
	}
	return "", fmt.Errorf("provider: missing credentials; provide an access token, API secret, or TOTP secret")
}
