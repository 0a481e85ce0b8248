package idp

import "time"

// Token is the vendor token bundle as returned by the IdP token endpoint,
// plus the derived expires_at stamp. JSON field names follow the OAuth 2.0
// wire format so the bundle round-trips through storage and HTTP untouched.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	// ExpiresAt is the absolute expiry in milliseconds since epoch, derived
	// from ExpiresIn at receipt time. Zero means the provider reported no
	// expiry and the token is treated as non-expiring.
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// Fresh reports whether the access token is present and not within buffer
// of its expiry at the given time. Tokens without expires_at never expire.
func (t *Token) Fresh(now time.Time, buffer time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt == 0 {
		return true
	}
	return t.ExpiresAt > now.UnixMilli()+buffer.Milliseconds()
}

// stampExpiry computes ExpiresAt from ExpiresIn at receipt time.
func (t *Token) stampExpiry(now time.Time) {
	if t.ExpiresIn > 0 {
		t.ExpiresAt = now.UnixMilli() + t.ExpiresIn*1000
	}
}
