package idp

// Config carries the vendor OAuth endpoints and client credentials. The env
// keys follow the configuration contract with the host platform.
type Config struct {
	AuthorizationURL string `env:"VENDOR_OAUTH_AUTHORIZATION_URL,required"`
	TokenURL         string `env:"VENDOR_OAUTH_TOKEN_URL,required"`
	Scope            string `env:"VENDOR_OAUTH_SCOPE"`
	ClientID         string `env:"VENDOR_OAUTH_CLIENT_ID,required"`
	ClientSecret     string `env:"VENDOR_OAUTH_CLIENT_SECRET,required"`
	// Audience is optional and omitted from the authorization URL when empty.
	Audience string `env:"VENDOR_OAUTH_AUDIENCE"`
	// ExtraParams is an optional raw query-string fragment appended verbatim.
	ExtraParams string `env:"VENDOR_OAUTH_EXTRA_PARAMS"`
}
