package connector

import "time"

// Config carries the connector identity, the host resource coordinates used
// for permission checks, and the token lifecycle tunables. Lifecycle
// tunables are per-connector values with env defaults, never globals.
type Config struct {
	// BaseURL is the public base URL of this connector, without a trailing
	// slash. Redirect URIs and completion data derive from it.
	BaseURL string `env:"CONNECTOR_BASE_URL,required"`

	VendorName   string `env:"VENDOR_NAME,required"`
	VendorPrefix string `env:"VENDOR_PREFIX,required"`

	// SettingsManagers lists external URLs interposed between the OAuth
	// callback and flow completion, visited in order.
	SettingsManagers []string `env:"SETTINGS_MANAGERS" envSeparator:","`

	// AllowedReturnTo is the allow-list for the returnTo query parameter.
	// "*" allows any URL; an entry ending in "*" matches by prefix;
	// anything else matches exactly.
	AllowedReturnTo []string `env:"ALLOWED_RETURN_TO" envDefault:"*" envSeparator:","`

	// Host resource coordinates the authorizer builds resource paths from.
	AccountID      string `env:"ACCOUNT_ID,required"`
	SubscriptionID string `env:"SUBSCRIPTION_ID,required"`
	BoundaryID     string `env:"BOUNDARY_ID,required"`
	FunctionID     string `env:"FUNCTION_ID,required"`

	// ForeignTokenCredential is the bearer credential presented to sibling
	// connectors when delegating token acquisition.
	ForeignTokenCredential string `env:"FOREIGN_TOKEN_CREDENTIAL"`

	AccessTokenExpirationBuffer time.Duration `env:"ACCESS_TOKEN_EXPIRATION_BUFFER" envDefault:"30s"`
	RefreshErrorLimit           int           `env:"REFRESH_ERROR_LIMIT" envDefault:"10"`
	RefreshWaitCountLimit       int           `env:"REFRESH_WAIT_COUNT_LIMIT" envDefault:"5"`
	RefreshInitialBackoff       time.Duration `env:"REFRESH_INITIAL_BACKOFF" envDefault:"100ms"`
	RefreshBackoffIncrement     float64       `env:"REFRESH_BACKOFF_INCREMENT" envDefault:"1.2"`
}

// ResourceBase is the host resource path all permission checks are scoped
// under: /account/{a}/subscription/{s}/boundary/{b}/function/{f}/.
func (c Config) ResourceBase() string {
	return "/account/" + c.AccountID +
		"/subscription/" + c.SubscriptionID +
		"/boundary/" + c.BoundaryID +
		"/function/" + c.FunctionID + "/"
}
