// Package idp talks to the vendor's OAuth 2.0 identity provider.
//
// It covers the three operations the connector needs: assembling the
// authorization URL that starts the browser flow, exchanging an
// authorization code for a token bundle, and exchanging a refresh token for
// a fresh bundle. Token responses are decoded as-is; whenever the provider
// reports expires_in, an absolute expires_at (milliseconds since epoch) is
// stamped onto the bundle at receipt time.
package idp
