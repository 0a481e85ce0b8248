// Package connector implements a reusable OAuth 2.0 authorization-code
// connector: it drives the authorization flow with a vendor IdP across
// browser redirects, persists the resulting token bundle and user profile,
// serves fresh access tokens on demand with transparent refresh, and
// exposes CRUD over the per-user record.
//
// A concrete integration implements the Vendor interface (usually by
// embedding BaseVendor) and hands it to NewService together with a storage
// backend and an idp.Client. Service.Router produces the HTTP surface.
package connector
