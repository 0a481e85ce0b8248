package idp

import "errors"

var (
	// ErrTokenExchange is returned when the token endpoint rejects a code or
	// refresh-token exchange.
	ErrTokenExchange = errors.New("idp: token exchange failed")

	// ErrInvalidTokenResponse is returned when the token endpoint responds
	// with a body that cannot be decoded.
	ErrInvalidTokenResponse = errors.New("idp: invalid token response")
)
