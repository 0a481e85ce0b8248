package connector

import "errors"

var (
	// ErrUserNotFound is returned when neither the primary record nor a
	// foreign alias resolves to a stored user.
	ErrUserNotFound = errors.New("connector: user not found")

	// ErrForeignIdentityUnknown is returned when the user context carries no
	// foreign identity for the requested vendor.
	ErrForeignIdentityUnknown = errors.New("connector: unknown foreign oauth identity")

	// ErrForeignTokenUnavailable is returned when the sibling connector
	// fails to produce a token for a foreign identity.
	ErrForeignTokenUnavailable = errors.New("connector: unable to obtain foreign access token")

	// ErrRefreshFailed is returned when a refresh attempt fails with retry
	// budget remaining. The user record persists with its counter bumped.
	ErrRefreshFailed = errors.New("connector: access token refresh failed")

	// ErrRefreshExhausted is returned when consecutive refresh failures
	// exceed the configured limit. The user record is deleted.
	ErrRefreshExhausted = errors.New("connector: access token refresh attempts exhausted")

	// ErrNotRefreshable is returned when the access token is expired and no
	// refresh token is stored. The user record is deleted.
	ErrNotRefreshable = errors.New("connector: access token expired and no refresh token available")

	// ErrRefreshWaitTimeout is returned when a waiter polling a concurrent
	// refresh gives up before the refresher finishes.
	ErrRefreshWaitTimeout = errors.New("connector: timed out waiting for concurrent token refresh")

	// ErrConcurrentRefreshFailed is returned when a concurrent refresh
	// observed by a waiter ends in refresh_error or user deletion.
	ErrConcurrentRefreshFailed = errors.New("connector: concurrent token refresh failed")

	// ErrReturnToNotAllowed is returned when the returnTo URL supplied to
	// the configuration flow fails the allow-list check.
	ErrReturnToNotAllowed = errors.New("connector: returnTo URL is not allowed")

	// ErrInvalidState is returned when the state query parameter does not
	// decode to a configuration state blob.
	ErrInvalidState = errors.New("connector: invalid configuration state")
)
