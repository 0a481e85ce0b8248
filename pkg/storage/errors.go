package storage

import "errors"

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("storage: key not found")

	// ErrFailedToParseConnString is returned when the Redis connection URL is invalid.
	ErrFailedToParseConnString = errors.New("storage: failed to parse redis connection string")

	// ErrRedisNotReady is returned when Redis does not become reachable within the retry budget.
	ErrRedisNotReady = errors.New("storage: redis did not become ready within the given time period")
)
