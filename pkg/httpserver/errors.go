package httpserver

import "errors"

var (
	// ErrStart is returned when the server cannot start or exits with a
	// listener error.
	ErrStart = errors.New("http server start failed")
	// ErrShutdown is returned when graceful shutdown does not complete.
	ErrShutdown = errors.New("http server shutdown failed")
)
