// Package httpserver wraps net/http.Server with graceful shutdown.
//
// Run blocks until the context is cancelled, an interrupt signal arrives, or
// the server fails. Shutdown is always graceful within the configured
// timeout.
//
//	srv := httpserver.New(
//	    httpserver.WithAddr(":8080"),
//	    httpserver.WithLogger(log),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server exited", logger.Error(err))
//	}
package httpserver
