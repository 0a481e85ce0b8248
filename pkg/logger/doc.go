// Package logger builds configured log/slog loggers for the connector.
//
// It provides a small factory around slog handlers with functional options,
// a decorator that injects request-scoped attributes from context, and attr
// helpers that keep log keys consistent across packages (error, component,
// user_id, vendor, status).
//
// # Usage
//
//	log := logger.New(
//	    logger.WithProduction("oauth-connector"),
//	)
//	log.Info("refresh complete",
//	    logger.Component("lifecycle"),
//	    logger.UserID(user.VendorUserID),
//	)
//
// Use logger.Noop() as the default in services that accept an optional
// *slog.Logger, so logging stays opt-in.
package logger
