package logger

import "log/slog"

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the subsystem emitting the log under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// UserID records the vendor user identifier under the key "user_id".
// If id is empty, it returns an empty Attr.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Vendor records a vendor identifier under the key "vendor".
// If id is empty, it returns an empty Attr.
func Vendor(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("vendor", id)
}

// Status records a lifecycle status under the key "status".
func Status(status string) slog.Attr {
	return slog.String("status", status)
}
