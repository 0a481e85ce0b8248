package authz

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrNoCaller is returned when a request carries no caller identity.
var ErrNoCaller = errors.New("authz: request carries no caller")

// CallerFromHeader builds a resolver that reads the caller's permission set
// from a JSON-encoded request header. The header is expected to be set by a
// trusted fronting gateway that already authenticated the caller; requests
// without it are denied.
func CallerFromHeader(header string) CallerResolver {
	return func(r *http.Request) (*Caller, error) {
		raw := r.Header.Get(header)
		if raw == "" {
			return nil, ErrNoCaller
		}
		var caller Caller
		if err := json.Unmarshal([]byte(raw), &caller); err != nil {
			return nil, err
		}
		return &caller, nil
	}
}
