package authz

import (
	"encoding/json"
	"net/http"
)

// CallerResolver extracts the authenticated caller from a request. The host
// platform decides how callers authenticate; the connector only consumes
// the resulting permission set. Returning an error or a nil caller denies
// the request.
type CallerResolver func(r *http.Request) (*Caller, error)

// ResourceFunc computes the resource path a request is acting on.
type ResourceFunc func(r *http.Request) string

// unauthorizedBody is the canonical 403 envelope.
type unauthorizedBody struct {
	Status     int    `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Require gates a route on the caller holding action on the computed
// resource. Denials respond with the canonical envelope
// {"status":403,"statusCode":403,"message":"Unauthorized"}.
func Require(resolve CallerResolver, action string, resource ResourceFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := resolve(r)
			if err != nil || !caller.Allowed(action, resource(r)) {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(unauthorizedBody{
		Status:     http.StatusForbidden,
		StatusCode: http.StatusForbidden,
		Message:    "Unauthorized",
	})
}
