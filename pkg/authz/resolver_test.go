package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oauthkit/pkg/authz"
)

func TestCallerFromHeader(t *testing.T) {
	t.Parallel()

	resolve := authz.CallerFromHeader("X-Caller")

	t.Run("parses the permission set", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/user/789", nil)
		r.Header.Set("X-Caller", `{"permissions":{"allow":[{"action":"function:execute","resource":"/"}]}}`)

		caller, err := resolve(r)
		require.NoError(t, err)
		assert.True(t, caller.Allowed("function:execute", "/account/a/"))
		assert.False(t, caller.Allowed("function:delete", "/account/a/"))
	})

	t.Run("missing header denies", func(t *testing.T) {
		t.Parallel()
		_, err := resolve(httptest.NewRequest("GET", "/user/789", nil))
		assert.ErrorIs(t, err, authz.ErrNoCaller)
	})

	t.Run("malformed header denies", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/user/789", nil)
		r.Header.Set("X-Caller", "not-json")

		_, err := resolve(r)
		assert.Error(t, err)
	})
}
