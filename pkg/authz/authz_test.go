package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/oauthkit/pkg/authz"
)

func callerWith(perms ...authz.Permission) *authz.Caller {
	return &authz.Caller{Permissions: &authz.PermissionSet{Allow: perms}}
}

func TestCaller_Allowed(t *testing.T) {
	t.Parallel()

	const resource = "/account/acc-1/subscription/sub-1/boundary/b-1/function/f-1/user/789/"

	tests := []struct {
		name     string
		caller   *authz.Caller
		action   string
		resource string
		want     bool
	}{
		{
			name:     "exact action and root resource",
			caller:   callerWith(authz.Permission{Action: "function:execute", Resource: "/"}),
			action:   "function:execute",
			resource: resource,
			want:     true,
		},
		{
			name:     "global wildcard",
			caller:   callerWith(authz.Permission{Action: "*", Resource: "/"}),
			action:   "function:execute",
			resource: resource,
			want:     true,
		},
		{
			name:     "trailing wildcard matches diverging tail",
			caller:   callerWith(authz.Permission{Action: "function:*", Resource: "/"}),
			action:   "function:execute",
			resource: resource,
			want:     true,
		},
		{
			name:     "leading wildcard does not match",
			caller:   callerWith(authz.Permission{Action: "*:execute", Resource: "/"}),
			action:   "function:execute",
			resource: resource,
			want:     false,
		},
		{
			name:     "different action denied",
			caller:   callerWith(authz.Permission{Action: "function:delete", Resource: "/"}),
			action:   "function:execute",
			resource: resource,
			want:     false,
		},
		{
			name:     "permission shorter than action without wildcard",
			caller:   callerWith(authz.Permission{Action: "function", Resource: "/"}),
			action:   "function:execute",
			resource: resource,
			want:     false,
		},
		{
			name:     "action equal to permission prefix is granted",
			caller:   callerWith(authz.Permission{Action: "function:execute", Resource: "/"}),
			action:   "function",
			resource: resource,
			want:     true,
		},
		{
			name:     "resource prefix must match",
			caller:   callerWith(authz.Permission{Action: "*", Resource: "/account/other/"}),
			action:   "function:execute",
			resource: resource,
			want:     false,
		},
		{
			name:     "resource prefix match",
			caller:   callerWith(authz.Permission{Action: "*", Resource: "/account/acc-1/"}),
			action:   "function:execute",
			resource: resource,
			want:     true,
		},
		{
			name: "second permission grants",
			caller: callerWith(
				authz.Permission{Action: "function:delete", Resource: "/"},
				authz.Permission{Action: "function:execute", Resource: "/"},
			),
			action:   "function:execute",
			resource: resource,
			want:     true,
		},
		{
			name:     "no permission set denies",
			caller:   &authz.Caller{},
			action:   "function:execute",
			resource: resource,
			want:     false,
		},
		{
			name:     "nil caller denies",
			caller:   nil,
			action:   "function:execute",
			resource: resource,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.caller.Allowed(tt.action, tt.resource))
		})
	}
}
