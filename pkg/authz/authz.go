package authz

import "strings"

// actionSeparator splits an action string into its tuple tokens.
const actionSeparator = ":"

// Permission grants an action tuple on a resource path prefix.
type Permission struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

// PermissionSet is the caller's allow list.
type PermissionSet struct {
	Allow []Permission `json:"allow"`
}

// Caller identifies an authenticated caller and the permissions the host
// attached to it. A nil Permissions set denies everything.
type Caller struct {
	Permissions *PermissionSet `json:"permissions,omitempty"`
}

// Allowed reports whether the caller holds at least one permission granting
// action on resource. Resources compare by raw string prefix with no
// normalization.
func (c *Caller) Allowed(action, resource string) bool {
	if c == nil || c.Permissions == nil {
		return false
	}
	actionTokens := strings.Split(action, actionSeparator)
	for _, permission := range c.Permissions.Allow {
		if !strings.HasPrefix(resource, permission.Resource) {
			continue
		}
		if matchAction(actionTokens, strings.Split(permission.Action, actionSeparator)) {
			return true
		}
	}
	return false
}

// matchAction compares the requested tokens against the permission tokens.
// A wildcard only matches when it sits at the first differing position and
// terminates the permission tuple: "function:*" grants "function:execute",
// while "*:execute" does not.
func matchAction(requested, granted []string) bool {
	for i, token := range requested {
		var grantedToken string
		if i < len(granted) {
			grantedToken = granted[i]
		}
		if token == grantedToken {
			continue
		}
		return grantedToken == "*" && i == len(granted)-1
	}
	return true
}
