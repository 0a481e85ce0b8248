package connector

import (
	"github.com/dmitrymomot/oauthkit/pkg/idp"
)

// Status is the token lifecycle state persisted on a user record. It is the
// sole cross-process coordination primitive: a record observed in
// StatusRefreshing means another worker owns the in-flight refresh.
type Status string

const (
	StatusAuthenticated Status = "authenticated"
	StatusRefreshing    Status = "refreshing"
	StatusRefreshError  Status = "refresh_error"
)

// ForeignIdentity declares that the same person is known as UserID inside
// the sibling connector hosted at ConnectorBaseURL.
type ForeignIdentity struct {
	UserID           string `json:"userId"`
	ConnectorBaseURL string `json:"connectorBaseUrl"`
}

// UserContext is the canonical per-user record. JSON field names are part
// of the persistence and HTTP contract.
type UserContext struct {
	VendorUserID      string                     `json:"vendorUserId"`
	VendorToken       *idp.Token                 `json:"vendorToken,omitempty"`
	VendorUserProfile map[string]any             `json:"vendorUserProfile,omitempty"`
	Status            Status                     `json:"status"`
	Timestamp         int64                      `json:"timestamp"`
	RefreshErrorCount int                        `json:"refreshErrorCount,omitempty"`
	ForeignIdentities map[string]ForeignIdentity `json:"foreignOAuthIdentities,omitempty"`
}

// aliasRecord is the value stored under a foreign-vendor-user key. It points
// back at the primary record.
type aliasRecord struct {
	VendorUserID string `json:"vendorUserId"`
}
