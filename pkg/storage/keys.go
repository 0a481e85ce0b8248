package storage

import "net/url"

// Key prefixes for the two record shapes the connector persists.
const (
	userKeyPrefix        = "vendor-user/"
	foreignUserKeyPrefix = "foreign-vendor-user/"
)

// UserKey shapes the primary record key: vendor-user/{vendorUserId}.
// The id fragment is percent-encoded so ids containing '/' cannot escape
// the key hierarchy.
func UserKey(vendorUserID string) string {
	return userKeyPrefix + url.PathEscape(vendorUserID)
}

// ForeignUserKey shapes the alias record key:
// foreign-vendor-user/{foreignVendorId}/{foreignUserId}.
func ForeignUserKey(foreignVendorID, foreignUserID string) string {
	return foreignUserKeyPrefix + url.PathEscape(foreignVendorID) + "/" + url.PathEscape(foreignUserID)
}
