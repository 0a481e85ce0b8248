// Package authz decides whether a caller's permission set grants an
// (action, resource) pair, and provides the HTTP middleware that gates the
// connector's endpoints.
//
// An action is a colon-separated tuple such as "function:execute"; a
// resource is a '/'-segmented path. A permission entry grants a request
// when its resource is a string prefix of the requested resource AND its
// action tokens equal the requested tokens up to the first divergence,
// where the permission token at that position must be exactly "*".
//
// The wildcard only applies at the first differing position:
// "function:*" permits "function:execute", but "*:execute" does NOT permit
// "function:execute" (the leading "*" matches, so comparison never reaches
// "execute" vs a missing token). This asymmetry is intentional; do not
// generalize it to independent per-position wildcards.
package authz
