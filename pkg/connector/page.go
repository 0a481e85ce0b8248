package connector

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed authorize.html
var authorizePage string

// AuthorizationPage carries the substitutions for the page shown before the
// redirect to the IdP.
type AuthorizationPage struct {
	VendorName       string
	AuthorizationURL string
	ReturnTo         string
	ReturnToState    string
}

// RenderAuthorizationPage substitutes the page values into the embedded
// template. ReturnTo and ReturnToState are injected as JSON literals so the
// page script can cancel back to the caller.
func RenderAuthorizationPage(page AuthorizationPage) (string, error) {
	returnTo, err := jsLiteral(page.ReturnTo)
	if err != nil {
		return "", err
	}
	returnToState, err := jsLiteral(page.ReturnToState)
	if err != nil {
		return "", err
	}
	return strings.NewReplacer(
		"##vendorName##", page.VendorName,
		"##authorizationUrl##", page.AuthorizationURL,
		"##returnTo##", returnTo,
		"##state##", returnToState,
	).Replace(authorizePage), nil
}

func jsLiteral(s string) (string, error) {
	if s == "" {
		return "null", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to render authorization page: %w", err)
	}
	return string(raw), nil
}
