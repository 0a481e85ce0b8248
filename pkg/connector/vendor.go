package connector

import (
	"context"
	"errors"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/oauthkit/pkg/idp"
	"github.com/dmitrymomot/oauthkit/pkg/storage"
)

// ErrNoProfileID is returned by the default UserID extraction when the
// vendor profile carries no usable id field.
var ErrNoProfileID = errors.New("connector: vendor user profile has no id; implement Profile and UserID")

// Vendor is the capability surface a concrete vendor integration implements.
// BaseVendor supplies defaults for every method; embed it and override what
// the vendor needs.
type Vendor interface {
	// Profile fetches the vendor user profile for a freshly acquired token.
	// The result is persisted on the user record.
	Profile(ctx context.Context, token *idp.Token) (map[string]any, error)

	// UserID derives the stable vendor user id from the user context.
	UserID(user *UserContext) (string, error)

	// AuthorizationPageHTML renders the page shown before redirecting to
	// the IdP. Returning an empty string redirects directly instead.
	AuthorizationPageHTML(page AuthorizationPage) (string, error)

	// OnCreate registers vendor-specific routes on the connector router.
	OnCreate(r chi.Router)

	// OnNewUser runs once after a user completes the configuration flow.
	// A failure deletes the user and surfaces an error completion.
	OnNewUser(ctx context.Context, user *UserContext) error

	// OnConfigurationComplete may mutate the user context before it is
	// persisted. It can run more than once for the same flow, so
	// implementations must be idempotent.
	OnConfigurationComplete(ctx context.Context, user *UserContext, data map[string]any) error

	// Health reports per-user health. The returned body is written as JSON
	// with the returned status code; a nil body yields {"status":code}.
	Health(ctx context.Context, user *UserContext) (int, any, error)

	// OnDelete tears down everything the connector created, including its
	// slice of storage.
	OnDelete(ctx context.Context, store storage.Store) error
}

// BaseVendor implements Vendor with the stock behavior.
type BaseVendor struct{}

func (BaseVendor) Profile(_ context.Context, _ *idp.Token) (map[string]any, error) {
	return map[string]any{}, nil
}

// UserID opportunistically returns the profile's id field.
func (BaseVendor) UserID(user *UserContext) (string, error) {
	if id, ok := user.VendorUserProfile["id"].(string); ok && id != "" {
		return id, nil
	}
	return "", ErrNoProfileID
}

func (BaseVendor) AuthorizationPageHTML(page AuthorizationPage) (string, error) {
	return RenderAuthorizationPage(page)
}

func (BaseVendor) OnCreate(_ chi.Router) {}

func (BaseVendor) OnNewUser(_ context.Context, _ *UserContext) error { return nil }

func (BaseVendor) OnConfigurationComplete(_ context.Context, _ *UserContext, _ map[string]any) error {
	return nil
}

func (BaseVendor) Health(_ context.Context, _ *UserContext) (int, any, error) {
	return 200, nil, nil
}

func (BaseVendor) OnDelete(ctx context.Context, store storage.Store) error {
	return store.DeletePrefix(ctx, "")
}
