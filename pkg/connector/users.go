package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrymomot/oauthkit/pkg/storage"
)

// Users persists user records and their foreign-identity aliases. For every
// entry in a saved record's foreignOAuthIdentities there is an alias record
// pointing back at the primary, and deletion removes both sides.
type Users struct {
	store storage.Store
}

// NewUsers creates a user record manager over the given store.
func NewUsers(store storage.Store) *Users {
	return &Users{store: store}
}

// Get loads the primary record for vendorUserID. Absent records return
// ErrUserNotFound.
func (u *Users) Get(ctx context.Context, vendorUserID string) (*UserContext, error) {
	raw, err := u.store.Get(ctx, storage.UserKey(vendorUserID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, vendorUserID)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", vendorUserID, err)
	}
	var user UserContext
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", vendorUserID, err)
	}
	return &user, nil
}

// GetForeign resolves the alias record for a foreign identity and loads the
// primary it points at. A missing alias or missing primary returns
// ErrUserNotFound.
func (u *Users) GetForeign(ctx context.Context, foreignVendorID, foreignUserID string) (*UserContext, error) {
	vendorUserID, err := u.resolveAlias(ctx, foreignVendorID, foreignUserID)
	if err != nil {
		return nil, err
	}
	return u.Get(ctx, vendorUserID)
}

// Save writes the alias records for every foreign identity, then the
// primary. A partial failure leaves repair to the next save.
func (u *Users) Save(ctx context.Context, user *UserContext) error {
	for foreignVendorID, identity := range user.ForeignIdentities {
		alias, err := json.Marshal(aliasRecord{VendorUserID: user.VendorUserID})
		if err != nil {
			return fmt.Errorf("failed to encode alias for user %s: %w", user.VendorUserID, err)
		}
		key := storage.ForeignUserKey(foreignVendorID, identity.UserID)
		if err := u.store.Put(ctx, key, alias); err != nil {
			return fmt.Errorf("failed to save alias %s: %w", key, err)
		}
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user %s: %w", user.VendorUserID, err)
	}
	if err := u.store.Put(ctx, storage.UserKey(user.VendorUserID), raw); err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.VendorUserID, err)
	}
	return nil
}

// Delete removes the user's alias records and then the primary. Deleting an
// absent user is a no-op.
func (u *Users) Delete(ctx context.Context, vendorUserID string) error {
	user, err := u.Get(ctx, vendorUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	for foreignVendorID, identity := range user.ForeignIdentities {
		if err := u.store.Delete(ctx, storage.ForeignUserKey(foreignVendorID, identity.UserID)); err != nil {
			return fmt.Errorf("failed to delete alias for user %s: %w", vendorUserID, err)
		}
	}
	if err := u.store.Delete(ctx, storage.UserKey(vendorUserID)); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", vendorUserID, err)
	}
	return nil
}

// DeleteForeign resolves a foreign identity to its primary and deletes it.
// An unresolvable alias is a no-op.
func (u *Users) DeleteForeign(ctx context.Context, foreignVendorID, foreignUserID string) error {
	vendorUserID, err := u.resolveAlias(ctx, foreignVendorID, foreignUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	return u.Delete(ctx, vendorUserID)
}

func (u *Users) resolveAlias(ctx context.Context, foreignVendorID, foreignUserID string) (string, error) {
	raw, err := u.store.Get(ctx, storage.ForeignUserKey(foreignVendorID, foreignUserID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %s/%s", ErrUserNotFound, foreignVendorID, foreignUserID)
		}
		return "", fmt.Errorf("failed to resolve alias %s/%s: %w", foreignVendorID, foreignUserID, err)
	}
	var alias aliasRecord
	if err := json.Unmarshal(raw, &alias); err != nil {
		return "", fmt.Errorf("failed to decode alias %s/%s: %w", foreignVendorID, foreignUserID, err)
	}
	return alias.VendorUserID, nil
}
