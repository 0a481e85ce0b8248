package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/oauthkit/pkg/idp"
	"github.com/dmitrymomot/oauthkit/pkg/logger"
)

// EnsureAccessToken returns a valid access token for the user. A non-empty
// foreignVendorID delegates to the sibling connector recorded in the user's
// foreign identities. Locally, an expired token is refreshed through the
// IdP; the persisted refreshing status coordinates overlapping callers
// across workers, so a caller observing it polls instead of refreshing.
func (s *Service) EnsureAccessToken(ctx context.Context, user *UserContext, foreignVendorID string) (*idp.Token, error) {
	if foreignVendorID != "" {
		return s.foreignAccessToken(ctx, user, foreignVendorID)
	}
	if user.Status == StatusRefreshing {
		return s.waitForRefresh(ctx, user.VendorUserID)
	}
	return s.ensureLocal(ctx, user)
}

func (s *Service) ensureLocal(ctx context.Context, user *UserContext) (*idp.Token, error) {
	if user.VendorToken.Fresh(s.now(), s.cfg.AccessTokenExpirationBuffer) {
		return user.VendorToken, nil
	}

	if user.VendorToken == nil || user.VendorToken.RefreshToken == "" {
		if err := s.users.Delete(ctx, user.VendorUserID); err != nil {
			s.log.ErrorContext(ctx, "failed to delete non-refreshable user",
				logger.UserID(user.VendorUserID), logger.Error(err))
		}
		return nil, fmt.Errorf("%w: user %s", ErrNotRefreshable, user.VendorUserID)
	}

	// Flip status before calling the IdP so overlapping callers observe the
	// in-flight refresh and fall into waitForRefresh.
	user.Status = StatusRefreshing
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "refreshing access token", logger.UserID(user.VendorUserID))

	token, err := s.idp.RefreshToken(ctx, user.VendorToken, s.callbackURL())
	if err != nil {
		return nil, s.refreshFailed(ctx, user, err)
	}
	profile, err := s.vendor.Profile(ctx, token)
	if err != nil {
		return nil, s.refreshFailed(ctx, user, err)
	}

	user.VendorToken = token
	user.VendorUserProfile = profile
	user.Status = StatusAuthenticated
	user.RefreshErrorCount = 0
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return token, nil
}

// refreshFailed converts a refresh error into either a counted failure or,
// once the budget is spent, user deletion. The counter is compared before
// the increment, so the limit bounds consecutive failures.
func (s *Service) refreshFailed(ctx context.Context, user *UserContext, cause error) error {
	if user.RefreshErrorCount > s.cfg.RefreshErrorLimit {
		if err := s.users.Delete(ctx, user.VendorUserID); err != nil {
			s.log.ErrorContext(ctx, "failed to delete user after exhausted refresh attempts",
				logger.UserID(user.VendorUserID), logger.Error(err))
		}
		return fmt.Errorf("%w: user %s deleted after %d consecutive failures: %v",
			ErrRefreshExhausted, user.VendorUserID, user.RefreshErrorCount, cause)
	}

	user.RefreshErrorCount++
	user.Status = StatusRefreshError
	if err := s.users.Save(ctx, user); err != nil {
		s.log.ErrorContext(ctx, "failed to persist refresh error",
			logger.UserID(user.VendorUserID), logger.Error(err))
	}
	return fmt.Errorf("%w (attempt %d/%d): %v",
		ErrRefreshFailed, user.RefreshErrorCount, s.cfg.RefreshErrorLimit, cause)
}

// waitForRefresh polls the stored record until the concurrent refresher
// lands in a terminal state. It never mutates state itself.
func (s *Service) waitForRefresh(ctx context.Context, vendorUserID string) (*idp.Token, error) {
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = s.cfg.RefreshInitialBackoff
	wait.RandomizationFactor = 0
	wait.Multiplier = s.cfg.RefreshBackoffIncrement

	for i := 0; i < s.cfg.RefreshWaitCountLimit; i++ {
		if err := sleep(ctx, wait.NextBackOff()); err != nil {
			return nil, err
		}

		user, err := s.users.Get(ctx, vendorUserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, fmt.Errorf("%w: user %s was deleted during refresh",
					ErrConcurrentRefreshFailed, vendorUserID)
			}
			return nil, err
		}
		switch user.Status {
		case StatusAuthenticated:
			return user.VendorToken, nil
		case StatusRefreshError:
			return nil, fmt.Errorf("%w: user %s", ErrConcurrentRefreshFailed, vendorUserID)
		}
	}
	return nil, fmt.Errorf("%w: user %s still refreshing after %d polls",
		ErrRefreshWaitTimeout, vendorUserID, s.cfg.RefreshWaitCountLimit)
}

// foreignAccessToken delegates token acquisition to the sibling connector
// this user is known at, authenticating with the host-supplied bearer
// credential.
func (s *Service) foreignAccessToken(ctx context.Context, user *UserContext, foreignVendorID string) (*idp.Token, error) {
	identity, ok := user.ForeignIdentities[foreignVendorID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s has no identity for vendor %s",
			ErrForeignIdentityUnknown, user.VendorUserID, foreignVendorID)
	}

	endpoint := strings.TrimSuffix(identity.ConnectorBaseURL, "/") +
		"/user/" + url.PathEscape(identity.UserID) + "/token"

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, s.http),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.cfg.ForeignTokenCredential}),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForeignTokenUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForeignTokenUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForeignTokenUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s responded with status %d: %s",
			ErrForeignTokenUnavailable, identity.ConnectorBaseURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token idp.Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForeignTokenUnavailable, err)
	}
	return &token, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
