package connector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oauthkit/pkg/authz"
	"github.com/dmitrymomot/oauthkit/pkg/connector"
	"github.com/dmitrymomot/oauthkit/pkg/idp"
	"github.com/dmitrymomot/oauthkit/pkg/storage"
)

// testVendor is a configurable Vendor for tests. The zero value behaves
// like BaseVendor except that Profile returns {"id":"789"}.
type testVendor struct {
	connector.BaseVendor

	mu             sync.Mutex
	profile        map[string]any
	profileErr     error
	redirectToIdP  bool
	onNewUserErr   error
	configComplete func(user *connector.UserContext, data map[string]any) error
	newUserCalls   int
	profileCalls   int
}

func (v *testVendor) Profile(_ context.Context, _ *idp.Token) (map[string]any, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.profileCalls++
	if v.profileErr != nil {
		return nil, v.profileErr
	}
	if v.profile != nil {
		return v.profile, nil
	}
	return map[string]any{"id": "789"}, nil
}

func (v *testVendor) AuthorizationPageHTML(page connector.AuthorizationPage) (string, error) {
	if v.redirectToIdP {
		return "", nil
	}
	return v.BaseVendor.AuthorizationPageHTML(page)
}

func (v *testVendor) OnNewUser(_ context.Context, _ *connector.UserContext) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.newUserCalls++
	return v.onNewUserErr
}

func (v *testVendor) OnConfigurationComplete(_ context.Context, user *connector.UserContext, data map[string]any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.configComplete != nil {
		return v.configComplete(user, data)
	}
	return nil
}

// fakeIdP is an httptest token endpoint. Code exchanges mint
// access-token:{code}; refresh exchanges are counted and optionally
// delayed or failed.
type fakeIdP struct {
	srv *httptest.Server

	mu           sync.Mutex
	refreshCalls int
	refreshDelay time.Duration
	refreshFail  bool
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	f := &fakeIdP{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handleToken))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token:" + r.PostForm.Get("code"),
			"expires_in":   10000,
		})
	case "refresh_token":
		f.mu.Lock()
		f.refreshCalls++
		delay, fail := f.refreshDelay, f.refreshFail
		f.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token:refreshed",
			"refresh_token": "refresh-token:2",
			"expires_in":    3600,
		})
	default:
		http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
	}
}

func (f *fakeIdP) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type testEnv struct {
	svc    *connector.Service
	store  *storage.MemoryStore
	vendor *testVendor
	idp    *fakeIdP
	cfg    connector.Config
	srv    *httptest.Server
}

func testConnectorConfig() connector.Config {
	return connector.Config{
		VendorName:                  "Contoso",
		VendorPrefix:                "contoso",
		AllowedReturnTo:             []string{"*"},
		AccountID:                   "acc-1",
		SubscriptionID:              "sub-1",
		BoundaryID:                  "bnd-1",
		FunctionID:                  "fn-1",
		ForeignTokenCredential:      "host-credential",
		AccessTokenExpirationBuffer: 30 * time.Second,
		RefreshErrorLimit:           10,
		RefreshWaitCountLimit:       5,
		RefreshInitialBackoff:       5 * time.Millisecond,
		RefreshBackoffIncrement:     1.2,
	}
}

// newTestEnv wires a Service behind a live httptest server so BaseURL
// reflects a real address. The router is installed after construction
// because the service needs the server URL first.
func newTestEnv(t *testing.T, adjust func(*connector.Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		store:  storage.NewMemoryStore(),
		vendor: &testVendor{},
		idp:    newFakeIdP(t),
		cfg:    testConnectorConfig(),
	}

	var router chi.Router
	env.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(env.srv.Close)

	env.cfg.BaseURL = env.srv.URL
	if adjust != nil {
		adjust(&env.cfg)
	}

	idpClient := idp.New(idp.Config{
		AuthorizationURL: "https://idp.com/authorize",
		TokenURL:         env.idp.srv.URL,
		Scope:            "sample-scope",
		ClientID:         "123",
		ClientSecret:     "456",
		Audience:         "sample-audience",
		ExtraParams:      "sample-extra-param=12",
	})
	env.svc = connector.NewService(env.cfg, env.store, idpClient, env.vendor)
	router = env.svc.Router(allowAll)
	return env
}

func allowAll(_ *http.Request) (*authz.Caller, error) {
	return &authz.Caller{Permissions: &authz.PermissionSet{
		Allow: []authz.Permission{{Action: "*", Resource: "/"}},
	}}, nil
}

func storedUser(t *testing.T, env *testEnv, mutate func(*connector.UserContext)) *connector.UserContext {
	t.Helper()
	user := &connector.UserContext{
		VendorUserID:      "789",
		VendorToken:       &idp.Token{AccessToken: "access-token:abc"},
		VendorUserProfile: map[string]any{"id": "789"},
		Status:            connector.StatusAuthenticated,
		Timestamp:         time.Now().UnixMilli(),
	}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(t, env.svc.Users().Save(context.Background(), user))
	return user
}

func TestEnsureAccessToken_ReturnsFreshToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	user := storedUser(t, env, func(u *connector.UserContext) {
		u.VendorToken.ExpiresAt = time.Now().Add(time.Hour).UnixMilli()
	})

	token, err := env.svc.EnsureAccessToken(context.Background(), user, "")
	require.NoError(t, err)
	assert.Equal(t, "access-token:abc", token.AccessToken)
	assert.Zero(t, env.idp.refreshCount())
}

func TestEnsureAccessToken_RefreshesExpiredToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	user := storedUser(t, env, func(u *connector.UserContext) {
		u.VendorToken.RefreshToken = "refresh-token:1"
		u.VendorToken.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
		u.RefreshErrorCount = 3
	})

	token, err := env.svc.EnsureAccessToken(context.Background(), user, "")
	require.NoError(t, err)
	assert.Equal(t, "access-token:refreshed", token.AccessToken)
	assert.Greater(t, token.ExpiresAt,
		time.Now().Add(env.cfg.AccessTokenExpirationBuffer).UnixMilli())

	stored, err := env.svc.Users().Get(context.Background(), "789")
	require.NoError(t, err)
	assert.Equal(t, connector.StatusAuthenticated, stored.Status)
	assert.Zero(t, stored.RefreshErrorCount)
	assert.Equal(t, "access-token:refreshed", stored.VendorToken.AccessToken)
	assert.Equal(t, 1, env.idp.refreshCount())
}

func TestEnsureAccessToken_TokenNearingExpiryRefreshes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	user := storedUser(t, env, func(u *connector.UserContext) {
		u.VendorToken.RefreshToken = "refresh-token:1"
		// Inside the 30s expiration buffer, so not fresh enough.
		u.VendorToken.ExpiresAt = time.Now().Add(10 * time.Second).UnixMilli()
	})

	token, err := env.svc.EnsureAccessToken(context.Background(), user, "")
	require.NoError(t, err)
	assert.Equal(t, "access-token:refreshed", token.AccessToken)
}

func TestEnsureAccessToken_RefreshFailureCountsAndPersists(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.idp.refreshFail = true
	user := storedUser(t, env, func(u *connector.UserContext) {
		u.VendorToken.RefreshToken = "refresh-token:1"
		u.VendorToken.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	})

	_, err := env.svc.EnsureAccessToken(context.Background(), user, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrRefreshFailed)
	assert.Contains(t, err.Error(), "1/10")

	stored, err := env.svc.Users().Get(context.Background(), "789")
	require.NoError(t, err)
	assert.Equal(t, connector.StatusRefreshError, stored.Status)
	assert.Equal(t, 1, stored.RefreshErrorCount)
}

func TestEnsureAccessToken_RefreshExhaustionDeletesUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.idp.refreshFail = true
	user := storedUser(t, env, func(u *connector.UserContext) {
		u.VendorToken.RefreshToken = "refresh-token:1"
		u.VendorToken.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
		u.Status = connector.StatusRefreshError
		u.RefreshErrorCount = 11
	})

	_, err := env.svc.EnsureAccessToken(context.Background(), user, "")
	assert.ErrorIs(t, err, connector.ErrRefreshExhausted)

	_, err = env.svc.Users().Get(context.Background(), "789")
	assert.ErrorIs(t, err, connector.ErrUserNotFound)
}

func TestEnsureAccessToken_ExpiredWithoutRefreshTokenDeletesUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	user := storedUser(t, env, func(u *connector.UserContext) {
		u.VendorToken.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	})

	_, err := env.svc.EnsureAccessToken(context.Background(), user, "")
	assert.ErrorIs(t, err, connector.ErrNotRefreshable)

	_, err = env.svc.Users().Get(context.Background(), "789")
	assert.ErrorIs(t, err, connector.ErrUserNotFound)
}

func TestEnsureAccessToken_WaitForRefresh(t *testing.T) {
	t.Parallel()

	refreshingUser := func(u *connector.UserContext) *connector.UserContext {
		// The caller's view of the record says another worker owns the
		// refresh; the store holds the state the refresher left behind.
		view := *u
		view.Status = connector.StatusRefreshing
		return &view
	}

	t.Run("returns the token once the refresher finishes", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil)
		user := storedUser(t, env, func(u *connector.UserContext) {
			u.VendorToken.ExpiresAt = time.Now().Add(time.Hour).UnixMilli()
		})

		token, err := env.svc.EnsureAccessToken(context.Background(), refreshingUser(user), "")
		require.NoError(t, err)
		assert.Equal(t, "access-token:abc", token.AccessToken)
	})

	t.Run("fails when the refresher recorded an error", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil)
		user := storedUser(t, env, func(u *connector.UserContext) {
			u.Status = connector.StatusRefreshError
			u.RefreshErrorCount = 1
		})

		_, err := env.svc.EnsureAccessToken(context.Background(), refreshingUser(user), "")
		assert.ErrorIs(t, err, connector.ErrConcurrentRefreshFailed)
	})

	t.Run("fails when the user was deleted during refresh", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil)
		user := storedUser(t, env, nil)
		require.NoError(t, env.svc.Users().Delete(context.Background(), "789"))

		_, err := env.svc.EnsureAccessToken(context.Background(), refreshingUser(user), "")
		assert.ErrorIs(t, err, connector.ErrConcurrentRefreshFailed)
	})

	t.Run("times out when the refresh never finishes", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil)
		user := storedUser(t, env, func(u *connector.UserContext) {
			u.Status = connector.StatusRefreshing
		})

		_, err := env.svc.EnsureAccessToken(context.Background(), user, "")
		assert.ErrorIs(t, err, connector.ErrRefreshWaitTimeout)
	})
}

func TestEnsureAccessToken_ConcurrentRefreshCoalesces(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *connector.Config) {
		cfg.RefreshInitialBackoff = 20 * time.Millisecond
		cfg.RefreshBackoffIncrement = 1.5
	})
	env.idp.refreshDelay = 50 * time.Millisecond
	storedUser(t, env, func(u *connector.UserContext) {
		u.VendorToken.RefreshToken = "refresh-token:1"
		u.VendorToken.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	})

	ctx := context.Background()

	refresherUser, err := env.svc.Users().Get(ctx, "789")
	require.NoError(t, err)

	type result struct {
		token *idp.Token
		err   error
	}
	refresherDone := make(chan result, 1)
	go func() {
		token, err := env.svc.EnsureAccessToken(ctx, refresherUser, "")
		refresherDone <- result{token, err}
	}()

	// Wait until the refresher has persisted the refreshing status, then
	// start a second caller that must coalesce onto it.
	require.Eventually(t, func() bool {
		user, err := env.svc.Users().Get(ctx, "789")
		return err == nil && user.Status == connector.StatusRefreshing
	}, time.Second, time.Millisecond)

	waiterUser, err := env.svc.Users().Get(ctx, "789")
	require.NoError(t, err)
	waiterToken, waiterErr := env.svc.EnsureAccessToken(ctx, waiterUser, "")

	refresher := <-refresherDone
	require.NoError(t, refresher.err)
	require.NoError(t, waiterErr)
	assert.Equal(t, refresher.token.AccessToken, waiterToken.AccessToken)
	assert.Equal(t, 1, env.idp.refreshCount())
}

func TestEnsureAccessToken_Foreign(t *testing.T) {
	t.Parallel()

	t.Run("unknown identity", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil)
		user := storedUser(t, env, nil)

		_, err := env.svc.EnsureAccessToken(context.Background(), user, "foobar")
		assert.ErrorIs(t, err, connector.ErrForeignIdentityUnknown)
	})

	t.Run("delegates to the sibling connector with a bearer credential", func(t *testing.T) {
		t.Parallel()

		sibling := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user/u123/token", r.URL.Path)
			assert.Equal(t, "Bearer host-credential", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "foreign-token"})
		}))
		defer sibling.Close()

		env := newTestEnv(t, nil)
		user := storedUser(t, env, func(u *connector.UserContext) {
			u.ForeignIdentities = map[string]connector.ForeignIdentity{
				"foobar": {UserID: "u123", ConnectorBaseURL: sibling.URL},
			}
		})

		token, err := env.svc.EnsureAccessToken(context.Background(), user, "foobar")
		require.NoError(t, err)
		assert.Equal(t, "foreign-token", token.AccessToken)
	})

	t.Run("sibling failure", func(t *testing.T) {
		t.Parallel()

		sibling := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"message":"nope"}`, http.StatusBadGateway)
		}))
		defer sibling.Close()

		env := newTestEnv(t, nil)
		user := storedUser(t, env, func(u *connector.UserContext) {
			u.ForeignIdentities = map[string]connector.ForeignIdentity{
				"foobar": {UserID: "u123", ConnectorBaseURL: sibling.URL},
			}
		})

		_, err := env.svc.EnsureAccessToken(context.Background(), user, "foobar")
		assert.ErrorIs(t, err, connector.ErrForeignTokenUnavailable)
	})
}
