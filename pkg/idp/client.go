package idp

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
)

// Client performs the code-for-token and refresh-token exchanges against
// the vendor IdP.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// Option configures a Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for token-endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithClock overrides the time source. Tests use it to control expiry
// stamping.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

// New constructs an IdP client for the configured vendor.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: http.DefaultClient,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthorizationURL assembles the web authorization URL that starts the
// flow. The state parameter is appended raw: callers must supply a
// URL-safe value. Optional parameters that are not configured do not
// appear in the URL at all.
func (c *Client) AuthorizationURL(state, redirectURI string) string {
	var b strings.Builder
	b.WriteString(c.cfg.AuthorizationURL)
	b.WriteString("?response_type=code")
	b.WriteString("&scope=" + url.QueryEscape(c.cfg.Scope))
	b.WriteString("&state=" + state)
	b.WriteString("&client_id=" + c.cfg.ClientID)
	b.WriteString("&redirect_uri=" + url.QueryEscape(redirectURI))
	if c.cfg.Audience != "" {
		b.WriteString("&audience=" + url.QueryEscape(c.cfg.Audience))
	}
	if c.cfg.ExtraParams != "" {
		b.WriteString("&" + c.cfg.ExtraParams)
	}
	return b.String()
}

// ExchangeCode exchanges the authorization code for a token bundle.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	return c.postForm(ctx, form)
}

// RefreshToken exchanges the refresh token from current for a fresh token
// bundle. When the provider omits refresh_token from the response, the
// current one is carried forward (IdPs commonly omit it when unchanged).
func (c *Client) RefreshToken(ctx context.Context, current *Token, redirectURI string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", current.RefreshToken)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	token, err := c.postForm(ctx, form)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = current.RefreshToken
	}
	return token, nil
}

func (c *Client) postForm(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrTokenExchange, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTokenExchange, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errors.Join(ErrInvalidTokenResponse, err)
	}
	token.stampExpiry(c.now())
	return &token, nil
}
