package connector

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/oauthkit/pkg/idp"
	"github.com/dmitrymomot/oauthkit/pkg/logger"
	"github.com/dmitrymomot/oauthkit/pkg/storage"
)

// Service ties the user record manager, the IdP client, and the vendor
// capabilities together behind the connector HTTP surface.
type Service struct {
	cfg    Config
	users  *Users
	store  storage.Store
	idp    *idp.Client
	vendor Vendor
	log    *slog.Logger
	http   *http.Client
	now    func() time.Time
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithLogger attaches a structured logger. The default discards everything.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHTTPClient overrides the HTTP client used for foreign-connector
// calls.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.http = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService assembles a connector service around a vendor implementation.
func NewService(cfg Config, store storage.Store, idpClient *idp.Client, vendor Vendor, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:    cfg,
		users:  NewUsers(store),
		store:  store,
		idp:    idpClient,
		vendor: vendor,
		log:    logger.Noop(),
		http:   http.DefaultClient,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Users exposes the user record manager, mainly for vendor OnCreate routes
// and tests.
func (s *Service) Users() *Users {
	return s.users
}

func (s *Service) callbackURL() string {
	return s.cfg.BaseURL + "/callback"
}
