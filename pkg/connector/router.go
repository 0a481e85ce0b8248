package connector

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/oauthkit/pkg/authz"
	"github.com/dmitrymomot/oauthkit/pkg/logger"
)

// errorEnvelope is the canonical failure response body.
type errorEnvelope struct {
	Status     int    `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Router assembles the connector HTTP surface. User operations require the
// caller to hold function:execute on the user resource; connector teardown
// requires function:delete on the function resource. The vendor's OnCreate
// hook may attach additional routes.
func (s *Service) Router(resolve authz.CallerResolver) chi.Router {
	r := chi.NewRouter()

	userResource := func(r *http.Request) string {
		return s.cfg.ResourceBase() + "user/" + url.PathEscape(chi.URLParam(r, "vendorUserID")) + "/"
	}
	foreignUserResource := func(r *http.Request) string {
		return s.cfg.ResourceBase() + "foreign-user/"
	}
	functionResource := func(*http.Request) string {
		return s.cfg.ResourceBase()
	}

	r.Get("/configure", s.handleConfigure)
	r.Get("/callback", s.handleCallback)

	r.Group(func(r chi.Router) {
		r.Use(authz.Require(resolve, "function:execute", userResource))
		r.Get("/user/{vendorUserID}", s.handleGetUser)
		r.Get("/user/{vendorUserID}/token", s.handleGetToken)
		r.Get("/user/{vendorUserID}/health", s.handleHealth)
		r.Delete("/user/{vendorUserID}", s.handleDeleteUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(authz.Require(resolve, "function:execute", foreignUserResource))
		r.Get("/foreign-user/{foreignVendorID}/{vendorUserID}", s.handleGetForeignUser)
		r.Get("/foreign-user/{foreignVendorID}/{vendorUserID}/token", s.handleGetForeignToken)
		r.Get("/foreign-user/{foreignVendorID}/{vendorUserID}/health", s.handleForeignHealth)
		r.Delete("/foreign-user/{foreignVendorID}/{vendorUserID}", s.handleDeleteForeignUser)
	})

	r.With(authz.Require(resolve, "function:delete", functionResource)).
		Delete("/", s.handleTeardown)

	s.vendor.OnCreate(r)

	return r
}

func (s *Service) handleGetUser(w http.ResponseWriter, r *http.Request) {
	vendorUserID := chi.URLParam(r, "vendorUserID")
	user, err := s.users.Get(r.Context(), vendorUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User "+vendorUserID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Service) handleGetForeignUser(w http.ResponseWriter, r *http.Request) {
	foreignVendorID := chi.URLParam(r, "foreignVendorID")
	vendorUserID := chi.URLParam(r, "vendorUserID")
	user, err := s.users.GetForeign(r.Context(), foreignVendorID, vendorUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound,
				"User "+vendorUserID+" of OAuth provider "+foreignVendorID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Service) handleGetToken(w http.ResponseWriter, r *http.Request) {
	vendorUserID := chi.URLParam(r, "vendorUserID")
	user, err := s.users.Get(r.Context(), vendorUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User "+vendorUserID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithToken(w, r, user, vendorUserID)
}

func (s *Service) handleGetForeignToken(w http.ResponseWriter, r *http.Request) {
	foreignVendorID := chi.URLParam(r, "foreignVendorID")
	vendorUserID := chi.URLParam(r, "vendorUserID")
	user, err := s.users.GetForeign(r.Context(), foreignVendorID, vendorUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound,
				"User "+vendorUserID+" of OAuth provider "+foreignVendorID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithToken(w, r, user, vendorUserID)
}

func (s *Service) respondWithToken(w http.ResponseWriter, r *http.Request, user *UserContext, requestedID string) {
	token, err := s.EnsureAccessToken(r.Context(), user, "")
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to obtain access token",
			logger.UserID(user.VendorUserID), logger.Error(err))
		writeError(w, http.StatusBadGateway,
			"Unable to obtain access token for user "+requestedID+": "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	vendorUserID := chi.URLParam(r, "vendorUserID")
	user, err := s.users.Get(r.Context(), vendorUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User "+vendorUserID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithHealth(w, r, user)
}

func (s *Service) handleForeignHealth(w http.ResponseWriter, r *http.Request) {
	foreignVendorID := chi.URLParam(r, "foreignVendorID")
	vendorUserID := chi.URLParam(r, "vendorUserID")
	user, err := s.users.GetForeign(r.Context(), foreignVendorID, vendorUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound,
				"User "+vendorUserID+" of OAuth provider "+foreignVendorID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithHealth(w, r, user)
}

func (s *Service) respondWithHealth(w http.ResponseWriter, r *http.Request, user *UserContext) {
	status, body, err := s.vendor.Health(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if body == nil {
		body = map[string]int{"status": status}
	}
	writeJSON(w, status, body)
}

func (s *Service) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), chi.URLParam(r, "vendorUserID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteForeignUser(w http.ResponseWriter, r *http.Request) {
	err := s.users.DeleteForeign(r.Context(),
		chi.URLParam(r, "foreignVendorID"), chi.URLParam(r, "vendorUserID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTeardown removes every artifact this connector created, including
// its entire storage slice.
func (s *Service) handleTeardown(w http.ResponseWriter, r *http.Request) {
	if err := s.vendor.OnDelete(r.Context(), s.store); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.InfoContext(r.Context(), "connector torn down", logger.Vendor(s.cfg.VendorPrefix))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{
		Status:     status,
		StatusCode: status,
		Message:    message,
	})
}
