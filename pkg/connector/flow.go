package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/dmitrymomot/oauthkit/pkg/logger"
)

// foreignUserIDKey matches installation data keys declaring a foreign OAuth
// identity, capturing the foreign vendor prefix.
var foreignUserIDKey = regexp.MustCompile(`^(.+)_oauth_user_id$`)

// handleConfigure enters the configuration flow. A state parameter that
// decodes to a continuation blob resumes the suspended stage (settings
// managers redirect back here); anything else starts a fresh flow, treating
// the caller's returnTo and state as values to echo on completion.
func (s *Service) handleConfigure(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if blob := q.Get("state"); blob != "" {
		if st, err := decodeState(blob); err == nil {
			data, err := decodeData(q.Get("data"))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.dispatch(w, r, st, data)
			return
		}
	}

	returnTo := q.Get("returnTo")
	if returnTo != "" && !s.returnToAllowed(returnTo) {
		writeError(w, http.StatusForbidden,
			fmt.Sprintf("The returnTo URL %q is not allowed", returnTo))
		return
	}
	data, err := decodeData(q.Get("data"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := &flowState{
		ConfigurationState: stageAuthInit,
		ReturnTo:           returnTo,
		ReturnToState:      q.Get("state"),
	}
	s.authInit(w, r, st, data)
}

// handleCallback resumes the flow after the IdP redirect.
func (s *Service) handleCallback(w http.ResponseWriter, r *http.Request) {
	st, err := decodeState(r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatch(w, r, st, st.Data)
}

func (s *Service) dispatch(w http.ResponseWriter, r *http.Request, st *flowState, data map[string]any) {
	switch st.ConfigurationState {
	case stageAuthInit:
		s.authInit(w, r, st, data)
	case stageAuthCallback:
		s.authCallback(w, r, st)
	case stageSettingsManagers:
		s.settingsManagers(w, r, st, data)
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown configuration state %q", st.ConfigurationState))
	}
}

// authInit computes the authorization URL with the continuation blob as the
// OAuth state parameter, then either serves the vendor's authorization page
// or redirects straight to the IdP.
func (s *Service) authInit(w http.ResponseWriter, r *http.Request, st *flowState, data map[string]any) {
	st.ConfigurationState = stageAuthCallback
	st.Data = data

	blob, err := st.encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	authorizationURL := s.idp.AuthorizationURL(blob, s.callbackURL())

	html, err := s.vendor.AuthorizationPageHTML(AuthorizationPage{
		VendorName:       s.cfg.VendorName,
		AuthorizationURL: authorizationURL,
		ReturnTo:         st.ReturnTo,
		ReturnToState:    st.ReturnToState,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if html == "" {
		http.Redirect(w, r, authorizationURL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// authCallback exchanges the authorization code, builds and persists a
// fresh user record, then chains into the settings-managers stage with the
// connector's own identity appended to the installation data.
func (s *Service) authCallback(w http.ResponseWriter, r *http.Request, st *flowState) {
	ctx := r.Context()
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		reason := q.Get("error_description")
		if reason == "" {
			reason = q.Get("error")
		}
		if reason == "" {
			reason = "Unknown error"
		}
		s.completeWithError(w, r, st, "Authentication failed: "+reason)
		return
	}

	user, err := s.establishUser(ctx, code, st.Data)
	if err != nil {
		s.completeWithError(w, r, st,
			"Error exchanging the authorization code for an access token: "+err.Error())
		return
	}

	data := make(map[string]any, len(st.Data)+2)
	for k, v := range st.Data {
		data[k] = v
	}
	data[s.cfg.VendorPrefix+"_oauth_user_id"] = user.VendorUserID
	data[s.cfg.VendorPrefix+"_oauth_connector_base_url"] = s.cfg.BaseURL

	st.ConfigurationState = stageSettingsManagers
	s.settingsManagers(w, r, st, data)
}

// establishUser turns a fresh token into a persisted user record. When
// persistence already happened, a later failure rolls it back so no
// partial installation remains.
func (s *Service) establishUser(ctx context.Context, code string, data map[string]any) (*UserContext, error) {
	token, err := s.idp.ExchangeCode(ctx, code, s.callbackURL())
	if err != nil {
		return nil, err
	}

	user := &UserContext{
		Status:      StatusAuthenticated,
		VendorToken: token,
		Timestamp:   s.now().UnixMilli(),
	}
	if user.VendorUserProfile, err = s.vendor.Profile(ctx, token); err != nil {
		return nil, err
	}
	if user.VendorUserID, err = s.vendor.UserID(user); err != nil {
		return nil, err
	}

	s.bindForeignIdentities(user, data)
	if err := s.vendor.OnConfigurationComplete(ctx, user, data); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, user); err != nil {
		s.rollbackUser(ctx, user.VendorUserID)
		return nil, err
	}

	s.log.InfoContext(ctx, "user authenticated",
		logger.UserID(user.VendorUserID), logger.Vendor(s.cfg.VendorPrefix))
	return user, nil
}

// bindForeignIdentities scans installation data for {prefix}_oauth_user_id
// keys with a companion {prefix}_oauth_connector_base_url and records each
// pair as a foreign identity. The connector's own prefix is skipped. The
// scan is deterministic over the data, so repeating it is harmless.
func (s *Service) bindForeignIdentities(user *UserContext, data map[string]any) {
	for key, value := range data {
		m := foreignUserIDKey.FindStringSubmatch(key)
		if m == nil || m[1] == s.cfg.VendorPrefix {
			continue
		}
		userID, ok := value.(string)
		if !ok || userID == "" {
			continue
		}
		baseURL, ok := data[m[1]+"_oauth_connector_base_url"].(string)
		if !ok || baseURL == "" {
			continue
		}
		if user.ForeignIdentities == nil {
			user.ForeignIdentities = map[string]ForeignIdentity{}
		}
		user.ForeignIdentities[m[1]] = ForeignIdentity{
			UserID:           userID,
			ConnectorBaseURL: baseURL,
		}
	}
}

// settingsManagers walks the configured settings-manager URLs stage by
// stage, suspending into a redirect after each one. Once exhausted (or
// skipped) it post-processes the user and completes the flow.
func (s *Service) settingsManagers(w http.ResponseWriter, r *http.Request, st *flowState, data map[string]any) {
	if !truthy(data[skipSettingsManagersKey]) {
		managers := s.settingsManagerURLs()
		if st.SettingsManagersStage < len(managers) {
			manager := managers[st.SettingsManagersStage]
			st.SettingsManagersStage++
			s.redirectToManager(w, r, manager, st, data)
			return
		}
	}

	ctx := r.Context()
	vendorUserID, _ := data[s.cfg.VendorPrefix+"_oauth_user_id"].(string)

	if err := s.finalizeUser(ctx, vendorUserID, data); err != nil {
		s.rollbackUser(ctx, vendorUserID)
		s.completeWithError(w, r, st, "Error initializing new user: "+err.Error())
		return
	}

	delete(data, skipSettingsManagersKey)
	s.completeWithSuccess(w, r, st, data)
}

func (s *Service) finalizeUser(ctx context.Context, vendorUserID string, data map[string]any) error {
	user, err := s.users.Get(ctx, vendorUserID)
	if err != nil {
		return fmt.Errorf("unable to load user %s: %w", vendorUserID, err)
	}
	if err := s.vendor.OnConfigurationComplete(ctx, user, data); err != nil {
		return err
	}
	if err := s.vendor.OnNewUser(ctx, user); err != nil {
		return err
	}
	return s.users.Save(ctx, user)
}

func (s *Service) rollbackUser(ctx context.Context, vendorUserID string) {
	if vendorUserID == "" {
		return
	}
	if err := s.users.Delete(ctx, vendorUserID); err != nil {
		s.log.ErrorContext(ctx, "failed to roll back user after configuration error",
			logger.UserID(vendorUserID), logger.Error(err))
	}
}

func (s *Service) settingsManagerURLs() []string {
	managers := make([]string, 0, len(s.cfg.SettingsManagers))
	for _, m := range s.cfg.SettingsManagers {
		if m = strings.TrimSpace(m); m != "" {
			managers = append(managers, m)
		}
	}
	return managers
}

// redirectToManager suspends the flow into an external settings manager.
// The manager is expected to redirect the browser back to the returnTo URL
// with the state and data parameters intact.
func (s *Service) redirectToManager(w http.ResponseWriter, r *http.Request, manager string, st *flowState, data map[string]any) {
	blob, err := st.encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dataBlob, err := encodeData(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sep := "?"
	if strings.Contains(manager, "?") {
		sep = "&"
	}
	location := manager + sep +
		"returnTo=" + url.QueryEscape(s.cfg.BaseURL+"/configure") +
		"&state=" + blob +
		"&data=" + dataBlob
	http.Redirect(w, r, location, http.StatusFound)
}

// completeWithSuccess redirects back to the initiating caller with the
// accumulated installation data. Without a returnTo the data is returned
// directly.
func (s *Service) completeWithSuccess(w http.ResponseWriter, r *http.Request, st *flowState, data map[string]any) {
	dataBlob, err := encodeData(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st.ReturnTo == "" {
		writeJSON(w, http.StatusOK, data)
		return
	}
	http.Redirect(w, r, st.ReturnTo+"?status=success"+returnStateParam(st)+"&data="+dataBlob, http.StatusFound)
}

// completeWithError surfaces a terminal flow failure through the completion
// redirect, or as a plain 500 when no caller is waiting.
func (s *Service) completeWithError(w http.ResponseWriter, r *http.Request, st *flowState, message string) {
	if st.ReturnTo == "" {
		writeError(w, http.StatusInternalServerError, message)
		return
	}
	dataBlob, err := encodeData(map[string]any{"status": 500, "message": message})
	if err != nil {
		writeError(w, http.StatusInternalServerError, message)
		return
	}
	http.Redirect(w, r, st.ReturnTo+"?status=error"+returnStateParam(st)+"&data="+dataBlob, http.StatusFound)
}

func returnStateParam(st *flowState) string {
	if st.ReturnToState == "" {
		return ""
	}
	return "&state=" + url.QueryEscape(st.ReturnToState)
}

func (s *Service) returnToAllowed(returnTo string) bool {
	for _, allowed := range s.cfg.AllowedReturnTo {
		allowed = strings.TrimSpace(allowed)
		switch {
		case allowed == "*":
			return true
		case strings.HasSuffix(allowed, "*"):
			if strings.HasPrefix(returnTo, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		case allowed == returnTo:
			return true
		}
	}
	return false
}

// truthy mirrors how loosely-typed installation data flags are read: any
// value other than absent, false, zero, or an empty string counts as set.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case float64:
		return t != 0
	default:
		return true
	}
}
