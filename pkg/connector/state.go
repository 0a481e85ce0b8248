package connector

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Configuration flow stage names carried in the state blob.
const (
	stageAuthInit         = "authInit"
	stageAuthCallback     = "authCallback"
	stageSettingsManagers = "settingsManagers"
)

// skipSettingsManagersKey is a flag the installer may plant in the
// installation data to bypass configured settings managers. It is stripped
// before the data is handed back on success.
const skipSettingsManagersKey = "skip_settings_managers"

// flowState is the continuation record round-tripped as the opaque state
// query parameter across browser redirects: out to the IdP, back through
// /callback, and through each settings manager. ReturnTo and ReturnToState
// belong to the caller that initiated the flow and are echoed on completion.
type flowState struct {
	ConfigurationState    string         `json:"configurationState"`
	ReturnTo              string         `json:"returnTo,omitempty"`
	ReturnToState         string         `json:"returnToState,omitempty"`
	Data                  map[string]any `json:"data,omitempty"`
	SettingsManagersStage int            `json:"settingsManagersStage,omitempty"`
}

// encode serializes the state as URL-safe base64 JSON, so the blob can be
// appended raw into an authorization URL.
func (s *flowState) encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// decodeState parses a state query parameter. Decoding accepts both the
// URL-safe and standard base64 alphabets since external parties may
// re-encode the blob.
func decodeState(blob string) (*flowState, error) {
	raw, err := decodeBase64(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	var state flowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if state.ConfigurationState == "" {
		return nil, fmt.Errorf("%w: missing configurationState", ErrInvalidState)
	}
	return &state, nil
}

// encodeData serializes an installation data object for transport in a
// query parameter.
func encodeData(data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode installation data: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// decodeData parses a base64-JSON data query parameter. An empty parameter
// yields an empty object.
func decodeData(blob string) (map[string]any, error) {
	if blob == "" {
		return map[string]any{}, nil
	}
	raw, err := decodeBase64(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode installation data: %w", err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode installation data: %w", err)
	}
	return data, nil
}

// decodeBase64 accepts the URL-safe and standard alphabets, padded or not.
func decodeBase64(blob string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	}
	var err error
	for _, enc := range encodings {
		var raw []byte
		if raw, err = enc.DecodeString(blob); err == nil {
			return raw, nil
		}
	}
	return nil, err
}
