package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"admin-console/internal/config"
	"admin-console/internal/schema"
)

// Normalizer maps a raw update response body to the canonical values map.
// The proxy's endpoints do not agree on a single shape, so every endpoint
// declares its own adapter instead of guessing.
type Normalizer func([]byte) (schema.Values, error)

// NormalizeBare decodes an update response that is the values map itself.
func NormalizeBare(body []byte) (schema.Values, error) {
	var values map[string]any
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("failed to decode update response: %w", err)
	}
	return schema.Values(values), nil
}

// NormalizeSettingsEnvelope decodes an update response wrapped as
// {"settings": values}.
func NormalizeSettingsEnvelope(body []byte) (schema.Values, error) {
	var envelope struct {
		Settings map[string]any `json:"settings"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode update response: %w", err)
	}
	if envelope.Settings == nil {
		return nil, fmt.Errorf("update response missing settings envelope")
	}
	return schema.Values(envelope.Settings), nil
}

// Endpoint describes one settings document on the proxy.
type Endpoint struct {
	Name         string
	FetchPath    string
	UpdatePath   string
	UpdateMethod string
	Normalize    Normalizer
}

// EndpointFromConfig builds an Endpoint from its config declaration.
func EndpointFromConfig(name string, pc config.PanelConfig) Endpoint {
	ep := Endpoint{
		Name:         name,
		FetchPath:    pc.FetchPath,
		UpdatePath:   pc.UpdatePath,
		UpdateMethod: pc.UpdateMethod,
	}
	if ep.UpdateMethod == "" {
		ep.UpdateMethod = http.MethodPatch
	}
	switch pc.ResponseShape {
	case "settings":
		ep.Normalize = NormalizeSettingsEnvelope
	default:
		ep.Normalize = NormalizeBare
	}
	return ep
}
