// Package schema implements the schema-driven settings model: the field
// specs served by the proxy backend, the widget resolution table shared by
// read and edit mode, and the read-mode value projection.
package schema

import "encoding/json"

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeNumber  FieldType = "number"
	TypeObject  FieldType = "object"
)

// FieldSpec describes a single editable property, following the
// JSON-Schema-like shape the backend serves. Enum implies a closed choice
// set; Items.Enum implies a closed multi-select.
type FieldSpec struct {
	Type        FieldType  `json:"type"`
	Description string     `json:"description,omitempty"`
	Enum        []string   `json:"enum,omitempty"`
	Items       *ItemsSpec `json:"items,omitempty"`
}

type ItemsSpec struct {
	Enum []string `json:"enum,omitempty"`
}

// SettingsSchema is the property map for one settings document. Values
// present without a matching property are rendered through the generic
// read-only fallback, never edited.
type SettingsSchema struct {
	Description string               `json:"description,omitempty"`
	Properties  map[string]FieldSpec `json:"properties"`
}

// Property returns the spec for a key and whether one exists.
func (s *SettingsSchema) Property(key string) (FieldSpec, bool) {
	if s == nil {
		return FieldSpec{}, false
	}
	spec, ok := s.Properties[key]
	return spec, ok
}

// Values holds the current document, keyed by property name. Decoded from
// JSON, so nested values are map[string]any / []any / scalars.
type Values map[string]any

// Clone returns a deep copy. Drafts are always clones so that editing
// never aliases the last-known-good document.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	case []string:
		s := make([]string, len(t))
		copy(s, t)
		return s
	default:
		return v
	}
}

// Keys returns the value keys in unspecified order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	return keys
}

// MarshalDocument encodes a values map the way it is submitted upstream.
func MarshalDocument(v Values) ([]byte, error) {
	return json.Marshal(map[string]any(v))
}
