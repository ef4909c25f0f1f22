package schema

import "sync"

// WidgetKind identifies the widget a field maps to. The same resolution is
// used for read and edit mode so a field never changes shape between them.
type WidgetKind string

const (
	WidgetRoleSelect     WidgetKind = "role_select"
	WidgetDurationSelect WidgetKind = "duration_select"
	WidgetModelSelect    WidgetKind = "model_select"
	WidgetToggle         WidgetKind = "toggle"
	WidgetMultiSelect    WidgetKind = "multi_select"
	WidgetSelect         WidgetKind = "select"
	WidgetPercentMap     WidgetKind = "percent_map"
	WidgetText           WidgetKind = "text"
)

var overrideMu sync.RWMutex

// overrides maps well-known keys to specialized widgets regardless of the
// declared type. Consulted before the generic type-based resolution so new
// special fields can be registered without touching the generic path.
var overrides = map[string]WidgetKind{
	"user_role":           WidgetRoleSelect,
	"budget_duration":     WidgetDurationSelect,
	"models":              WidgetModelSelect,
	"discounts":           WidgetPercentMap,
	"provider_discounts":  WidgetPercentMap,
	"model_cost_discount": WidgetPercentMap,
}

// RegisterOverride binds a key to a specialized widget.
func RegisterOverride(key string, kind WidgetKind) {
	overrideMu.Lock()
	defer overrideMu.Unlock()
	overrides[key] = kind
}

func overrideFor(key string) (WidgetKind, bool) {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	kind, ok := overrides[key]
	return kind, ok
}

// Resolve maps (key, spec) to a widget kind. Precedence:
//  1. key override registry
//  2. boolean -> toggle
//  3. array with items.enum -> closed multi-select
//  4. string with enum -> closed single-select
//  5. everything else -> free text
func Resolve(key string, spec FieldSpec) WidgetKind {
	if kind, ok := overrideFor(key); ok {
		return kind
	}
	switch {
	case spec.Type == TypeBoolean:
		return WidgetToggle
	case spec.Type == TypeArray && spec.Items != nil && len(spec.Items.Enum) > 0:
		return WidgetMultiSelect
	case spec.Type == TypeString && len(spec.Enum) > 0:
		return WidgetSelect
	default:
		return WidgetText
	}
}

// Options returns the closed choice set for a field, when it has one.
func Options(key string, spec FieldSpec) []string {
	switch Resolve(key, spec) {
	case WidgetRoleSelect:
		if len(spec.Enum) > 0 {
			return spec.Enum
		}
		return KnownRoles()
	case WidgetDurationSelect:
		if len(spec.Enum) > 0 {
			return spec.Enum
		}
		return KnownDurations()
	case WidgetModelSelect, WidgetMultiSelect:
		if spec.Items != nil {
			return spec.Items.Enum
		}
		return nil
	case WidgetSelect:
		return spec.Enum
	default:
		return nil
	}
}
