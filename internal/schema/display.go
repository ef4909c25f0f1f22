package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// NotSetLabel is shown for null/absent values in read mode.
const NotSetLabel = "Not set"

// Rendered is the read-mode projection of a field value. Array widgets
// populate Chips; everything else formats into Text.
type Rendered struct {
	Widget WidgetKind `json:"widget"`
	Text   string     `json:"text,omitempty"`
	Chips  []string   `json:"chips,omitempty"`
}

// Render projects a value for read mode. It branches on the exact widget
// resolution used in edit mode, which is what keeps the two modes in sync.
func Render(key string, spec FieldSpec, value any) Rendered {
	kind := Resolve(key, spec)
	out := Rendered{Widget: kind}

	if value == nil {
		out.Text = NotSetLabel
		return out
	}

	switch kind {
	case WidgetToggle:
		if cast.ToBool(value) {
			out.Text = "Enabled"
		} else {
			out.Text = "Disabled"
		}
	case WidgetDurationSelect:
		out.Text = DurationLabel(cast.ToString(value))
	case WidgetRoleSelect:
		out.Text = RoleLabel(cast.ToString(value))
	case WidgetModelSelect, WidgetMultiSelect:
		out.Chips = toChips(value)
	case WidgetPercentMap:
		out.Chips = percentChips(value)
	default:
		out.Text = formatScalar(value)
	}
	return out
}

func toChips(value any) []string {
	if items, err := cast.ToStringSliceE(value); err == nil {
		return items
	}
	// Mixed-type arrays: format each element individually.
	if items, ok := value.([]any); ok {
		chips := make([]string, len(items))
		for i, item := range items {
			chips[i] = formatScalar(item)
		}
		return chips
	}
	return []string{formatScalar(value)}
}

// percentChips formats a per-provider discount map as "provider: 5.0%"
// chips, sorted by provider. Non-numeric entries fall back to the generic
// scalar formatting.
func percentChips(value any) []string {
	entries, ok := value.(map[string]any)
	if !ok {
		return []string{formatScalar(value)}
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chips := make([]string, 0, len(keys))
	for _, k := range keys {
		if fraction, err := cast.ToFloat64E(entries[k]); err == nil {
			chips = append(chips, k+": "+FormatPercent(fraction))
		} else {
			chips = append(chips, k+": "+formatScalar(entries[k]))
		}
	}
	return chips
}

func formatScalar(value any) string {
	switch value.(type) {
	case map[string]any, []any:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(data)
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	return fmt.Sprintf("%v", value)
}

var durationLabels = map[string]string{
	"hourly":  "Hourly",
	"daily":   "Daily",
	"weekly":  "Weekly",
	"monthly": "Monthly",
	"yearly":  "Yearly",
}

// KnownDurations lists the budget reset periods the proxy understands.
func KnownDurations() []string {
	return []string{"daily", "weekly", "monthly", "yearly"}
}

// DurationLabel maps a budget_duration token to its display label.
func DurationLabel(token string) string {
	if token == "" {
		return NotSetLabel
	}
	if label, ok := durationLabels[token]; ok {
		return label
	}
	return titleWords(token)
}

var roleLabels = map[string]string{
	"proxy_admin":          "Proxy Admin",
	"proxy_admin_viewer":   "Proxy Admin Viewer",
	"internal_user":        "Internal User",
	"internal_user_viewer": "Internal User Viewer",
}

// KnownRoles lists the user roles the proxy assigns.
func KnownRoles() []string {
	return []string{"proxy_admin", "proxy_admin_viewer", "internal_user", "internal_user_viewer"}
}

// RoleLabel maps a user_role token to its display label.
func RoleLabel(token string) string {
	if token == "" {
		return NotSetLabel
	}
	if label, ok := roleLabels[token]; ok {
		return label
	}
	return titleWords(token)
}

// FormatPercent renders a discount fraction for display: 0.05 -> "5.0%".
func FormatPercent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

// FieldLabel humanizes a property key for display: "max_budget" -> "Max Budget".
func FieldLabel(key string) string {
	if key == "" {
		return ""
	}
	return titleWords(key)
}

func titleWords(token string) string {
	words := strings.FieldsFunc(token, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
