package models

import (
	"time"
)

// SettingsChange records one successful save: which panel, who saved, and
// which keys actually changed.
type SettingsChange struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Panel       string    `gorm:"type:varchar(100);index" json:"panel"`
	Actor       string    `gorm:"type:varchar(255)" json:"actor"`
	ChangedKeys string    `gorm:"type:text" json:"changed_keys"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// CallbackConfig is the display-only projection of a logging/alerting
// integration held by the proxy. The console renders it; it never owns or
// mutates it.
type CallbackConfig struct {
	Name string            `json:"callback_name"`
	Type string            `json:"callback_type"` // success, failure, success_and_failure
	Vars map[string]string `json:"callback_vars"`
}

// CallbackList is the proxy's callback inventory, active and disabled.
type CallbackList struct {
	Callbacks []CallbackConfig `json:"callbacks"`
	Disabled  []string         `json:"disabled_callbacks"`
}

// FieldState is the wire representation of one field in a panel, in either
// mode. Read mode carries the formatted projection; edit mode additionally
// carries the raw draft value and the choice set.
type FieldState struct {
	Key      string   `json:"key"`
	Widget   string   `json:"widget"`
	Label    string   `json:"label,omitempty"`
	Text     string   `json:"text,omitempty"`
	Chips    []string `json:"chips,omitempty"`
	Value    any      `json:"value,omitempty"`
	Options  []string `json:"options,omitempty"`
	Editable bool     `json:"editable"`
}

// PanelState is the wire representation of a whole panel.
type PanelState struct {
	Name        string       `json:"name"`
	Mode        string       `json:"mode"`
	Description string       `json:"description,omitempty"`
	Loaded      bool         `json:"loaded"`
	Placeholder string       `json:"placeholder,omitempty"`
	Fields      []FieldState `json:"fields"`
}
