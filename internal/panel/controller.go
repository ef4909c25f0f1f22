// Package panel drives the read/edit/save lifecycle of one settings panel.
// Each controller owns its own values/draft pair; panels share nothing.
package panel

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"

	"admin-console/internal/models"
	"admin-console/internal/schema"
	"admin-console/internal/upstream"
)

// Fetcher is the settings endpoint a controller talks to. Submit must not
// mutate any caller state on failure.
type Fetcher interface {
	Fetch(ctx context.Context) (schema.Values, *schema.SettingsSchema, error)
	Submit(ctx context.Context, draft schema.Values) (schema.Values, error)
}

type Mode string

const (
	Viewing Mode = "viewing"
	Editing Mode = "editing"
	Saving  Mode = "saving"
)

var (
	ErrClosed       = errors.New("panel is closed")
	ErrNotLoaded    = errors.New("panel has no settings loaded")
	ErrNotViewing   = errors.New("panel is not in view mode")
	ErrNotEditing   = errors.New("panel is not in edit mode")
	ErrSaving       = errors.New("save in progress")
	ErrUnknownField = errors.New("field has no schema property and is read-only")
	ErrNotMapField  = errors.New("field is not a map value")
)

type Controller struct {
	name     string
	fetcher  Fetcher
	notifier Notifier
	onSaved  func(panel string, changedKeys []string)

	mu     sync.Mutex
	mode   Mode
	values schema.Values
	spec   *schema.SettingsSchema
	draft  schema.Values
	loaded bool
	closed bool
	// gen guards against late-arriving responses: bumped on Close, and
	// compared after every network call before state is touched.
	gen uint64
}

func NewController(name string, fetcher Fetcher, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Controller{
		name:     name,
		fetcher:  fetcher,
		notifier: notifier,
		mode:     Viewing,
	}
}

func (c *Controller) Name() string {
	return c.name
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetOnSaved registers a hook invoked after every successful save with the
// keys whose values actually changed.
func (c *Controller) SetOnSaved(fn func(panel string, changedKeys []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSaved = fn
}

// Refresh fetches the current document. The network call runs without the
// lock; a response arriving after Close is discarded. A missing credential
// is not an error worth a notification, just an unloaded panel.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.mode != Viewing {
		c.mu.Unlock()
		return ErrNotViewing
	}
	gen := c.gen
	c.mu.Unlock()

	values, spec, err := c.fetcher.Fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != gen {
		return nil
	}
	if err != nil {
		if !errors.Is(err, upstream.ErrNoCredential) {
			c.notifier.Error(c.name, "Failed to fetch settings")
		}
		return err
	}

	c.values = values
	c.spec = spec
	c.loaded = true
	return nil
}

// BeginEdit copies the current values into a fresh draft. No network call.
func (c *Controller) BeginEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.mode == Saving:
		return ErrSaving
	case c.mode == Editing:
		return nil
	case !c.loaded:
		return ErrNotLoaded
	}
	c.draft = c.values.Clone()
	c.mode = Editing
	return nil
}

// SetField writes one key in the draft. Keys without a schema property are
// read-only and rejected.
func (c *Controller) SetField(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditing(); err != nil {
		return err
	}
	if _, ok := c.spec.Property(key); !ok {
		return ErrUnknownField
	}
	c.draft[key] = value
	return nil
}

// RemoveMapEntry deletes a single entry from a map-valued field in the
// draft, leaving every other entry of that map untouched.
func (c *Controller) RemoveMapEntry(key, entry string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditing(); err != nil {
		return err
	}
	if _, ok := c.spec.Property(key); !ok {
		return ErrUnknownField
	}
	current, ok := c.draft[key].(map[string]any)
	if !ok {
		return ErrNotMapField
	}
	next := make(map[string]any, len(current))
	for k, v := range current {
		if k != entry {
			next[k] = v
		}
	}
	c.draft[key] = next
	return nil
}

// Cancel discards the draft and returns to the exact pre-edit snapshot.
// No network call.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.mode == Saving {
		return ErrSaving
	}
	c.draft = nil
	c.mode = Viewing
	return nil
}

// Save submits the whole draft document. On success the server's response
// replaces the values wholesale. On failure the draft survives so the
// operator does not lose input, and the backend message is surfaced
// verbatim.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.mode != Editing {
		c.mu.Unlock()
		return ErrNotEditing
	}
	c.mode = Saving
	snapshot := c.draft.Clone()
	previous := c.values
	gen := c.gen
	c.mu.Unlock()

	result, err := c.fetcher.Submit(ctx, snapshot)

	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.mode = Editing
		c.mu.Unlock()
		c.notifier.Error(c.name, saveErrorMessage(err))
		return err
	}

	changed := DiffKeys(previous, result)
	c.values = result
	c.draft = nil
	c.mode = Viewing
	c.loaded = true
	onSaved := c.onSaved
	c.mu.Unlock()

	c.notifier.Info(c.name, "Settings saved")
	if onSaved != nil {
		onSaved(c.name, changed)
	}
	return nil
}

// Close marks the panel gone. In-flight responses that resolve afterwards
// are discarded instead of touching freed state.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
	c.draft = nil
}

func (c *Controller) requireEditing() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.mode == Saving:
		return ErrSaving
	case c.mode != Editing:
		return ErrNotEditing
	}
	return nil
}

func saveErrorMessage(err error) string {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to save settings"
}

// State renders the panel for the wire. Read mode and edit mode resolve
// widgets through the same table, so a field never changes shape between
// the two.
func (c *Controller) State() models.PanelState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.PanelState{
		Name:   c.name,
		Mode:   string(c.mode),
		Loaded: c.loaded,
	}
	if c.spec != nil {
		st.Description = c.spec.Description
	}
	if !c.loaded {
		return st
	}

	editing := c.mode == Editing || c.mode == Saving

	for _, key := range c.fieldKeys() {
		spec, known := c.spec.Property(key)
		field := models.FieldState{
			Key:      key,
			Widget:   string(schema.Resolve(key, spec)),
			Label:    schema.FieldLabel(key),
			Editable: known,
		}
		if editing && known {
			field.Value = c.draft[key]
			field.Options = schema.Options(key, spec)
		} else {
			rendered := schema.Render(key, spec, c.values[key])
			field.Text = rendered.Text
			field.Chips = rendered.Chips
		}
		st.Fields = append(st.Fields, field)
	}
	return st
}

// fieldKeys is the union of schema properties and present value keys,
// sorted. Values with no property still show up via the generic fallback.
func (c *Controller) fieldKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	if c.spec != nil {
		for key := range c.spec.Properties {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for key := range c.values {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// DiffKeys returns the sorted keys whose values differ between two
// documents, including keys present in only one of them.
func DiffKeys(before, after schema.Values) []string {
	seen := make(map[string]bool)
	var changed []string
	for key, val := range after {
		seen[key] = true
		if old, ok := before[key]; !ok || !reflect.DeepEqual(old, val) {
			changed = append(changed, key)
		}
	}
	for key := range before {
		if !seen[key] {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}
