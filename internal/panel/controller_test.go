package panel

import (
	"context"
	"sync"
	"testing"

	"admin-console/internal/schema"
	"admin-console/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu        sync.Mutex
	values    schema.Values
	spec      *schema.SettingsSchema
	fetchErr  error
	submitErr error
	submitted []schema.Values
	release   chan struct{}
	entered   chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context) (schema.Values, *schema.SettingsSchema, error) {
	if f.fetchErr != nil {
		return nil, nil, f.fetchErr
	}
	return f.values.Clone(), f.spec, nil
}

func (f *fakeFetcher) Submit(ctx context.Context, draft schema.Values) (schema.Values, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, draft.Clone())
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return draft.Clone(), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *recordingNotifier) Info(panel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

func (n *recordingNotifier) Error(panel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func ssoFetcher() *fakeFetcher {
	return &fakeFetcher{
		values: schema.Values{
			"max_budget":      float64(1000),
			"budget_duration": "monthly",
			"user_role":       "internal_user",
		},
		spec: &schema.SettingsSchema{
			Description: "Default settings applied to SSO users",
			Properties: map[string]schema.FieldSpec{
				"max_budget":      {Type: schema.TypeNumber},
				"budget_duration": {Type: schema.TypeString},
				"user_role":       {Type: schema.TypeString},
			},
		},
	}
}

func TestRefreshLoadsValues(t *testing.T) {
	c := NewController("sso", ssoFetcher(), nil)
	require.NoError(t, c.Refresh(context.Background()))

	st := c.State()
	assert.True(t, st.Loaded)
	assert.Equal(t, "viewing", st.Mode)
	assert.Equal(t, "Default settings applied to SSO users", st.Description)
	require.Len(t, st.Fields, 3)
}

func TestRefreshNoCredential(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewController("sso", &fakeFetcher{fetchErr: upstream.ErrNoCredential}, notifier)

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, upstream.ErrNoCredential)

	// Missing credential is an unloaded panel, not an error banner.
	assert.Empty(t, notifier.errors)
	assert.False(t, c.State().Loaded)
}

func TestBeginEditRequiresLoad(t *testing.T) {
	c := NewController("sso", ssoFetcher(), nil)
	assert.ErrorIs(t, c.BeginEdit(), ErrNotLoaded)
}

func TestSetFieldUnknownKey(t *testing.T) {
	c := NewController("sso", ssoFetcher(), nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())

	assert.ErrorIs(t, c.SetField("not_a_field", "x"), ErrUnknownField)
}

func TestCancelRestoresSnapshot(t *testing.T) {
	c := NewController("sso", ssoFetcher(), nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetField("max_budget", float64(9999)))
	require.NoError(t, c.Cancel())

	st := c.State()
	assert.Equal(t, "viewing", st.Mode)
	for _, f := range st.Fields {
		if f.Key == "max_budget" {
			assert.Equal(t, "1000", f.Text)
		}
	}
}

func TestSaveSubmitsWholeDocument(t *testing.T) {
	fetcher := ssoFetcher()
	c := NewController("sso", fetcher, nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetField("max_budget", "2000"))
	require.NoError(t, c.Save(context.Background()))

	require.Len(t, fetcher.submitted, 1)
	doc := fetcher.submitted[0]
	// The edited value passes through as entered, not coerced.
	assert.Equal(t, "2000", doc["max_budget"])
	// Unchanged keys ride along in the submitted document.
	assert.Equal(t, "monthly", doc["budget_duration"])
	assert.Equal(t, "internal_user", doc["user_role"])

	assert.Equal(t, Viewing, c.Mode())
}

func TestSaveFailureKeepsDraft(t *testing.T) {
	fetcher := ssoFetcher()
	fetcher.submitErr = &upstream.APIError{StatusCode: 400, Message: "Discount must be between 0 and 1"}
	notifier := &recordingNotifier{}

	c := NewController("sso", fetcher, notifier)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetField("max_budget", float64(2000)))

	err := c.Save(context.Background())
	require.Error(t, err)

	// Backend message is surfaced verbatim, and the draft survives.
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Discount must be between 0 and 1", notifier.errors[0])
	assert.Equal(t, Editing, c.Mode())

	st := c.State()
	for _, f := range st.Fields {
		if f.Key == "max_budget" {
			assert.Equal(t, float64(2000), f.Value)
		}
	}
}

func TestSaveNotifiesAndRecordsChangedKeys(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewController("sso", ssoFetcher(), notifier)

	var gotPanel string
	var gotKeys []string
	c.SetOnSaved(func(panel string, keys []string) {
		gotPanel = panel
		gotKeys = keys
	})

	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetField("max_budget", float64(2000)))
	require.NoError(t, c.Save(context.Background()))

	assert.Equal(t, []string{"Settings saved"}, notifier.infos)
	assert.Equal(t, "sso", gotPanel)
	assert.Equal(t, []string{"max_budget"}, gotKeys)
}

func TestRemoveMapEntry(t *testing.T) {
	fetcher := &fakeFetcher{
		values: schema.Values{
			"provider_discounts": map[string]any{
				"openai":    0.05,
				"anthropic": 0.1,
			},
		},
		spec: &schema.SettingsSchema{
			Properties: map[string]schema.FieldSpec{
				"provider_discounts": {Type: schema.TypeObject},
			},
		},
	}

	c := NewController("discounts", fetcher, nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.RemoveMapEntry("provider_discounts", "openai"))
	require.NoError(t, c.Save(context.Background()))

	doc := fetcher.submitted[0]
	discounts := doc["provider_discounts"].(map[string]any)
	assert.NotContains(t, discounts, "openai")
	assert.Equal(t, 0.1, discounts["anthropic"])
}

func TestStateRendersDiscountPercents(t *testing.T) {
	fetcher := &fakeFetcher{
		values: schema.Values{
			"provider_discounts": map[string]any{"openai": 0.05},
		},
		spec: &schema.SettingsSchema{
			Properties: map[string]schema.FieldSpec{
				"provider_discounts": {Type: schema.TypeObject},
			},
		},
	}

	c := NewController("discounts", fetcher, nil)
	require.NoError(t, c.Refresh(context.Background()))

	st := c.State()
	require.Len(t, st.Fields, 1)
	f := st.Fields[0]
	assert.Equal(t, "percent_map", f.Widget)
	assert.Equal(t, []string{"openai: 5.0%"}, f.Chips)
	assert.Empty(t, f.Text)
}

func TestRemoveMapEntryNonMap(t *testing.T) {
	c := NewController("sso", ssoFetcher(), nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())

	assert.ErrorIs(t, c.RemoveMapEntry("budget_duration", "x"), ErrNotMapField)
}

func TestLateResponseDiscardedAfterClose(t *testing.T) {
	fetcher := ssoFetcher()
	fetcher.release = make(chan struct{})
	fetcher.entered = make(chan struct{})
	notifier := &recordingNotifier{}

	c := NewController("sso", fetcher, notifier)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetField("max_budget", float64(2000)))

	done := make(chan error, 1)
	go func() {
		done <- c.Save(context.Background())
	}()

	<-fetcher.entered
	c.Close()
	close(fetcher.release)
	require.NoError(t, <-done)

	// The response resolved after Close; nothing was notified or applied.
	assert.Empty(t, notifier.infos)
	assert.ErrorIs(t, c.BeginEdit(), ErrClosed)
}

func TestStateEditModeCarriesOptions(t *testing.T) {
	c := NewController("sso", ssoFetcher(), nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.BeginEdit())

	st := c.State()
	assert.Equal(t, "editing", st.Mode)
	for _, f := range st.Fields {
		switch f.Key {
		case "user_role":
			assert.Equal(t, "role_select", f.Widget)
			assert.Equal(t, schema.KnownRoles(), f.Options)
		case "budget_duration":
			assert.Equal(t, "duration_select", f.Widget)
			assert.Equal(t, schema.KnownDurations(), f.Options)
		}
	}
}

func TestStateUnknownValueKeyReadOnly(t *testing.T) {
	fetcher := ssoFetcher()
	fetcher.values["legacy_flag"] = true

	c := NewController("sso", fetcher, nil)
	require.NoError(t, c.Refresh(context.Background()))

	st := c.State()
	var found bool
	for _, f := range st.Fields {
		if f.Key == "legacy_flag" {
			found = true
			assert.False(t, f.Editable)
		}
	}
	assert.True(t, found)
}

func TestDiffKeys(t *testing.T) {
	before := schema.Values{"a": 1, "b": "x", "c": []any{"1"}}
	after := schema.Values{"a": 1, "b": "y", "d": true}

	assert.Equal(t, []string{"b", "c", "d"}, DiffKeys(before, after))
	assert.Empty(t, DiffKeys(before, before.Clone()))
}
