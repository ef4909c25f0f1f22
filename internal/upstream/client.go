// Package upstream is the console's client for the proxy's settings API:
// fetching {values, schema} documents, submitting full draft documents,
// and reading the display-only callback inventory.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"admin-console/internal/config"
	"admin-console/internal/logger"
	"admin-console/internal/models"
	"admin-console/internal/schema"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *cache.Cache
	ttl     time.Duration
	log     *zap.SugaredLogger
}

func New(cfg config.UpstreamConfig) *Client {
	log := logger.Sugar
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
		log:   log,
	}
}

// HasCredential reports whether a bearer credential is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// settingsDocument is the fetch payload served by every settings endpoint.
type settingsDocument struct {
	Values map[string]any         `json:"values"`
	Schema *schema.SettingsSchema `json:"schema"`
}

// Fetch reads the current {values, schema} pair for an endpoint. Recently
// fetched documents are served from cache; a save invalidates the entry.
func (c *Client) Fetch(ctx context.Context, ep Endpoint) (schema.Values, *schema.SettingsSchema, error) {
	if !c.HasCredential() {
		return nil, nil, ErrNoCredential
	}

	cacheKey := "settings:" + ep.Name
	if cached, found := c.cache.Get(cacheKey); found {
		doc := cached.(*settingsDocument)
		return schema.Values(doc.Values).Clone(), doc.Schema, nil
	}

	body, err := c.do(ctx, http.MethodGet, ep.FetchPath, nil)
	if err != nil {
		return nil, nil, err
	}

	var doc settingsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode settings document: %w", err)
	}
	if doc.Values == nil {
		doc.Values = map[string]any{}
	}

	c.cache.Set(cacheKey, &doc, c.ttl)
	c.log.Debugw("fetched settings", "panel", ep.Name, "keys", len(doc.Values))

	return schema.Values(doc.Values).Clone(), doc.Schema, nil
}

// Submit writes the full draft document and returns the canonical
// post-write values, normalized per the endpoint's declared shape. On
// failure nothing is cached and the error carries the backend's message.
func (c *Client) Submit(ctx context.Context, ep Endpoint, draft schema.Values) (schema.Values, error) {
	if !c.HasCredential() {
		return nil, ErrNoCredential
	}

	payload, err := schema.MarshalDocument(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draft: %w", err)
	}

	body, err := c.do(ctx, ep.UpdateMethod, ep.UpdatePath, payload)
	if err != nil {
		return nil, err
	}

	values, err := ep.Normalize(body)
	if err != nil {
		return nil, err
	}

	c.cache.Delete("settings:" + ep.Name)
	c.log.Infow("saved settings", "panel", ep.Name, "keys", len(values))

	return values, nil
}

// Callbacks fetches the proxy's logging callback inventory.
func (c *Client) Callbacks(ctx context.Context) (*models.CallbackList, error) {
	if !c.HasCredential() {
		return nil, ErrNoCredential
	}

	body, err := c.do(ctx, http.MethodGet, "/config/callbacks", nil)
	if err != nil {
		return nil, err
	}

	var list models.CallbackList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode callback list: %w", err)
	}
	return &list, nil
}

// Ping checks upstream reachability for the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("upstream health returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, body)
		c.log.Warnw("upstream request failed",
			"method", method, "path", path,
			"status", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}

	return body, nil
}

// PanelAPI binds the client to one endpoint so a panel controller can use
// it without knowing about endpoint descriptors.
type PanelAPI struct {
	client *Client
	ep     Endpoint
}

func (c *Client) Panel(ep Endpoint) *PanelAPI {
	return &PanelAPI{client: c, ep: ep}
}

func (p *PanelAPI) Fetch(ctx context.Context) (schema.Values, *schema.SettingsSchema, error) {
	return p.client.Fetch(ctx, p.ep)
}

func (p *PanelAPI) Submit(ctx context.Context, draft schema.Values) (schema.Values, error) {
	return p.client.Submit(ctx, p.ep, draft)
}
