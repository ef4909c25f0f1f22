package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"admin-console/internal/audit"
	"admin-console/internal/models"
	"admin-console/internal/notify"
	"admin-console/internal/panel"
	"admin-console/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/spf13/cast"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// noPermissionPlaceholder is shown instead of an error when no upstream
// credential is configured. fetchFailedPlaceholder covers the case where a
// credential exists but the fetch itself failed.
const (
	noPermissionPlaceholder = "No settings available - access credential not configured"
	fetchFailedPlaceholder  = "Settings temporarily unavailable - could not reach the proxy"
)

// ConsoleHandler exposes the settings panels over the console JSON API.
type ConsoleHandler struct {
	registry *panel.Registry
	client   *upstream.Client
	hub      *notify.Hub
	audit    *audit.Recorder
}

func NewConsoleHandler(registry *panel.Registry, client *upstream.Client, hub *notify.Hub, recorder *audit.Recorder) *ConsoleHandler {
	if hub != nil {
		hub.SetOnChange(SetWSClients)
	}
	return &ConsoleHandler{
		registry: registry,
		client:   client,
		hub:      hub,
		audit:    recorder,
	}
}

func (h *ConsoleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/panels", h.ListPanels)
		r.Route("/panels/{panel}", func(r chi.Router) {
			r.Get("/", h.GetPanel)
			r.Post("/refresh", h.RefreshPanel)
			r.Post("/edit", h.BeginEdit)
			r.Put("/fields/{key}", h.SetField)
			r.Delete("/fields/{key}/entries/{entry}", h.RemoveMapEntry)
			r.Post("/cancel", h.CancelEdit)
			r.Post("/save", h.SavePanel)
		})
		r.Get("/callbacks", h.ListCallbacks)
		r.Get("/changes", h.ListChanges)
	})
}

// RegisterWS wires the notification WebSocket. Kept off the /api JSON
// tree because the upgrade handshake bypasses render.
func (h *ConsoleHandler) RegisterWS(r chi.Router) {
	r.Get("/ws", h.HandleWS)
}

type errResponse struct {
	Error string `json:"error"`
}

type panelListResponse struct {
	Panels []string `json:"panels"`
}

type setFieldRequest struct {
	Value any `json:"value"`
}

func (h *ConsoleHandler) ListPanels(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, panelListResponse{Panels: h.registry.Names()})
}

func (h *ConsoleHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupPanel(w, r)
	if !ok {
		return
	}

	// First view of a panel fetches on demand; an empty credential is a
	// placeholder, not an error.
	state := c.State()
	var fetchErr error
	if !state.Loaded && state.Mode == string(panel.Viewing) {
		start := time.Now()
		fetchErr = c.Refresh(r.Context())
		switch {
		case fetchErr == nil:
			RecordFetch(c.Name(), "success", time.Since(start).Seconds())
		case errors.Is(fetchErr, upstream.ErrNoCredential):
			// no request was attempted; nothing to record
		default:
			RecordFetch(c.Name(), "error", time.Since(start).Seconds())
		}
		state = c.State()
	}
	if !state.Loaded {
		if fetchErr != nil && !errors.Is(fetchErr, upstream.ErrNoCredential) {
			state.Placeholder = fetchFailedPlaceholder
		} else {
			state.Placeholder = noPermissionPlaceholder
		}
	}

	render.JSON(w, r, state)
}

func (h *ConsoleHandler) RefreshPanel(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupPanel(w, r)
	if !ok {
		return
	}

	start := time.Now()
	err := c.Refresh(r.Context())
	if err != nil && !errors.Is(err, upstream.ErrNoCredential) {
		RecordFetch(c.Name(), "error", time.Since(start).Seconds())
		h.renderPanelError(w, r, err)
		return
	}
	if err == nil {
		RecordFetch(c.Name(), "success", time.Since(start).Seconds())
	}

	state := c.State()
	if !state.Loaded {
		state.Placeholder = noPermissionPlaceholder
	}
	render.JSON(w, r, state)
}

func (h *ConsoleHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupPanel(w, r)
	if !ok {
		return
	}
	if err := c.BeginEdit(); err != nil {
		h.renderPanelError(w, r, err)
		return
	}
	render.JSON(w, r, c.State())
}

func (h *ConsoleHandler) SetField(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupPanel(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: "invalid request body"})
		return
	}

	if err := c.SetField(key, req.Value); err != nil {
		h.renderPanelError(w, r, err)
		return
	}
	render.JSON(w, r, c.State())
}

func (h *ConsoleHandler) RemoveMapEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupPanel(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	entry := chi.URLParam(r, "entry")

	if err := c.RemoveMapEntry(key, entry); err != nil {
		h.renderPanelError(w, r, err)
		return
	}
	render.JSON(w, r, c.State())
}

func (h *ConsoleHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupPanel(w, r)
	if !ok {
		return
	}
	if err := c.Cancel(); err != nil {
		h.renderPanelError(w, r, err)
		return
	}
	render.JSON(w, r, c.State())
}

func (h *ConsoleHandler) SavePanel(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupPanel(w, r)
	if !ok {
		return
	}

	start := time.Now()
	if err := c.Save(r.Context()); err != nil {
		RecordSave(c.Name(), "error", time.Since(start).Seconds())
		h.renderPanelError(w, r, err)
		return
	}
	RecordSave(c.Name(), "success", time.Since(start).Seconds())

	render.JSON(w, r, c.State())
}

func (h *ConsoleHandler) ListCallbacks(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.Callbacks(r.Context())
	if err != nil {
		if errors.Is(err, upstream.ErrNoCredential) {
			render.JSON(w, r, models.CallbackList{Callbacks: []models.CallbackConfig{}, Disabled: []string{}})
			return
		}
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errResponse{Error: err.Error()})
		return
	}
	render.JSON(w, r, list)
}

func (h *ConsoleHandler) ListChanges(w http.ResponseWriter, r *http.Request) {
	limit := cast.ToInt(r.URL.Query().Get("limit"))

	var (
		changes []models.SettingsChange
		err     error
	)
	if name := r.URL.Query().Get("panel"); name != "" {
		changes, err = h.audit.RecentForPanel(name, limit)
	} else {
		changes, err = h.audit.Recent(limit)
	}
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errResponse{Error: "failed to load change log"})
		return
	}
	if changes == nil {
		changes = []models.SettingsChange{}
	}
	render.JSON(w, r, changes)
}

// HandleWS upgrades the connection and registers it on the notice hub.
func (h *ConsoleHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	h.hub.Register(conn)
}

func (h *ConsoleHandler) lookupPanel(w http.ResponseWriter, r *http.Request) (*panel.Controller, bool) {
	name := chi.URLParam(r, "panel")
	c, ok := h.registry.Get(name)
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errResponse{Error: "unknown panel: " + name})
		return nil, false
	}
	return c, true
}

// renderPanelError maps controller and upstream errors onto HTTP codes.
// API errors keep the backend's status and verbatim message.
func (h *ConsoleHandler) renderPanelError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *upstream.APIError
	switch {
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		render.Status(r, status)
		render.JSON(w, r, errResponse{Error: apiErr.Error()})
	case errors.Is(err, panel.ErrUnknownField), errors.Is(err, panel.ErrNotMapField):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: err.Error()})
	case errors.Is(err, panel.ErrNotEditing), errors.Is(err, panel.ErrNotViewing),
		errors.Is(err, panel.ErrSaving), errors.Is(err, panel.ErrNotLoaded),
		errors.Is(err, panel.ErrClosed):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, errResponse{Error: err.Error()})
	default:
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errResponse{Error: err.Error()})
	}
}
