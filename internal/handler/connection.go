package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/veridata/consent-server-go/internal/audit"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/httputil"
	"github.com/veridata/consent-server-go/internal/middleware"
	"github.com/veridata/consent-server-go/internal/service"
)

// ConnectionHandler serves the connection dashboard API. All routes sit
// behind the session middleware.
type ConnectionHandler struct {
	connections *service.ConnectionService
}

func NewConnectionHandler(connections *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// List handles GET /api/connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	connections, err := h.connections.List(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"connections": connections})
}

// Connect handles POST /api/connections. Manual registration for providers
// without a linked OAuth flow (Wallet, Email, dashboard-only sources).
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Provider string `json:"provider"`
		Status   string `json:"status"`
		DataType string `json:"dataType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	connection, err := h.connections.Connect(r.Context(), user.ID, req.Provider, req.Status, req.DataType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventProviderLinked,
		UserID:   user.ID,
		Provider: req.Provider,
	})
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"connection": connection})
}

// Activity handles GET /api/activity
func (h *ConnectionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	entries, err := h.connections.ListActivity(r.Context(), user.ID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// Disconnect handles DELETE /api/connections?provider=...
// Provider display names contain spaces and slashes, so it travels as a
// query parameter rather than a path segment.
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	provider := r.URL.Query().Get("provider")
	if provider == "" {
		httputil.WriteError(w, apperrors.MissingRequired("provider"))
		return
	}

	if err := h.connections.Disconnect(r.Context(), user.ID, provider); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventProviderUnlinked,
		UserID:   user.ID,
		Provider: provider,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
