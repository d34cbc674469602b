package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/veridata/consent-server-go/internal/audit"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/httputil"
	"github.com/veridata/consent-server-go/internal/middleware"
	"github.com/veridata/consent-server-go/internal/service"
)

const defaultNotaryListLimit = 20

// PermissionHandler serves data-category consent levels, the notarization
// feed and the global revoke. All routes sit behind the session middleware.
type PermissionHandler struct {
	permissions  *service.PermissionService
	notaryPubKey string
}

func NewPermissionHandler(permissions *service.PermissionService, notaryPubKey string) *PermissionHandler {
	return &PermissionHandler{permissions: permissions, notaryPubKey: notaryPubKey}
}

// List handles GET /api/permissions
func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	categories, err := h.permissions.List(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"permissions": categories})
}

// UpdateLevel handles PATCH /api/permissions/{id}
func (h *PermissionHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	categoryID := chi.URLParam(r, "id")

	var req struct {
		Level string   `json:"level"`
		Price *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	category, err := h.permissions.UpdateLevel(r.Context(), user.ID, categoryID, req.Level, req.Price)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventPermissionChanged,
		UserID: user.ID,
		Details: map[string]interface{}{
			"category": category.Name,
			"level":    category.Level,
		},
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"permission": category})
}

// RevokeAll handles POST /api/revoke-all
func (h *PermissionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	result, err := h.permissions.RevokeAll(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventRevokeAll,
		UserID: user.ID,
		Details: map[string]interface{}{
			"connectionsRevoked": result.ConnectionsRevoked,
			"permissionsReset":   result.PermissionsReset,
		},
	})
	httputil.WriteJSON(w, http.StatusOK, result)
}

// Notarizations handles GET /api/notary
func (h *PermissionHandler) Notarizations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	limit := defaultNotaryListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	notarizations, err := h.permissions.ListNotarizations(r.Context(), user.ID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"notaryPublicKey": h.notaryPubKey,
		"notarizations":   notarizations,
	})
}
