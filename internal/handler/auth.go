package handler

import (
	"encoding/json"
	"net/http"

	"github.com/veridata/consent-server-go/internal/audit"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/httputil"
	"github.com/veridata/consent-server-go/internal/middleware"
	"github.com/veridata/consent-server-go/internal/service"
)

// AuthHandler serves the non-OAuth entry points: email and wallet login,
// session introspection and logout.
type AuthHandler struct {
	sessions *service.SessionService
	secure   bool
}

func NewAuthHandler(sessions *service.SessionService, secure bool) *AuthHandler {
	return &AuthHandler{sessions: sessions, secure: secure}
}

// LoginEmail handles POST /api/auth/email
func (h *AuthHandler) LoginEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	user, token, err := h.sessions.LoginWithEmail(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	middleware.SetSessionCookie(w, token, h.secure)
	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLoginSuccess,
		UserID:   user.ID,
		Provider: "email",
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

// LoginWallet handles POST /api/auth/wallet
func (h *AuthHandler) LoginWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	user, token, err := h.sessions.LoginWithWallet(r.Context(), req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	middleware.SetSessionCookie(w, token, h.secure)
	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLoginSuccess,
		UserID:   user.ID,
		Provider: "wallet",
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Session handles GET /api/auth/session (session required)
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r.Context()); user != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, UserID: user.ID})
	}
	middleware.ClearSessionCookie(w)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
