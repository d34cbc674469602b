package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/veridata/consent-server-go/internal/audit"
	"github.com/veridata/consent-server-go/internal/config"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/httputil"
	"github.com/veridata/consent-server-go/internal/middleware"
	"github.com/veridata/consent-server-go/internal/model"
	"github.com/veridata/consent-server-go/internal/service"
)

// OAuthHandler serves the per-provider authorization URL and callback
// endpoints. The callback renders a popup bridge page rather than JSON.
type OAuthHandler struct {
	oauth       *service.OAuthService
	sessions    *service.SessionService
	connections *service.ConnectionService
	cfg         *config.Config
}

func NewOAuthHandler(
	oauth *service.OAuthService,
	sessions *service.SessionService,
	connections *service.ConnectionService,
	cfg *config.Config,
) *OAuthHandler {
	return &OAuthHandler{
		oauth:       oauth,
		sessions:    sessions,
		connections: connections,
		cfg:         cfg,
	}
}

func validProvider(provider string) bool {
	switch provider {
	case model.OAuthProviderGitHub, model.OAuthProviderGoogle, model.OAuthProviderTwitter:
		return true
	}
	return false
}

func callbackPath(provider string) string {
	return fmt.Sprintf("/api/auth/%s/callback", provider)
}

// AuthURL handles GET /api/auth/{provider}/url
func (h *OAuthHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !validProvider(provider) {
		httputil.WriteError(w, apperrors.NotFound("Provider"))
		return
	}

	base := httputil.BaseURL(r, h.cfg.AppBaseURL)
	redirectURI := base + callbackPath(provider)

	authURL, err := h.oauth.GetAuthURL(r.Context(), provider, redirectURI)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if authURL.FlowID != "" {
		middleware.SetPKCEFlowCookie(w, callbackPath(provider), authURL.FlowID,
			int(h.cfg.PKCETTL().Seconds()), strings.HasPrefix(base, "https"))
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"url": authURL.URL})
}

// Callback handles GET /api/auth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !validProvider(provider) {
		renderPopupError(w, http.StatusNotFound, "Unknown provider")
		return
	}

	base := httputil.BaseURL(r, h.cfg.AppBaseURL)
	query := r.URL.Query()

	params := service.CallbackParams{
		Code:        query.Get("code"),
		State:       query.Get("state"),
		ErrorParam:  query.Get("error"),
		RedirectURI: base + callbackPath(provider),
	}
	if cookie, err := r.Cookie(middleware.PKCEFlowCookie); err == nil {
		params.FlowID = cookie.Value
	}
	// The verifier behind the flow cookie is consumed (or gone) after this
	// request either way.
	middleware.ClearPKCEFlowCookie(w, callbackPath(provider))

	profile, err := h.oauth.HandleCallback(r.Context(), provider, params)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:     audit.EventOAuthFlowFailed,
			Provider: provider,
			Details:  map[string]interface{}{"code": string(apperrors.GetCode(err))},
		})
		appErr, _ := apperrors.AsAppError(err)
		if appErr == nil {
			appErr = apperrors.Internal("OAuth flow failed")
		}
		renderPopupError(w, httputil.StatusFromCode(appErr.Code), appErr.Message)
		return
	}

	user, err := h.resolveOrLogin(w, r, base, profile)
	if err != nil {
		renderPopupError(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	if _, err := h.connections.Upsert(r.Context(), user.ID, profile); err != nil {
		renderPopupError(w, http.StatusInternalServerError, "Failed to save connection")
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventProviderLinked,
		UserID:   user.ID,
		Provider: provider,
	})
	renderPopupSuccess(w, profile.Provider)
}

// resolveOrLogin links the completed flow to the signed-in user, or logs the
// user in from the provider profile when no session exists.
func (h *OAuthHandler) resolveOrLogin(w http.ResponseWriter, r *http.Request, base string, profile *model.NormalizedProfile) (*model.User, error) {
	if cookie, err := r.Cookie(middleware.SessionCookie); err == nil && cookie.Value != "" {
		if user, err := h.sessions.ResolveUser(r.Context(), cookie.Value); err == nil {
			return user, nil
		}
	}

	user, token, err := h.sessions.LoginWithProfile(r.Context(), profile)
	if err != nil {
		return nil, err
	}
	middleware.SetSessionCookie(w, token, strings.HasPrefix(base, "https"))
	return user, nil
}
