package middleware

import (
	"context"
	"net/http"

	"github.com/veridata/consent-server-go/internal/config"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/httputil"
	"github.com/veridata/consent-server-go/internal/model"
	"github.com/veridata/consent-server-go/internal/service"
)

const SessionCookie = "auth_session"

// PKCEFlowCookie carries the flow ID that keys the stored code verifier
// across the authorization redirect hop.
const PKCEFlowCookie = "oauth_flow"

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// SessionMiddleware resolves the session cookie into a user and injects it
// into the request context. Requests without a valid session are rejected.
type SessionMiddleware struct {
	sessions *service.SessionService
}

func NewSessionMiddleware(sessions *service.SessionService) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Not authenticated"))
			return
		}

		user, err := m.sessions.ResolveUser(r.Context(), cookie.Value)
		if err != nil {
			httputil.WriteError(w, apperrors.Unauthorized("Not authenticated"))
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// SetPKCEFlowCookie scopes the flow cookie to the provider callback path so
// it never travels with unrelated requests. SameSite=Lax keeps it on the
// top-level redirect back from the provider.
func SetPKCEFlowCookie(w http.ResponseWriter, callbackPath, flowID string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     PKCEFlowCookie,
		Value:    flowID,
		Path:     callbackPath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearPKCEFlowCookie(w http.ResponseWriter, callbackPath string) {
	http.SetCookie(w, &http.Cookie{
		Name:   PKCEFlowCookie,
		Value:  "",
		Path:   callbackPath,
		MaxAge: -1,
	})
}
