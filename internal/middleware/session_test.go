package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/consent-server-go/internal/model"
	"github.com/veridata/consent-server-go/internal/service"
)

type staticUserRepo struct {
	user *model.User
}

func (r *staticUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, nil
}

func (r *staticUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (r *staticUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	return nil, nil
}

func TestSessionMiddleware(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "alice@example.com"}
	sessions := service.NewSessionService(&staticUserRepo{user: user}, "test-secret-0123456789abcdef")
	mw := NewSessionMiddleware(sessions)

	var seen *model.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mw.Handler(next).ServeHTTP(rec, httptest.NewRequest("GET", "/api/connections", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/connections", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage"})
		mw.Handler(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid session", func(t *testing.T) {
		token, err := sessions.IssueToken("user-1")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/connections", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		mw.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "user-1", seen.ID)
	})

	t.Run("token for deleted user", func(t *testing.T) {
		token, err := sessions.IssueToken("gone")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/connections", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		mw.Handler(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSessionCookieHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "token-value", true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
}
