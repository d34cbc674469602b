package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseURL(t *testing.T) {
	t.Run("configured base wins", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://internal:8080/api/auth/github/url", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		assert.Equal(t, "https://app.example.com", BaseURL(r, "https://app.example.com/"))
	})

	t.Run("plain request", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://localhost:8080/api", nil)
		assert.Equal(t, "http://localhost:8080", BaseURL(r, ""))
	})

	t.Run("forwarded headers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://10.0.0.5:8080/api", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		r.Header.Set("X-Forwarded-Host", "app.example.com")
		assert.Equal(t, "https://app.example.com", BaseURL(r, ""))
	})

	t.Run("multi-hop forwarded headers use first value", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://10.0.0.5:8080/api", nil)
		r.Header.Set("X-Forwarded-Proto", "https, http")
		r.Header.Set("X-Forwarded-Host", "app.example.com, cdn.internal")
		assert.Equal(t, "https://app.example.com", BaseURL(r, ""))
	})
}
