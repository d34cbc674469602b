package httputil

import (
	"net/http"
	"strings"
)

// BaseURL reconstructs the externally visible scheme://host for a request.
//
// Providers validate redirect_uri by exact byte match, so behind a proxy the
// host and protocol must come from the forwarded headers rather than the
// request's own origin. An explicit configured base URL always wins.
func BaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimSuffix(configured, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = firstValue(proto)
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = firstValue(fwd)
	}

	return scheme + "://" + host
}

func firstValue(header string) string {
	if idx := strings.IndexByte(header, ','); idx >= 0 {
		header = header[:idx]
	}
	return strings.TrimSpace(header)
}
