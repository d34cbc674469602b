package handler

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

// The callback endpoints render into a provider-opened popup. The page posts
// the outcome to the opener window and closes itself; when there is no
// opener (the user navigated directly) it falls back to the dashboard.

var popupSuccessTmpl = template.Must(template.New("popup_success").Parse(`<!DOCTYPE html>
<html>
<head><title>Authentication successful</title></head>
<body>
<p>Authentication successful. You can close this window.</p>
<script>
  if (window.opener) {
    window.opener.postMessage({ type: 'OAUTH_AUTH_SUCCESS', provider: {{.Provider}} }, window.location.origin);
    window.close();
  } else {
    window.location.href = '/dashboard';
  }
</script>
</body>
</html>
`))

var popupErrorTmpl = template.Must(template.New("popup_error").Parse(`<!DOCTYPE html>
<html>
<head><title>Authentication failed</title></head>
<body>
<p>Authentication failed: {{.Message}}</p>
<script>
  if (window.opener) {
    window.opener.postMessage({ type: 'OAUTH_AUTH_ERROR', error: {{.Message}} }, window.location.origin);
    window.close();
  } else {
    window.location.href = '/dashboard';
  }
</script>
</body>
</html>
`))

func renderPopupSuccess(w http.ResponseWriter, provider string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := popupSuccessTmpl.Execute(w, map[string]string{"Provider": provider}); err != nil {
		log.Error().Err(err).Msg("failed to render popup success page")
	}
}

func renderPopupError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := popupErrorTmpl.Execute(w, map[string]string{"Message": message}); err != nil {
		log.Error().Err(err).Msg("failed to render popup error page")
	}
}
