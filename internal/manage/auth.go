package manage

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkedz/outreach/internal/config"
)

// BasicAuth guards the management surface with HTTP basic auth. The
// credential comes from the environment at startup; when a bcrypt hash is
// configured it wins over the plaintext variant.
func BasicAuth(secrets config.Secrets, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !credentialsValid(secrets, user, pass) {
				logger.Warn("dashboard auth rejected", "remote", r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", `Basic realm="outreach"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func credentialsValid(secrets config.Secrets, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(secrets.DashboardUser)) == 1

	var passOK bool
	if secrets.DashboardPasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword(
			[]byte(secrets.DashboardPasswordHash), []byte(pass)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(pass), []byte(secrets.DashboardPassword)) == 1
	}

	return userOK && passOK
}
