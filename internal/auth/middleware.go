package auth

import (
	"log/slog"
	"net/http"

	"github.com/liquistock/liquistock/internal/platform/httpx"
	"github.com/liquistock/liquistock/internal/shared"
)

// Middleware authenticates requests with HTTP Basic credentials and stores
// the acting user's id in the request context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require rejects requests without valid credentials.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="liquistock"`)
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "credentials required")
			return
		}
		user, err := m.Service.Authenticate(r.Context(), username, password)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("authentication failed", slog.String("username", username))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="liquistock"`)
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		ctx := shared.ContextWithActor(r.Context(), user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
