package middleware

import (
	"net/http"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/go-chi/cors"
)

var devOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// CORS applies the storefront origin policy. Dev falls back to local frontends when no
// origins are configured; other environments then reject every cross-origin request.
func CORS(app config.AppConfig) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   app.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(opts.AllowedOrigins) == 0 {
		if app.IsDev() {
			opts.AllowedOrigins = devOrigins
		} else {
			// an empty list would mean "*" to the cors package
			opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
		}
	}
	return cors.New(opts).Handler
}
