package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

func CORS(allowedOrigins []string, serviceKeyHeader string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", serviceKeyHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           3600,
	}
	// Credentials cannot be combined with a wildcard origin.
	for _, o := range allowedOrigins {
		if o == "*" {
			opts.AllowCredentials = false
		}
	}
	return cors.Handler(opts)
}
