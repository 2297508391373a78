package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the configured frontend origins to call the API with session
// cookies. Wildcards are never used because credentials are allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:           3600,
		AllowCredentials: true,
	})

	return handler.Handler
}
