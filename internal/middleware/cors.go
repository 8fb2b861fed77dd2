package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/oneshare/signal-server-go/internal/config"
)

// CORS allows the configured client origin to call the share API from a
// browser.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin()},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	})
}
