package app

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// WithCORS allows the configured browser origins to call the JSON API.
// With no origins configured, next is returned unchanged and browsers fall
// back to same-origin only.
func WithCORS(next http.Handler, cfg Config, log Logger) http.Handler {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return next
	}
	log.Info("http.cors.enabled", "origins", cfg.CORSAllowedOrigins, "credentials", cfg.CORSAllowCredentials)

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAgeSeconds,
	})(next)
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
