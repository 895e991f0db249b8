package server

import (
	"net/http"

	"github.com/rs/cors"
)

// corsMiddleware allows browser clients on origins to call the API with
// credentials. Preflight requests are answered here.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
	})
	return c.Handler(next)
}
