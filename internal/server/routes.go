// Package server wires HTTP handlers into a chi router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthPath is served by the health handler and is therefore not usable as a room.
const HealthPath = "/healthz"

// SetupRoutes returns a router serving the health check on HealthPath and the
// websocket handshake on every other path; the path names the room.
func SetupRoutes(ws http.Handler, health http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, HealthPath, health)
	r.Handle("/*", ws)
	return r
}
