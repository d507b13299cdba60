package admin

import (
	"crypto/rsa"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns a configured chi.Router for the adapter's diagnostics
// surface.
//
// Route layout:
//
//	GET /healthz  – liveness probe (no authentication required)
//	GET /stats    – cache size, queue depth, connection liveness (JWT required when pubKey is non-nil)
//
// Pass nil for pubKey to leave /stats unauthenticated, matching the
// teacher's test-only escape hatch in its own router.
func NewRouter(srv *Server, pubKey *rsa.PublicKey) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealthz)

	statsHandler := http.Handler(http.HandlerFunc(srv.handleStats))
	if pubKey != nil {
		statsHandler = JWTMiddleware(pubKey)(statsHandler)
	}
	r.Method(http.MethodGet, "/stats", statsHandler)

	return r
}
