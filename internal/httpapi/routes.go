package httpapi

import (
	"net/http"

	"github.com/compoker/backend/internal/registry"
	"github.com/compoker/backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SetupRoutes builds the router with the registry injected. Everything but
// the websocket endpoint is served from the public asset directory.
func SetupRoutes(reg *registry.Registry, publicDir string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(reg, log.Named("ws")))
	r.NotFound(StaticFiles(publicDir).ServeHTTP)
	return r
}
