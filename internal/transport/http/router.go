// Package httptransport assembles the service's HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xclone/pkg/platform/httputil"
)

// Registrar adds a group of routes to the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the operational endpoints and every registrar's routes.
func NewRouter(logger *slog.Logger, gatherer prometheus.Gatherer, registrars ...Registrar) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}))
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
