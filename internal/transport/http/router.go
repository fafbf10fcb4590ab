package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"casino-relay/internal/config"
	"casino-relay/internal/relay"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc *relay.Service, cfg config.ServerConfig) *chi.Mux {
	streamHandlers := NewStreamHandlers(svc)
	gameHandlers := NewGameHandlers(svc)
	adminHandlers := NewAdminHandlers(svc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/stream/games/{game_id}", streamHandlers.Game())
		r.Get("/stream/tables/{table_id}", streamHandlers.Table())
		r.Options("/stream/*", streamHandlers.Preflight(cfg))

		r.Get("/games", gameHandlers.List())
		r.Get("/games/{game_id}", gameHandlers.Game())
		r.Get("/games/{game_id}/results", gameHandlers.Results())
		r.Get("/status", adminHandlers.Status())
		r.Get("/stats", adminHandlers.Stats())

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/cleanup", adminHandlers.Cleanup())
			r.Post("/upstream/reconnect", adminHandlers.Reconnect())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-7s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
