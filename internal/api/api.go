// Package api provides the http routes of the preview server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/samber/do/v2"

	"github.com/willie68/go_tpkutils/internal/utils/measurement"
)

// APIRoutes builds the router for the tile and metrics endpoints.
func APIRoutes(inj do.Injector) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
	)
	router.Get("/metrics", metricsHandler(do.MustInvoke[*measurement.Service](inj)))
	router.Mount("/", NewTileHandler(inj))
	return router
}

// metricsHandler serves the collected measurement points as json.
func metricsHandler(ms *measurement.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, ms.Datas())
	}
}
