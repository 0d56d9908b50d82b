package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer, c.requestIdMw, c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Method(http.MethodGet, "/metrics", c.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", c.healthz)
		r.Get("/rooms", c.listRooms)
		r.Get("/ws", c.serveWS)
	})

	return r
}
