package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrJamesThe3rd/cobrador/internal/http/export"
	"github.com/MrJamesThe3rd/cobrador/internal/http/reminder"
)

type Options struct {
	// JWTSecret enables bearer-token auth on /api/v1 when non-empty.
	JWTSecret      string
	AllowedOrigins []string
}

func New(remindersV1 *reminder.Handler, exportsV1 *export.Handler, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(RequireJWT(opts.JWTSecret))
		}

		r.Route("/reminders", remindersV1.Routes)
		r.Route("/exports", exportsV1.Routes)
	})

	return router
}
