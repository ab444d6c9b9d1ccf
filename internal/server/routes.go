package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	apiBasePath        = "/api"
	collectionBasePath = "/collection"
	searchBasePath     = "/search"
	booksBasePath      = "/books"
)

const (
	paramID   = "id"
	paramMode = "mode"
	paramPage = "n"
)

const requestTimeout = 60 * time.Second

// NewRouter builds the API routes and middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route(apiBasePath, func(r chi.Router) {
		r.Use(callerIdentity)

		// No request timeout: a full collection rebuild takes minutes.
		r.Post(collectionBasePath+"/load", MakeHandler(h.HandleLoad))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Route(searchBasePath, func(r chi.Router) {
				r.Get("/page"+pathWithParam("", paramPage), MakeHandler(h.HandlePage))
				r.Get(pathWithParam("", paramMode), MakeHandler(h.HandleSearch))
			})

			r.Get(pathWithParam(booksBasePath, paramID)+"/file", MakeHandler(h.HandleBookFile))
		})
	})

	r.With(middleware.Timeout(requestTimeout)).Get("/healthz", handleHealthCheck)

	return r
}

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}
