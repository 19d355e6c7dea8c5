package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/smarttags/internal/tagservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *tagservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tags and aliases.
	r.Get("/tags", h.ListTags)
	r.Post("/tags", h.CreateTag)
	r.Get("/tags/resolve", h.ResolveTag)
	r.Get("/tags/{tag}/documents", h.TagDocuments)
	r.Post("/aliases", h.RegisterAlias)
	r.Post("/store/reload", h.ReloadStore)

	// Documents.
	r.Post("/documents/tag", h.TagDocument)
	r.Get("/audit", h.Audit)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
