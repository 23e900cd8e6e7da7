package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/substrate-kb/substrate/internal/api"
	"github.com/substrate-kb/substrate/internal/api/handlers"
	"github.com/substrate-kb/substrate/internal/api/middleware"
)

type RouterConfig struct {
	InstanceHandler   *handlers.InstanceHandler
	SearchHandler     *handlers.SearchHandler
	RecommendHandler  *handlers.RecommendHandler
	EngagementHandler *handlers.EngagementHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Embeddings are large request bodies; 1536 floats is well under this.
	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/instances", func(r chi.Router) {
		r.Post("/", cfg.InstanceHandler.Index)
		r.Get("/", cfg.InstanceHandler.List)
		r.Get("/{id}", cfg.InstanceHandler.Get)
		r.Delete("/{id}", cfg.InstanceHandler.Delete)
		r.Post("/{id}/reinforce", cfg.InstanceHandler.Reinforce)
	})

	r.Post("/search", cfg.SearchHandler.Search)

	r.Get("/users/{userID}/recommendations", cfg.RecommendHandler.List)

	r.Post("/engagements", cfg.EngagementHandler.Record)

	return r
}
