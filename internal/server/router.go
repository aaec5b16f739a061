package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/handlers"
	"github.com/mementolabs/memento/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator middleware.AuthValidator
	MemoryHandler *handlers.MemoryHandler
	StatusHandler *handlers.StatusHandler
	QueryHandler  *handlers.QueryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", cfg.MemoryHandler.Ingest)
			r.Post("/media", cfg.MemoryHandler.IngestMedia)
			r.Post("/media/upload-url", cfg.MemoryHandler.UploadURL)
			r.Post("/link", cfg.MemoryHandler.IngestLink)
			r.Get("/", cfg.MemoryHandler.List)
			r.Get("/{id}", cfg.MemoryHandler.Get)
			r.Get("/{id}/chunks", cfg.MemoryHandler.GetChunks)
			r.Delete("/{id}", cfg.MemoryHandler.Delete)
			r.Put("/chunks/{chunkID}", cfg.MemoryHandler.UpdateChunk)
		})

		r.Route("/status", func(r chi.Router) {
			r.Get("/", cfg.StatusHandler.List)
			r.Get("/{documentID}", cfg.StatusHandler.Get)
		})

		r.Post("/query", cfg.QueryHandler.Query)
		r.Post("/query/stream", cfg.QueryHandler.QueryStream)
	})

	return r
}
