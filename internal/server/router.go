package server

import (
	"net/http"

	"github.com/cloo-solutions/lessonlens/internal/api"
	"github.com/cloo-solutions/lessonlens/internal/api/handlers"
	"github.com/cloo-solutions/lessonlens/internal/api/middleware"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	Logger              *logger.Logger
	Metrics             *metrics.Metrics
	PageHandler         *handlers.PageHandler
	RelationHandler     *handlers.RelationHandler
	RegenerationHandler *handlers.RegenerationHandler
	ListingHandler      *handlers.ListingHandler
	JobHandler          *handlers.JobHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/pages/{id}", func(r chi.Router) {
		r.Post("/blocks", cfg.PageHandler.SaveBlocks)
		r.Post("/blocks/{blockId}/image", cfg.PageHandler.RenderImage)
		r.Post("/refresh", cfg.PageHandler.Refresh)

		r.Get("/neighbors", cfg.RelationHandler.Neighbors)
		r.Post("/relations/suggestions", cfg.RelationHandler.Suggest)
		r.Post("/relations", cfg.RelationHandler.Accept)
		r.Get("/relations", cfg.ListingHandler.Relations)
		r.Get("/concepts", cfg.ListingHandler.Concepts)

		r.Post("/regenerate", cfg.RegenerationHandler.Regenerate)
		r.Post("/regenerate/apply", cfg.RegenerationHandler.Apply)
	})

	r.Get("/jobs/{id}", cfg.JobHandler.Get)

	return r
}
