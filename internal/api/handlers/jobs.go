package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/lessonlens/internal/api"
	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/go-chi/chi/v5"
)

type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.QueuedJob, error)
}

type JobHandler struct {
	jobs JobReader
}

func NewJobHandler(jobs JobReader) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Get returns a queue row's status
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}
