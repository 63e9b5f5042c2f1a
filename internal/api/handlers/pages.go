package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/lessonlens/internal/api"
	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/service"
)

type EditingService interface {
	SaveManualBlocks(ctx context.Context, pageID int64, contents []domain.BlockContent) ([]domain.Block, []*domain.QueuedJob, error)
	RequestRefresh(ctx context.Context, pageID int64) ([]*domain.QueuedJob, error)
}

type ImageService interface {
	RenderImageSuggestion(ctx context.Context, pageID, blockID int64) (*service.RenderedImage, error)
}

// PageHandler serves block edits, refresh requests and image rendering
type PageHandler struct {
	editing EditingService
	images  ImageService
}

// NewPageHandler creates a PageHandler. images may be nil when object storage
// is not configured.
func NewPageHandler(editing EditingService, images ImageService) *PageHandler {
	return &PageHandler{editing: editing, images: images}
}

type SaveBlocksRequest struct {
	Blocks []BlockPayload `json:"blocks"`
}

type SaveBlocksResponse struct {
	Blocks []BlockResponse `json:"blocks"`
	Jobs   []*JobResponse  `json:"jobs"`
}

type RefreshResponse struct {
	Jobs []*JobResponse `json:"jobs"`
}

type RenderedImageResponse struct {
	StorageKey  string `json:"storage_key"`
	DownloadURL string `json:"download_url"`
}

// SaveBlocks replaces a page's blocks with a manual edit
func (h *PageHandler) SaveBlocks(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	var req SaveBlocksRequest
	if !api.DecodeJSON(w, r, &req, false) {
		return
	}

	contents, err := payloadsToContents(req.Blocks)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	blocks, jobs, err := h.editing.SaveManualBlocks(r.Context(), pageID, contents)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SaveBlocksResponse{
		Blocks: blocksToResponse(blocks),
		Jobs:   jobsToResponse(jobs),
	})
}

// Refresh enqueues the page's pipeline jobs without changing its content
func (h *PageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	jobs, err := h.editing.RequestRefresh(r.Context(), pageID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, RefreshResponse{Jobs: jobsToResponse(jobs)})
}

// RenderImage renders an IMAGE_SUGGESTION block and returns a download URL
func (h *PageHandler) RenderImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		api.Error(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}
	blockID, ok := int64Param(r, "blockId")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid block id")
		return
	}

	img, err := h.images.RenderImageSuggestion(r.Context(), pageID, blockID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, RenderedImageResponse{
		StorageKey:  img.StorageKey,
		DownloadURL: img.DownloadURL,
	})
}
