package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/lessonlens/internal/api"
	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/service"
)

type RegenerationService interface {
	Regenerate(ctx context.Context, pageID int64, instruction string) (*service.RegenerationResult, error)
	Apply(ctx context.Context, pageID int64, result *service.RegenerationResult) ([]domain.Block, error)
}

type RegenerationHandler struct {
	svc RegenerationService
}

func NewRegenerationHandler(svc RegenerationService) *RegenerationHandler {
	return &RegenerationHandler{svc: svc}
}

type RegenerateRequest struct {
	Instruction string `json:"instruction"`
}

type RegenerationResponse struct {
	Blocks         []BlockPayload `json:"blocks"`
	ContinuationID string         `json:"continuation_id"`
	Continued      bool           `json:"continued"`
}

// RegenerationRejectedResponse carries a result that failed structural checks
// so the caller can review it.
type RegenerationRejectedResponse struct {
	Error  string                `json:"error"`
	Code   string                `json:"code"`
	Result *RegenerationResponse `json:"result"`
}

type ApplyRegenerationRequest struct {
	ContinuationID string         `json:"continuation_id"`
	Blocks         []BlockPayload `json:"blocks"`
}

func regenerationToResponse(res *service.RegenerationResult) *RegenerationResponse {
	return &RegenerationResponse{
		Blocks:         contentsToPayloads(res.Blocks),
		ContinuationID: res.ContinuationID,
		Continued:      res.Continued,
	}
}

// Regenerate asks the generative model for a new block list. Nothing is saved.
func (h *RegenerationHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	var req RegenerateRequest
	if !api.DecodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		api.Error(w, http.StatusBadRequest, "instruction is required")
		return
	}

	res, err := h.svc.Regenerate(r.Context(), pageID, req.Instruction)
	if err != nil {
		if res != nil && domain.HasCode(err, domain.ErrCodeStructuralInvariant) {
			api.JSON(w, http.StatusUnprocessableEntity, RegenerationRejectedResponse{
				Error:  err.Error(),
				Code:   domain.CodeOf(err),
				Result: regenerationToResponse(res),
			})
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, regenerationToResponse(res))
}

// Apply saves a reviewed regeneration result and records its continuation id
func (h *RegenerationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	var req ApplyRegenerationRequest
	if !api.DecodeJSON(w, r, &req, false) {
		return
	}
	// The id is stored as given. One the thread store does not know makes the
	// next regeneration start a fresh thread.
	if req.ContinuationID == "" {
		api.Error(w, http.StatusBadRequest, "continuation_id is required")
		return
	}

	contents, err := payloadsToContents(req.Blocks)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	blocks, err := h.svc.Apply(r.Context(), pageID, &service.RegenerationResult{
		Blocks:         contents,
		ContinuationID: req.ContinuationID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, blocksToResponse(blocks))
}
