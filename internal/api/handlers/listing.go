package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/lessonlens/internal/api"
	"github.com/cloo-solutions/lessonlens/internal/domain"
)

type ConceptLister interface {
	ListByPage(ctx context.Context, pageID int64) ([]*domain.Concept, error)
}

type RelationLister interface {
	ListByOrigin(ctx context.Context, originPageID int64) ([]*domain.Relation, error)
}

// ListingHandler serves the pipeline's stored outputs for a page
type ListingHandler struct {
	concepts  ConceptLister
	relations RelationLister
}

func NewListingHandler(concepts ConceptLister, relations RelationLister) *ListingHandler {
	return &ListingHandler{concepts: concepts, relations: relations}
}

type ConceptResponse struct {
	ID         int64  `json:"id"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
	CreatedAt  string `json:"created_at"`
}

func (h *ListingHandler) Concepts(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	concepts, err := h.concepts.ListByPage(r.Context(), pageID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]ConceptResponse, 0, len(concepts))
	for _, c := range concepts {
		resp = append(resp, ConceptResponse{
			ID:         c.ID,
			Term:       c.Term,
			Definition: c.Definition,
			CreatedAt:  c.CreatedAt.UTC().Format(timeFormat),
		})
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *ListingHandler) Relations(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	relations, err := h.relations.ListByOrigin(r.Context(), pageID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*RelationResponse, 0, len(relations))
	for _, rel := range relations {
		resp = append(resp, relationToResponse(rel))
	}
	api.Success(w, http.StatusOK, resp)
}
