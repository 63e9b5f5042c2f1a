package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/lessonlens/internal/api"
	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/service"
)

type SimilarityService interface {
	RankNeighbors(ctx context.Context, pageID int64, q service.NeighborQuery) ([]domain.SimilarPage, error)
}

type RelationService interface {
	Suggest(ctx context.Context, in service.SuggestInput) ([]domain.RelationSuggestion, error)
	AcceptRelation(ctx context.Context, in service.AcceptRelationInput) (*domain.Relation, error)
}

type RelationHandler struct {
	similarity SimilarityService
	relations  RelationService
}

func NewRelationHandler(similarity SimilarityService, relations RelationService) *RelationHandler {
	return &RelationHandler{similarity: similarity, relations: relations}
}

type NeighborResponse struct {
	PageID     int64   `json:"page_id"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

type SuggestRequest struct {
	TopK          int      `json:"top_k"`
	MinSimilarity *float64 `json:"min_similarity"`
	AllowedTypes  []string `json:"allowed_types"`
	BlockIDs      []int64  `json:"block_ids"`
	OnlyPublished bool     `json:"only_published"`
}

type AnchorResponse struct {
	BlockID      int64  `json:"block_id"`
	MentionText  string `json:"mention_text"`
	RelationType string `json:"relation_type"`
	Explanation  string `json:"explanation"`
	Valid        bool   `json:"valid"`
	Violation    string `json:"violation,omitempty"`
}

type SuggestionResponse struct {
	CandidatePageID int64            `json:"candidate_page_id"`
	CandidateTitle  string           `json:"candidate_title"`
	Similarity      float64          `json:"similarity"`
	Anchors         []AnchorResponse `json:"anchors"`
}

type AcceptRelationRequest struct {
	RelatedPageID   int64   `json:"related_page_id"`
	BlockID         int64   `json:"block_id"`
	MentionText     string  `json:"mention_text"`
	RelationType    string  `json:"relation_type"`
	Explanation     string  `json:"explanation"`
	SimilarityScore float64 `json:"similarity_score"`
}

type RelationResponse struct {
	ID              int64   `json:"id"`
	OriginPageID    int64   `json:"origin_page_id"`
	RelatedPageID   int64   `json:"related_page_id"`
	SimilarityScore float64 `json:"similarity_score"`
	RelationType    string  `json:"relation_type"`
	MentionText     string  `json:"mention_text"`
	Explanation     string  `json:"explanation"`
	IsEmbedded      bool    `json:"is_embedded"`
	CreatedAt       string  `json:"created_at"`
}

func suggestionsToResponse(suggestions []domain.RelationSuggestion) []SuggestionResponse {
	out := make([]SuggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		anchors := make([]AnchorResponse, 0, len(s.Anchors))
		for _, a := range s.Anchors {
			anchors = append(anchors, AnchorResponse{
				BlockID:      a.BlockID,
				MentionText:  a.MentionText,
				RelationType: string(a.RelationType),
				Explanation:  a.Explanation,
				Valid:        a.Valid(),
				Violation:    a.Violation,
			})
		}
		out = append(out, SuggestionResponse{
			CandidatePageID: s.CandidatePageID,
			CandidateTitle:  s.CandidateTitle,
			Similarity:      s.Similarity,
			Anchors:         anchors,
		})
	}
	return out
}

func relationToResponse(rel *domain.Relation) *RelationResponse {
	return &RelationResponse{
		ID:              rel.ID,
		OriginPageID:    rel.OriginPageID,
		RelatedPageID:   rel.RelatedPageID,
		SimilarityScore: rel.SimilarityScore,
		RelationType:    string(rel.RelationType),
		MentionText:     rel.MentionText,
		Explanation:     rel.Explanation,
		IsEmbedded:      rel.IsEmbedded,
		CreatedAt:       rel.CreatedAt.UTC().Format(timeFormat),
	}
}

// Neighbors lists the page's nearest pages in its module
func (h *RelationHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	var q service.NeighborQuery
	query := r.URL.Query()
	if v := query.Get("top_k"); v != "" {
		topK, err := strconv.Atoi(v)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		q.TopK = topK
	}
	if v := query.Get("min_similarity"); v != "" {
		minSim, err := strconv.ParseFloat(v, 64)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "min_similarity must be a number")
			return
		}
		q.MinSimilarity = &minSim
	}
	if v := query.Get("published"); v != "" {
		published, err := strconv.ParseBool(v)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "published must be a boolean")
			return
		}
		q.OnlyPublished = published
	}

	neighbors, err := h.similarity.RankNeighbors(r.Context(), pageID, q)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]NeighborResponse, 0, len(neighbors))
	for _, n := range neighbors {
		resp = append(resp, NeighborResponse{
			PageID:     n.PageID,
			Title:      n.Title,
			Summary:    n.Summary,
			Similarity: n.Similarity,
		})
	}
	api.Success(w, http.StatusOK, resp)
}

// Suggest proposes anchored relations from the page to its neighbours
func (h *RelationHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	// An empty body takes every default
	var req SuggestRequest
	if !api.DecodeJSON(w, r, &req, true) {
		return
	}

	allowed := make([]domain.RelationType, 0, len(req.AllowedTypes))
	for _, t := range req.AllowedTypes {
		allowed = append(allowed, domain.RelationType(t))
	}

	suggestions, err := h.relations.Suggest(r.Context(), service.SuggestInput{
		PageID:        pageID,
		TopK:          req.TopK,
		MinSimilarity: req.MinSimilarity,
		AllowedTypes:  allowed,
		BlockIDs:      req.BlockIDs,
		OnlyPublished: req.OnlyPublished,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, suggestionsToResponse(suggestions))
}

// Accept persists a chosen anchor as a relation
func (h *RelationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	pageID, ok := int64Param(r, "id")
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid page id")
		return
	}

	var req AcceptRelationRequest
	if !api.DecodeJSON(w, r, &req, false) {
		return
	}

	if req.RelatedPageID <= 0 {
		api.Error(w, http.StatusBadRequest, "related_page_id is required")
		return
	}
	if req.MentionText == "" {
		api.Error(w, http.StatusBadRequest, "mention_text is required")
		return
	}

	rel, err := h.relations.AcceptRelation(r.Context(), service.AcceptRelationInput{
		OriginPageID:    pageID,
		RelatedPageID:   req.RelatedPageID,
		BlockID:         req.BlockID,
		MentionText:     req.MentionText,
		RelationType:    domain.RelationType(req.RelationType),
		Explanation:     req.Explanation,
		SimilarityScore: req.SimilarityScore,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, relationToResponse(rel))
}
