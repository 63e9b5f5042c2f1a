package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRelationHandler_Neighbors_Defaults(t *testing.T) {
	sim := new(MockSimilarityService)
	handler := NewRelationHandler(sim, new(MockRelationService))

	sim.On("RankNeighbors", mock.Anything, int64(1), service.NeighborQuery{}).Return([]domain.SimilarPage{
		{PageID: 2, Title: "Cellular respiration", Summary: "ATP", Similarity: 0.81},
	}, nil)

	w := httptest.NewRecorder()
	handler.Neighbors(w, routedRequest(http.MethodGet, "/pages/1/neighbors", "", "id", "1"))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []NeighborResponse
	decodeData(t, w, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, int64(2), resp[0].PageID)
	assert.InDelta(t, 0.81, resp[0].Similarity, 1e-9)
}

func TestRelationHandler_Neighbors_QueryParams(t *testing.T) {
	sim := new(MockSimilarityService)
	handler := NewRelationHandler(sim, new(MockRelationService))

	sim.On("RankNeighbors", mock.Anything, int64(1), mock.MatchedBy(func(q service.NeighborQuery) bool {
		return q.TopK == 3 && q.MinSimilarity != nil && *q.MinSimilarity == 0.6 && q.OnlyPublished
	})).Return([]domain.SimilarPage{}, nil)

	w := httptest.NewRecorder()
	handler.Neighbors(w, routedRequest(http.MethodGet, "/pages/1/neighbors?top_k=3&min_similarity=0.6&published=true", "", "id", "1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	sim.AssertExpectations(t)
}

func TestRelationHandler_Neighbors_BadQuery(t *testing.T) {
	handler := NewRelationHandler(new(MockSimilarityService), new(MockRelationService))

	tests := []struct {
		name  string
		query string
	}{
		{"TopK", "top_k=many"},
		{"MinSimilarity", "min_similarity=high"},
		{"Published", "published=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Neighbors(w, routedRequest(http.MethodGet, "/pages/1/neighbors?"+tt.query, "", "id", "1"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRelationHandler_Neighbors_OutOfRange(t *testing.T) {
	sim := new(MockSimilarityService)
	handler := NewRelationHandler(sim, new(MockRelationService))

	sim.On("RankNeighbors", mock.Anything, int64(1), mock.Anything).Return(nil, domain.ErrInvalidTopK)

	w := httptest.NewRecorder()
	handler.Neighbors(w, routedRequest(http.MethodGet, "/pages/1/neighbors?top_k=500", "", "id", "1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeValidation, decodeError(t, w).Code)
}

func TestRelationHandler_Suggest(t *testing.T) {
	rel := new(MockRelationService)
	handler := NewRelationHandler(new(MockSimilarityService), rel)

	rel.On("Suggest", mock.Anything, mock.MatchedBy(func(in service.SuggestInput) bool {
		return in.PageID == 1 && in.TopK == 4 &&
			len(in.AllowedTypes) == 1 && in.AllowedTypes[0] == domain.RelationTypePrerequisite &&
			len(in.BlockIDs) == 1 && in.BlockIDs[0] == 3
	})).Return([]domain.RelationSuggestion{
		{
			CandidatePageID: 2,
			CandidateTitle:  "Cellular respiration",
			Similarity:      0.81,
			Anchors: []domain.Anchor{
				{BlockID: 3, MentionText: "ATP", RelationType: domain.RelationTypePrerequisite, Explanation: "defines ATP"},
				{BlockID: 3, MentionText: "NADH", RelationType: domain.RelationTypePrerequisite, Violation: "mention text not found in block"},
			},
		},
	}, nil)

	body := `{"top_k":4,"allowed_types":["PREREQUISITE"],"block_ids":[3]}`
	w := httptest.NewRecorder()
	handler.Suggest(w, routedRequest(http.MethodPost, "/pages/1/relations/suggestions", body, "id", "1"))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []SuggestionResponse
	decodeData(t, w, &resp)
	require.Len(t, resp, 1)
	require.Len(t, resp[0].Anchors, 2)
	assert.True(t, resp[0].Anchors[0].Valid)
	assert.False(t, resp[0].Anchors[1].Valid)
	assert.Equal(t, "mention text not found in block", resp[0].Anchors[1].Violation)
	rel.AssertExpectations(t)
}

func TestRelationHandler_Suggest_EmptyBody(t *testing.T) {
	rel := new(MockRelationService)
	handler := NewRelationHandler(new(MockSimilarityService), rel)

	rel.On("Suggest", mock.Anything, service.SuggestInput{PageID: 1, AllowedTypes: []domain.RelationType{}}).
		Return([]domain.RelationSuggestion{}, nil)

	w := httptest.NewRecorder()
	handler.Suggest(w, routedRequest(http.MethodPost, "/pages/1/relations/suggestions", "", "id", "1"))

	assert.Equal(t, http.StatusOK, w.Code)
	rel.AssertExpectations(t)
}

func TestRelationHandler_Suggest_GeneratorFailure(t *testing.T) {
	rel := new(MockRelationService)
	handler := NewRelationHandler(new(MockSimilarityService), rel)

	rel.On("Suggest", mock.Anything, mock.Anything).Return(nil, domain.ErrMalformedReply)

	w := httptest.NewRecorder()
	handler.Suggest(w, routedRequest(http.MethodPost, "/pages/1/relations/suggestions", `{}`, "id", "1"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRelationHandler_Accept_Success(t *testing.T) {
	rel := new(MockRelationService)
	handler := NewRelationHandler(new(MockSimilarityService), rel)

	expected := service.AcceptRelationInput{
		OriginPageID:    1,
		RelatedPageID:   2,
		BlockID:         3,
		MentionText:     "ATP",
		RelationType:    domain.RelationTypePrerequisite,
		Explanation:     "defines ATP",
		SimilarityScore: 0.81,
	}
	rel.On("AcceptRelation", mock.Anything, expected).Return(&domain.Relation{
		ID:              5,
		OriginPageID:    1,
		RelatedPageID:   2,
		SimilarityScore: 0.81,
		RelationType:    domain.RelationTypePrerequisite,
		MentionText:     "ATP",
		Explanation:     "defines ATP",
		CreatedAt:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil)

	body := `{"related_page_id":2,"block_id":3,"mention_text":"ATP","relation_type":"PREREQUISITE","explanation":"defines ATP","similarity_score":0.81}`
	w := httptest.NewRecorder()
	handler.Accept(w, routedRequest(http.MethodPost, "/pages/1/relations", body, "id", "1"))

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp RelationResponse
	decodeData(t, w, &resp)
	assert.Equal(t, int64(5), resp.ID)
	assert.Equal(t, "PREREQUISITE", resp.RelationType)
	assert.False(t, resp.IsEmbedded)
}

func TestRelationHandler_Accept_MissingFields(t *testing.T) {
	handler := NewRelationHandler(new(MockSimilarityService), new(MockRelationService))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"RelatedPage", `{"mention_text":"ATP"}`, "related_page_id is required"},
		{"Mention", `{"related_page_id":2}`, "mention_text is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Accept(w, routedRequest(http.MethodPost, "/pages/1/relations", tt.body, "id", "1"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestRelationHandler_Accept_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"AnchorNotFound", domain.ErrAnchorNotFound, http.StatusUnprocessableEntity},
		{"Duplicate", domain.ErrRelationAlreadyExists, http.StatusConflict},
		{"SelfRelation", domain.ErrSelfRelation, http.StatusConflict},
		{"RelatedMissing", domain.ErrPageNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := new(MockRelationService)
			handler := NewRelationHandler(new(MockSimilarityService), rel)
			rel.On("AcceptRelation", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := `{"related_page_id":2,"block_id":3,"mention_text":"ATP","relation_type":"PREREQUISITE"}`
			w := httptest.NewRecorder()
			handler.Accept(w, routedRequest(http.MethodPost, "/pages/1/relations", body, "id", "1"))

			assert.Equal(t, tt.status, w.Code)
		})
	}
}
