package service

import (
	"context"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

const (
	DefaultTopK                    = 5
	DefaultNeighborMinSimilarity   = 0.5
	DefaultSuggestionMinSimilarity = 0.72
)

// EmbeddingEnsurer returns a page's vector, computing it when absent
type EmbeddingEnsurer interface {
	EnsurePageEmbedding(ctx context.Context, page *domain.Page) ([]float32, error)
}

// NeighborStore runs nearest-neighbour queries
type NeighborStore interface {
	Nearest(ctx context.Context, q domain.NearestQuery) ([]domain.SimilarPage, error)
}

// NeighborQuery bounds a neighbour listing. Zero TopK and nil MinSimilarity
// fall back to the ranker's defaults.
type NeighborQuery struct {
	TopK          int
	MinSimilarity *float64
	OnlyPublished bool
}

// SimilarityService ranks a page's semantic neighbours within its module
type SimilarityService struct {
	pages         PageReader
	embeddings    EmbeddingEnsurer
	store         NeighborStore
	defaultTopK   int
	minSimilarity float64
}

// NewSimilarityService creates a ranker using minSimilarity when a query has none
func NewSimilarityService(pages PageReader, embeddings EmbeddingEnsurer, store NeighborStore, minSimilarity float64) *SimilarityService {
	return &SimilarityService{
		pages:         pages,
		embeddings:    embeddings,
		store:         store,
		defaultTopK:   DefaultTopK,
		minSimilarity: minSimilarity,
	}
}

// RankNeighbors returns the page's nearest pages, computing its embedding if
// needed. A page with no compilable content has no neighbours.
func (s *SimilarityService) RankNeighbors(ctx context.Context, pageID int64, q NeighborQuery) ([]domain.SimilarPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "SimilarityService.RankNeighbors", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "rank_neighbors",
	})
	defer span.End()

	if _, _, err := s.resolve(q); err != nil {
		return nil, err
	}

	page, err := s.pages.GetWithBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}

	return s.RankPage(ctx, page, q)
}

// RankPage ranks the neighbours of an already loaded page
func (s *SimilarityService) RankPage(ctx context.Context, page *domain.Page, q NeighborQuery) ([]domain.SimilarPage, error) {
	topK, minSim, err := s.resolve(q)
	if err != nil {
		return nil, err
	}

	vec, err := s.embeddings.EnsurePageEmbedding(ctx, page)
	if err != nil {
		return nil, err
	}
	if vec == nil {
		return []domain.SimilarPage{}, nil
	}

	return s.store.Nearest(ctx, domain.NearestQuery{
		ModuleID:      page.ModuleID,
		ExcludePageID: page.ID,
		Vector:        vec,
		TopK:          topK,
		MinSimilarity: minSim,
		OnlyPublished: q.OnlyPublished,
	})
}

func (s *SimilarityService) resolve(q NeighborQuery) (int, float64, error) {
	topK := q.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	if err := domain.ValidateTopK(topK); err != nil {
		return 0, 0, err
	}

	minSim := s.minSimilarity
	if q.MinSimilarity != nil {
		minSim = *q.MinSimilarity
	}
	if err := domain.ValidateMinSimilarity(minSim); err != nil {
		return 0, 0, err
	}
	return topK, minSim, nil
}
