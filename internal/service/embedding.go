package service

import (
	"context"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// PageEmbeddingStore persists compiled content and embeddings
type PageEmbeddingStore interface {
	Save(ctx context.Context, pageID int64, compiledContent string, vector []float32) error
	Get(ctx context.Context, pageID int64) ([]float32, bool, error)
	Nearest(ctx context.Context, q domain.NearestQuery) ([]domain.SimilarPage, error)
}

// EmbeddingService computes and stores page embeddings
type EmbeddingService struct {
	client EmbeddingClient
	pages  PageReader
	store  PageEmbeddingStore
	log    *logger.Logger
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, pages PageReader, store PageEmbeddingStore, log *logger.Logger) *EmbeddingService {
	return &EmbeddingService{
		client: client,
		pages:  pages,
		store:  store,
		log:    log.With("service", "EmbeddingService"),
	}
}

// RefreshPageEmbedding recomputes a page's compiled content and embedding from
// its current blocks. A page without compilable content is left untouched and
// reported as not written.
func (s *EmbeddingService) RefreshPageEmbedding(ctx context.Context, pageID int64) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.RefreshPageEmbedding", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "refresh_embedding",
	})
	defer span.End()

	page, err := s.pages.GetWithBlocks(ctx, pageID)
	if err != nil {
		return false, err
	}

	vec, err := s.compute(ctx, page)
	if err != nil {
		return false, err
	}
	return vec != nil, nil
}

// EnsurePageEmbedding returns the page's stored vector, computing and
// persisting it first when absent. It returns nil when the page has no
// compilable content.
func (s *EmbeddingService) EnsurePageEmbedding(ctx context.Context, page *domain.Page) ([]float32, error) {
	if page.HasEmbedding() {
		return page.Embedding, nil
	}

	vec, found, err := s.store.Get(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	if found {
		return vec, nil
	}

	return s.compute(ctx, page)
}

func (s *EmbeddingService) compute(ctx context.Context, page *domain.Page) ([]float32, error) {
	compiled := CompileContent(page.Blocks)
	if compiled == "" {
		s.log.Debug("page has no compilable content, skipping embedding", "page_id", page.ID)
		return nil, nil
	}

	vec, err := s.client.GenerateEmbedding(ctx, compiled)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, page.ID, compiled, vec); err != nil {
		return nil, err
	}

	page.CompiledContent = &compiled
	page.Embedding = vec
	return vec, nil
}
