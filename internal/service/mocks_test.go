package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/openai"
)

// MockPageRepository is a mock implementation of PageRepositoryInterface and ConceptPageRepository
type MockPageRepository struct {
	mock.Mock
}

func (m *MockPageRepository) GetWithBlocks(ctx context.Context, id int64) (*domain.Page, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Page), args.Error(1)
}

func (m *MockPageRepository) ReplaceBlocks(ctx context.Context, pageID int64, contents []domain.BlockContent) ([]domain.Block, error) {
	args := m.Called(ctx, pageID, contents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Block), args.Error(1)
}

func (m *MockPageRepository) MarkManualEdit(ctx context.Context, pageID int64) error {
	args := m.Called(ctx, pageID)
	return args.Error(0)
}

func (m *MockPageRepository) SaveGeneration(ctx context.Context, pageID int64, threadID string) error {
	args := m.Called(ctx, pageID, threadID)
	return args.Error(0)
}

func (m *MockPageRepository) MarkConceptsProcessed(ctx context.Context, pageID int64) error {
	args := m.Called(ctx, pageID)
	return args.Error(0)
}

// MockModuleRepository is a mock implementation of ModuleReader
type MockModuleRepository struct {
	mock.Mock
}

func (m *MockModuleRepository) GetByID(ctx context.Context, id int64) (*domain.Module, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Module), args.Error(1)
}

// MockJobRepository is a mock implementation of JobEnqueuer
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Enqueue(ctx context.Context, job *domain.QueuedJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockConceptRepository is a mock implementation of ConceptRepositoryInterface
type MockConceptRepository struct {
	mock.Mock
}

func (m *MockConceptRepository) Create(ctx context.Context, c *domain.Concept) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// MockRelationRepository is a mock implementation of RelationRepositoryInterface
type MockRelationRepository struct {
	mock.Mock
}

func (m *MockRelationRepository) Create(ctx context.Context, r *domain.Relation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockEmbeddingStore is a mock implementation of PageEmbeddingStore
type MockEmbeddingStore struct {
	mock.Mock
}

func (m *MockEmbeddingStore) Save(ctx context.Context, pageID int64, compiledContent string, vector []float32) error {
	args := m.Called(ctx, pageID, compiledContent, vector)
	return args.Error(0)
}

func (m *MockEmbeddingStore) Get(ctx context.Context, pageID int64) ([]float32, bool, error) {
	args := m.Called(ctx, pageID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]float32), args.Bool(1), args.Error(2)
}

func (m *MockEmbeddingStore) Nearest(ctx context.Context, q domain.NearestQuery) ([]domain.SimilarPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SimilarPage), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req openai.GenerateRequest, continuationID string) (*openai.GenerateResult, error) {
	args := m.Called(ctx, req, continuationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.GenerateResult), args.Error(1)
}

// MockImageRenderer is a mock implementation of ImageRenderer
type MockImageRenderer struct {
	mock.Mock
}

func (m *MockImageRenderer) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockObjectStore is a mock implementation of ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) error {
	args := m.Called(ctx, key, body, contentType, metadata)
	return args.Error(0)
}

func (m *MockObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

func genResult(content string, continuationID string) *openai.GenerateResult {
	return &openai.GenerateResult{Content: []byte(content), ContinuationID: continuationID}
}
