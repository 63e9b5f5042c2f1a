package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/lessonlens/internal/api"
	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEditingService struct {
	mock.Mock
}

func (m *MockEditingService) SaveManualBlocks(ctx context.Context, pageID int64, contents []domain.BlockContent) ([]domain.Block, []*domain.QueuedJob, error) {
	args := m.Called(ctx, pageID, contents)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.Block), args.Get(1).([]*domain.QueuedJob), args.Error(2)
}

func (m *MockEditingService) RequestRefresh(ctx context.Context, pageID int64) ([]*domain.QueuedJob, error) {
	args := m.Called(ctx, pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QueuedJob), args.Error(1)
}

type MockImageService struct {
	mock.Mock
}

func (m *MockImageService) RenderImageSuggestion(ctx context.Context, pageID, blockID int64) (*service.RenderedImage, error) {
	args := m.Called(ctx, pageID, blockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RenderedImage), args.Error(1)
}

type MockSimilarityService struct {
	mock.Mock
}

func (m *MockSimilarityService) RankNeighbors(ctx context.Context, pageID int64, q service.NeighborQuery) ([]domain.SimilarPage, error) {
	args := m.Called(ctx, pageID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SimilarPage), args.Error(1)
}

type MockRelationService struct {
	mock.Mock
}

func (m *MockRelationService) Suggest(ctx context.Context, in service.SuggestInput) ([]domain.RelationSuggestion, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RelationSuggestion), args.Error(1)
}

func (m *MockRelationService) AcceptRelation(ctx context.Context, in service.AcceptRelationInput) (*domain.Relation, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Relation), args.Error(1)
}

type MockRegenerationService struct {
	mock.Mock
}

func (m *MockRegenerationService) Regenerate(ctx context.Context, pageID int64, instruction string) (*service.RegenerationResult, error) {
	args := m.Called(ctx, pageID, instruction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RegenerationResult), args.Error(1)
}

func (m *MockRegenerationService) Apply(ctx context.Context, pageID int64, result *service.RegenerationResult) ([]domain.Block, error) {
	args := m.Called(ctx, pageID, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Block), args.Error(1)
}

type MockJobReader struct {
	mock.Mock
}

func (m *MockJobReader) GetByID(ctx context.Context, id string) (*domain.QueuedJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueuedJob), args.Error(1)
}

// routedRequest builds a request carrying chi URL params as name/value pairs
func routedRequest(method, url, body string, params ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, url, nil)
	} else {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// decodeData unmarshals the data envelope of a success response into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
