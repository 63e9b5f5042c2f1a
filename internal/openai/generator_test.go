package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/lessonlens/internal/domain"
)

type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

type MockThreadStore struct {
	mock.Mock
}

func (m *MockThreadStore) Load(ctx context.Context, id string) ([]Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockThreadStore) Save(ctx context.Context, id string, messages []Message) error {
	args := m.Called(ctx, id, messages)
	return args.Error(0)
}

type MockImageAPI struct {
	mock.Mock
}

func (m *MockImageAPI) CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ImageResponse), args.Error(1)
}

func chatReply(id, content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID: id,
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: RoleAssistant, Content: content}},
		},
	}
}

func testRequest() GenerateRequest {
	return GenerateRequest{
		SchemaName: "concepts",
		Schema:     json.RawMessage(`{"type":"object"}`),
		Messages: []Message{
			{Role: RoleSystem, Content: "You extract concepts."},
			{Role: RoleUser, Content: "Mitochondria produce ATP."},
		},
	}
}

func TestGenerator_Generate_FreshThread(t *testing.T) {
	api := new(MockChatAPI)
	threads := new(MockThreadStore)
	gen := NewGenerator(api, threads, DefaultModelConfig())
	ctx := context.Background()

	api.On("CreateChatCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == DefaultResponsesModel &&
			len(req.Messages) == 2 &&
			req.ResponseFormat != nil &&
			req.ResponseFormat.Type == openai.ChatCompletionResponseFormatTypeJSONSchema &&
			req.ResponseFormat.JSONSchema.Name == "concepts" &&
			req.ResponseFormat.JSONSchema.Strict
	})).Return(chatReply("chatcmpl-1", `{"concepts":[]}`), nil)
	threads.On("Save", ctx, "chatcmpl-1", mock.MatchedBy(func(msgs []Message) bool {
		return len(msgs) == 3 && msgs[2].Role == RoleAssistant && msgs[2].Content == `{"concepts":[]}`
	})).Return(nil)

	result, err := gen.Generate(ctx, testRequest(), "")

	require.NoError(t, err)
	assert.JSONEq(t, `{"concepts":[]}`, string(result.Content))
	assert.Equal(t, "chatcmpl-1", result.ContinuationID)
	threads.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	api.AssertExpectations(t)
	threads.AssertExpectations(t)
}

func TestGenerator_Generate_ContinuesThread(t *testing.T) {
	api := new(MockChatAPI)
	threads := new(MockThreadStore)
	gen := NewGenerator(api, threads, DefaultModelConfig())
	ctx := context.Background()

	history := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: `{"blocks":[]}`},
	}
	threads.On("Load", ctx, "thr-old").Return(history, nil)
	api.On("CreateChatCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return len(req.Messages) == 4 && req.Messages[0].Content == "sys" && req.Messages[3].Content == "shorter please"
	})).Return(chatReply("", `{"blocks":[]}`), nil)
	threads.On("Save", ctx, "thr_fixed", mock.Anything).Return(nil)

	gen.newID = func() string { return "thr_fixed" }
	result, err := gen.Generate(ctx, GenerateRequest{
		SchemaName: "blocks",
		Schema:     json.RawMessage(`{"type":"object"}`),
		Messages:   []Message{{Role: RoleUser, Content: "shorter please"}},
	}, "thr-old")

	require.NoError(t, err)
	assert.Equal(t, "thr_fixed", result.ContinuationID)
	api.AssertExpectations(t)
	threads.AssertExpectations(t)
}

func TestGenerator_Generate_ExpiredThread(t *testing.T) {
	api := new(MockChatAPI)
	threads := new(MockThreadStore)
	gen := NewGenerator(api, threads, DefaultModelConfig())
	ctx := context.Background()

	threads.On("Load", ctx, "thr-gone").Return(nil, domain.ErrThreadExpired)

	result, err := gen.Generate(ctx, testRequest(), "thr-gone")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrThreadExpired)
	assert.True(t, domain.HasCode(err, domain.ErrCodeExternalService))
	api.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
}

func TestGenerator_Generate_MalformedReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply openai.ChatCompletionResponse
	}{
		{"NoChoices", openai.ChatCompletionResponse{ID: "x"}},
		{"Empty", chatReply("x", "   ")},
		{"NotJSON", chatReply("x", "Sure! Here are the concepts")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(MockChatAPI)
			gen := NewGenerator(api, nil, DefaultModelConfig())
			ctx := context.Background()
			api.On("CreateChatCompletion", ctx, mock.Anything).Return(tt.reply, nil)

			result, err := gen.Generate(ctx, testRequest(), "")

			assert.Nil(t, result)
			assert.ErrorIs(t, err, domain.ErrMalformedReply)
			assert.True(t, domain.HasCode(err, domain.ErrCodeExternalService))
		})
	}
}

func TestGenerator_Generate_APIError(t *testing.T) {
	api := new(MockChatAPI)
	gen := NewGenerator(api, nil, DefaultModelConfig())
	ctx := context.Background()
	apiErr := errors.New("503 service unavailable")
	api.On("CreateChatCompletion", ctx, mock.Anything).Return(openai.ChatCompletionResponse{}, apiErr)

	_, err := gen.Generate(ctx, testRequest(), "")

	assert.ErrorIs(t, err, apiErr)
	assert.True(t, domain.HasCode(err, domain.ErrCodeExternalService))
}

func TestGenerator_Generate_WithoutThreadStore(t *testing.T) {
	api := new(MockChatAPI)
	gen := NewGenerator(api, nil, DefaultModelConfig())
	ctx := context.Background()
	api.On("CreateChatCompletion", ctx, mock.Anything).Return(chatReply("chatcmpl-9", `{}`), nil)

	result, err := gen.Generate(ctx, testRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-9", result.ContinuationID)

	_, err = gen.Generate(ctx, testRequest(), "chatcmpl-9")
	assert.ErrorIs(t, err, domain.ErrThreadExpired)
}

func TestGenerator_Generate_WithoutThreadStoreIssuesLocalID(t *testing.T) {
	api := new(MockChatAPI)
	gen := NewGenerator(api, nil, DefaultModelConfig())
	gen.newID = func() string { return "thr_local" }
	api.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(chatReply("", `{}`), nil)

	result, err := gen.Generate(context.Background(), testRequest(), "")

	require.NoError(t, err)
	assert.Equal(t, "thr_local", result.ContinuationID)
}

func TestGenerator_Generate_RejectsIncompleteRequest(t *testing.T) {
	gen := NewGenerator(new(MockChatAPI), nil, DefaultModelConfig())

	_, err := gen.Generate(context.Background(), GenerateRequest{SchemaName: "x", Schema: json.RawMessage(`{}`)}, "")
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	req := testRequest()
	req.Schema = nil
	_, err = gen.Generate(context.Background(), req, "")
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestImageGenerator_GenerateImage(t *testing.T) {
	api := new(MockImageAPI)
	gen := NewImageGenerator(api, DefaultModelConfig())
	ctx := context.Background()
	png := []byte{0x89, 'P', 'N', 'G'}

	api.On("CreateImage", ctx, mock.MatchedBy(func(req openai.ImageRequest) bool {
		return req.Prompt == "diagram of a cell" &&
			req.ResponseFormat == openai.CreateImageResponseFormatB64JSON &&
			req.Model == DefaultImageModel
	})).Return(openai.ImageResponse{
		Data: []openai.ImageResponseDataInner{{B64JSON: base64.StdEncoding.EncodeToString(png)}},
	}, nil)

	img, err := gen.GenerateImage(ctx, "diagram of a cell")

	require.NoError(t, err)
	assert.Equal(t, png, img)
	api.AssertExpectations(t)
}

func TestImageGenerator_GenerateImage_Failures(t *testing.T) {
	api := new(MockImageAPI)
	gen := NewImageGenerator(api, DefaultModelConfig())
	ctx := context.Background()

	_, err := gen.GenerateImage(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	api.On("CreateImage", ctx, mock.Anything).Return(openai.ImageResponse{}, nil).Once()
	_, err = gen.GenerateImage(ctx, "prompt")
	assert.True(t, domain.HasCode(err, domain.ErrCodeExternalService))
}
