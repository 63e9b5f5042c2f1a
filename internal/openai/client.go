package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = domain.NewDomainError(domain.ErrCodeValidation, "text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoEmbeddingData is returned when the API answers without vectors
	ErrNoEmbeddingData = errors.New("no embedding data returned")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Config configures the SDK client shared by all gateways
type Config struct {
	APIKey  string
	BaseURL string
}

// NewSDKClient builds the go-openai client. BaseURL is optional.
func NewSDKClient(cfg Config) *openai.Client {
	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(sdkCfg)
}

// OpenAIAdapter calls the embeddings endpoint
type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIAdapter(client *openai.Client, models ModelConfig) *OpenAIAdapter {
	model := openai.EmbeddingModel(models.EmbeddingModel)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client:     client,
		model:      model,
		dimensions: models.dimensions(),
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	}
	// ada-002 rejects the dimensions parameter
	if a.model != openai.AdaEmbeddingV2 {
		req.Dimensions = a.dimensions
	}

	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}

	return resp.Data[0].Embedding, nil
}

// Client is the embedding gateway
type Client struct {
	api        EmbeddingAPI
	dimensions int
	metrics    *metrics.Metrics
}

// NewClient creates an embedding gateway over api
func NewClient(api EmbeddingAPI, models ModelConfig) *Client {
	return &Client{
		api:        api,
		dimensions: models.dimensions(),
	}
}

// NewClientWithConfig creates an embedding gateway backed by the OpenAI API
func NewClientWithConfig(cfg Config, models ModelConfig) *Client {
	return NewClient(NewOpenAIAdapter(NewSDKClient(cfg), models), models)
}

// WithMetrics records every embedding call on m
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// GenerateEmbedding generates an embedding for the given text. Upstream
// failures, empty answers and wrong dimensionality are external service errors.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err == nil && len(embedding) != c.dimensions {
		err = fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), c.dimensions)
	}
	c.metrics.RecordExternalCall("embed", err, time.Since(start))
	if err != nil {
		return nil, domain.NewExternalServiceError("create embedding", err)
	}

	return embedding, nil
}
