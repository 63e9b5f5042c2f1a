package openai

import (
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions matches the vector(1536) column
	DefaultEmbeddingDimensions = 1536
	// DefaultResponsesModel is used for structured generation
	DefaultResponsesModel = openai.GPT4oMini
	// DefaultImageModel renders IMAGE_SUGGESTION blocks
	DefaultImageModel = openai.CreateImageModelDallE3
	// DefaultImageSize is the rendered image size
	DefaultImageSize = openai.CreateImageSize1024x1024
)

// ModelConfig names the models used by the gateways. It is a value type;
// the With* methods return modified copies and never mutate the receiver.
type ModelConfig struct {
	ResponsesModel      string
	EmbeddingModel      string
	EmbeddingDimensions int
	ImageModel          string
	ImageSize           string
}

// DefaultModelConfig returns the production defaults
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ResponsesModel:      DefaultResponsesModel,
		EmbeddingModel:      string(DefaultEmbeddingModel),
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		ImageModel:          DefaultImageModel,
		ImageSize:           DefaultImageSize,
	}
}

func (c ModelConfig) WithResponsesModel(model string) ModelConfig {
	if model != "" {
		c.ResponsesModel = model
	}
	return c
}

func (c ModelConfig) WithEmbeddingModel(model string, dimensions int) ModelConfig {
	if model != "" {
		c.EmbeddingModel = model
	}
	if dimensions > 0 {
		c.EmbeddingDimensions = dimensions
	}
	return c
}

func (c ModelConfig) WithImageModel(model, size string) ModelConfig {
	if model != "" {
		c.ImageModel = model
	}
	if size != "" {
		c.ImageSize = size
	}
	return c
}

func (c ModelConfig) dimensions() int {
	if c.EmbeddingDimensions <= 0 {
		return DefaultEmbeddingDimensions
	}
	return c.EmbeddingDimensions
}
