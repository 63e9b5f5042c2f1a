package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
)

// ImageAPI is the subset of the SDK used for rendering images
type ImageAPI interface {
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

// ImageGenerator renders image prompts to PNG bytes
type ImageGenerator struct {
	api     ImageAPI
	models  ModelConfig
	metrics *metrics.Metrics
}

func NewImageGenerator(api ImageAPI, models ModelConfig) *ImageGenerator {
	return &ImageGenerator{api: api, models: models}
}

// WithMetrics records every image call on m
func (g *ImageGenerator) WithMetrics(m *metrics.Metrics) *ImageGenerator {
	g.metrics = m
	return g
}

// GenerateImage renders prompt and returns the decoded image bytes
func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("image prompt is empty"))
	}

	model, size := g.models.ImageModel, g.models.ImageSize
	if model == "" {
		model = DefaultImageModel
	}
	if size == "" {
		size = DefaultImageSize
	}

	start := time.Now()
	resp, err := g.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err == nil && (len(resp.Data) == 0 || resp.Data[0].B64JSON == "") {
		err = fmt.Errorf("no image data returned")
	}
	g.metrics.RecordExternalCall("image", err, time.Since(start))
	if err != nil {
		return nil, domain.NewExternalServiceError("generate image", err)
	}

	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, domain.NewExternalServiceError("decode image", err)
	}
	return img, nil
}
