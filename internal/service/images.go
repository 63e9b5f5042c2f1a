package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

const imageContentType = "image/png"

// ImageRenderer turns a prompt into PNG bytes
type ImageRenderer interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// ObjectStore stores rendered images and hands out download URLs
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// RenderedImage is the stored location of a rendered image suggestion
type RenderedImage struct {
	StorageKey  string
	DownloadURL string
}

// ImageService renders IMAGE_SUGGESTION blocks into stored images
type ImageService struct {
	pages    PageReader
	renderer ImageRenderer
	store    ObjectStore
	log      *logger.Logger
}

func NewImageService(pages PageReader, renderer ImageRenderer, store ObjectStore, log *logger.Logger) *ImageService {
	return &ImageService{
		pages:    pages,
		renderer: renderer,
		store:    store,
		log:      log.With("service", "ImageService"),
	}
}

// ImageKey is the storage key of a block's rendered image
func ImageKey(pageID, blockID int64) string {
	return fmt.Sprintf("pages/%d/blocks/%d.png", pageID, blockID)
}

// imageMetadata ties a stored object back to its block
func imageMetadata(pageID, blockID int64) map[string]string {
	return map[string]string{
		"page-id":  strconv.FormatInt(pageID, 10),
		"block-id": strconv.FormatInt(blockID, 10),
	}
}

// RenderImageSuggestion generates the image described by an IMAGE_SUGGESTION
// block and uploads it. Rendering again overwrites the previous image.
func (s *ImageService) RenderImageSuggestion(ctx context.Context, pageID, blockID int64) (*RenderedImage, error) {
	ctx, span := telemetry.StartSpan(ctx, "ImageService.RenderImageSuggestion", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "render_image",
	})
	defer span.End()

	page, err := s.pages.GetWithBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}
	block, ok := page.FindBlock(blockID)
	if !ok {
		return nil, domain.ErrBlockNotFound.Wrap(fmt.Errorf("block %d on page %d", blockID, pageID))
	}
	suggestion, ok := block.Content.(domain.ImageSuggestionContent)
	if !ok {
		return nil, domain.ErrNotImageSuggestion.Wrap(fmt.Errorf("block %d is %s", blockID, block.Type()))
	}
	if strings.TrimSpace(suggestion.Prompt) == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("block %d has no image prompt", blockID))
	}

	png, err := s.renderer.GenerateImage(ctx, suggestion.Prompt)
	if err != nil {
		return nil, err
	}

	key := ImageKey(pageID, blockID)
	if err := s.store.PutObject(ctx, key, png, imageContentType, imageMetadata(pageID, blockID)); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	url, err := s.store.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign image url: %w", err)
	}

	s.log.Info("image rendered", "page_id", pageID, "block_id", blockID, "bytes", len(png))
	return &RenderedImage{StorageKey: key, DownloadURL: url}, nil
}
