package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/cloo-solutions/lessonlens/internal/openai"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

// RegenerationResult is a generated block list not yet persisted
type RegenerationResult struct {
	Blocks         []domain.BlockContent
	ContinuationID string
	Continued      bool
}

type blocksReply struct {
	Blocks []blockPrompt `json:"blocks"`
}

// RegenerationService regenerates page content through the generative gateway
type RegenerationService struct {
	pages     PageReader
	modules   ModuleReader
	generator Generator
	txRunner  TxRunner
	uuidGen   UUIDGenerator
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewRegenerationService(
	pages PageReader,
	modules ModuleReader,
	generator Generator,
	txRunner TxRunner,
	m *metrics.Metrics,
	log *logger.Logger,
) *RegenerationService {
	return &RegenerationService{
		pages:     pages,
		modules:   modules,
		generator: generator,
		txRunner:  txRunner,
		uuidGen:   &DefaultUUIDGenerator{},
		metrics:   m,
		log:       log.With("service", "RegenerationService"),
	}
}

// NewRegenerationServiceWithUUID creates a service with a custom UUID generator (for testing)
func NewRegenerationServiceWithUUID(
	pages PageReader,
	modules ModuleReader,
	generator Generator,
	txRunner TxRunner,
	uuidGen UUIDGenerator,
	m *metrics.Metrics,
	log *logger.Logger,
) *RegenerationService {
	s := NewRegenerationService(pages, modules, generator, txRunner, m, log)
	s.uuidGen = uuidGen
	return s
}

// Regenerate produces a new block list for the page. When the reply places two
// TEXT blocks next to each other the result is still returned, together with
// ErrConsecutiveTextBlocks, for review.
func (s *RegenerationService) Regenerate(ctx context.Context, pageID int64, instruction string) (*RegenerationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RegenerationService.Regenerate", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "regenerate",
	})
	defer span.End()

	page, err := s.pages.GetWithBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}
	module, err := s.modules.GetByID(ctx, page.ModuleID)
	if err != nil {
		return nil, err
	}

	req, err := BuildRegenerationRequest(page, module, instruction)
	if err != nil {
		return nil, err
	}

	res, err := s.generate(ctx, req)
	if errors.Is(err, domain.ErrThreadExpired) && !req.Fresh {
		s.log.Warn("generation thread expired, regenerating from current blocks",
			"page_id", pageID,
			"thread_id", req.ContinuationID,
		)
		stale := *page
		stale.LastGenerationThreadID = ""
		if req, err = BuildRegenerationRequest(&stale, module, instruction); err != nil {
			return nil, err
		}
		res, err = s.generate(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	blocks, err := parseBlocksReply(res.Content)
	if err != nil {
		return nil, err
	}

	result := &RegenerationResult{
		Blocks:         blocks,
		ContinuationID: res.ContinuationID,
		Continued:      !req.Fresh,
	}
	if err := domain.CheckNoConsecutiveText(blocks); err != nil {
		s.log.Warn("regenerated content violates block structure",
			"page_id", pageID,
			"error", err,
		)
		return result, err
	}
	return result, nil
}

func (s *RegenerationService) generate(ctx context.Context, req RegenerationRequest) (*openai.GenerateResult, error) {
	return s.generator.Generate(ctx, openai.GenerateRequest{
		SchemaName: blocksSchemaName,
		Schema:     blocksSchema,
		Messages:   req.Messages,
	}, req.ContinuationID)
}

// Apply stores a regeneration result as the page's content, records its thread
// and queues the page for reprocessing.
func (s *RegenerationService) Apply(ctx context.Context, pageID int64, result *RegenerationResult) ([]domain.Block, error) {
	ctx, span := telemetry.StartSpan(ctx, "RegenerationService.Apply", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "apply_regeneration",
	})
	defer span.End()

	if result == nil || len(result.Blocks) == 0 {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("regeneration result has no blocks"))
	}
	if result.ContinuationID == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("regeneration result has no continuation id"))
	}
	if err := domain.CheckNoConsecutiveText(result.Blocks); err != nil {
		return nil, err
	}

	var (
		stored []domain.Block
		queued []*domain.QueuedJob
	)
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		blocks, err := repos.Pages().ReplaceBlocks(ctx, pageID, result.Blocks)
		if err != nil {
			return err
		}
		if err := repos.Pages().SaveGeneration(ctx, pageID, result.ContinuationID); err != nil {
			return err
		}
		jobs, err := enqueuePageJobs(ctx, repos.Jobs(), s.uuidGen, pageID)
		if err != nil {
			return err
		}
		stored, queued = blocks, jobs
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordEnqueued(s.metrics, queued)
	s.log.Info("regenerated content applied",
		"page_id", pageID,
		"blocks", len(stored),
		"thread_id", result.ContinuationID,
	)
	return stored, nil
}

func parseBlocksReply(content json.RawMessage) ([]domain.BlockContent, error) {
	var reply blocksReply
	if err := json.Unmarshal(content, &reply); err != nil {
		return nil, domain.ErrMalformedReply.Wrap(err)
	}
	if len(reply.Blocks) == 0 {
		return nil, domain.ErrMalformedReply.Wrap(fmt.Errorf("reply has no blocks"))
	}

	blocks := make([]domain.BlockContent, 0, len(reply.Blocks))
	for i, b := range reply.Blocks {
		switch b.Type {
		case domain.BlockTypeText:
			blocks = append(blocks, domain.TextContent{Markdown: b.Markdown})
		case domain.BlockTypeCode:
			blocks = append(blocks, domain.CodeContent{Language: b.Language, Code: b.Code})
		case domain.BlockTypeImageSuggestion:
			blocks = append(blocks, domain.ImageSuggestionContent{Prompt: b.Prompt, Reason: b.Reason})
		default:
			return nil, domain.ErrMalformedReply.Wrap(fmt.Errorf("block %d has unknown type %q", i, b.Type))
		}
	}
	return blocks, nil
}
