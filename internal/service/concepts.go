package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/cloo-solutions/lessonlens/internal/openai"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

const DefaultConceptMaxTerms = 6

// Generator defines the interface for structured generation
type Generator interface {
	Generate(ctx context.Context, req openai.GenerateRequest, continuationID string) (*openai.GenerateResult, error)
}

// ConceptRepositoryInterface defines the repository interface for concept persistence
type ConceptRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Concept) error
}

// ConceptPageRepository defines the page access used by concept extraction
type ConceptPageRepository interface {
	PageReader
	MarkConceptsProcessed(ctx context.Context, pageID int64) error
}

// ConceptConfig bounds extraction
type ConceptConfig struct {
	MaxTerms           int
	DefinitionMaxChars int
}

// SkippedTerm is an extracted term that was not stored
type SkippedTerm struct {
	Term   string
	Reason string
}

// ConceptExtractionResult reports what an extraction stored
type ConceptExtractionResult struct {
	Created []*domain.Concept
	Skipped []SkippedTerm
}

type conceptReply struct {
	Concepts []struct {
		Term       string `json:"term"`
		Definition string `json:"definition"`
	} `json:"concepts"`
}

// ConceptService extracts glossary concepts from page text
type ConceptService struct {
	pages     ConceptPageRepository
	modules   ModuleReader
	concepts  ConceptRepositoryInterface
	generator Generator
	cfg       ConceptConfig
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewConceptService(
	pages ConceptPageRepository,
	modules ModuleReader,
	concepts ConceptRepositoryInterface,
	generator Generator,
	cfg ConceptConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *ConceptService {
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = DefaultConceptMaxTerms
	}
	if cfg.DefinitionMaxChars <= 0 {
		cfg.DefinitionMaxChars = domain.DefaultDefinitionMaxChars
	}
	return &ConceptService{
		pages:     pages,
		modules:   modules,
		concepts:  concepts,
		generator: generator,
		cfg:       cfg,
		metrics:   m,
		log:       log.With("service", "ConceptService"),
	}
}

// ExtractConcepts asks the generator for the page's key terms and stores the
// new ones. Existing concepts are never removed, so re-running after the
// content shrank keeps terms that are no longer detected.
func (s *ConceptService) ExtractConcepts(ctx context.Context, pageID int64) (*ConceptExtractionResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConceptService.ExtractConcepts", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "extract_concepts",
	})
	defer span.End()

	page, err := s.pages.GetWithBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if len(page.Blocks) == 0 {
		return nil, domain.ErrEmptyContent.Wrap(fmt.Errorf("page %d has no blocks", pageID))
	}

	texts := TextBlocks(page.Blocks, nil)
	if len(texts) == 0 {
		return nil, domain.ErrEmptyContent.Wrap(fmt.Errorf("page %d has no text blocks", pageID))
	}

	module, err := s.modules.GetByID(ctx, page.ModuleID)
	if err != nil {
		return nil, err
	}

	res, err := s.generator.Generate(ctx, openai.GenerateRequest{
		SchemaName: conceptSchemaName,
		Schema:     conceptSchema,
		Messages:   conceptMessages(module.AIConfig, page.Title, texts, s.cfg.MaxTerms, s.cfg.DefinitionMaxChars),
	}, "")
	if err != nil {
		return nil, err
	}

	var reply conceptReply
	if err := json.Unmarshal(res.Content, &reply); err != nil {
		return nil, domain.ErrMalformedReply.Wrap(err)
	}

	result := &ConceptExtractionResult{}
	for i, item := range reply.Concepts {
		term := strings.TrimSpace(item.Term)
		if i >= s.cfg.MaxTerms {
			result.Skipped = append(result.Skipped, SkippedTerm{Term: term, Reason: "over term limit"})
			continue
		}

		concept := &domain.Concept{
			PageID:     pageID,
			Term:       term,
			Definition: strings.TrimSpace(item.Definition),
		}
		if err := domain.ValidateConcept(concept, s.cfg.DefinitionMaxChars); err != nil {
			result.Skipped = append(result.Skipped, SkippedTerm{Term: term, Reason: err.Error()})
			continue
		}

		if err := s.concepts.Create(ctx, concept); err != nil {
			if domain.HasCode(err, domain.ErrCodeConstraintViolation) {
				result.Skipped = append(result.Skipped, SkippedTerm{Term: term, Reason: "already exists"})
				continue
			}
			return nil, err
		}
		result.Created = append(result.Created, concept)
	}

	if err := s.pages.MarkConceptsProcessed(ctx, pageID); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ConceptsCreated.Add(float64(len(result.Created)))
		s.metrics.ConceptsSkipped.Add(float64(len(result.Skipped)))
	}
	s.log.Info("concepts extracted",
		"page_id", pageID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)

	return result, nil
}
