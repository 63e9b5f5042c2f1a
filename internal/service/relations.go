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

const maxAnchorsPerSuggestion = 3

// Anchor violation reasons
const (
	ViolationMentionNotFound = "mention text not found verbatim in block"
	ViolationOutOfScope      = "block outside requested scope"
	ViolationTypeNotAllowed  = "relation type not allowed"
)

// PageRanker ranks the neighbours of a loaded page
type PageRanker interface {
	RankPage(ctx context.Context, page *domain.Page, q NeighborQuery) ([]domain.SimilarPage, error)
}

// RelationRepositoryInterface defines the repository interface for relation persistence
type RelationRepositoryInterface interface {
	Create(ctx context.Context, r *domain.Relation) error
}

// SuggestInput configures a relation suggestion request. Zero values take the
// service defaults; an empty AllowedTypes allows every type and an empty
// BlockIDs scopes to every TEXT block.
type SuggestInput struct {
	PageID        int64
	TopK          int
	MinSimilarity *float64
	AllowedTypes  []domain.RelationType
	BlockIDs      []int64
	OnlyPublished bool
}

// AcceptRelationInput is an anchor chosen for persistence
type AcceptRelationInput struct {
	OriginPageID    int64
	RelatedPageID   int64
	BlockID         int64
	MentionText     string
	RelationType    domain.RelationType
	Explanation     string
	SimilarityScore float64
}

type relationReply struct {
	Suggestions []struct {
		CandidatePageID int64 `json:"candidate_page_id"`
		Anchors         []struct {
			BlockID      int64  `json:"block_id"`
			MentionText  string `json:"mention_text"`
			RelationType string `json:"relation_type"`
			Explanation  string `json:"explanation"`
		} `json:"anchors"`
	} `json:"suggestions"`
}

// RelationService proposes and accepts anchored relations between pages
type RelationService struct {
	pages         PageReader
	modules       ModuleReader
	ranker        PageRanker
	generator     Generator
	relations     RelationRepositoryInterface
	minSimilarity float64
	defaultTopK   int
	metrics       *metrics.Metrics
	log           *logger.Logger
}

func NewRelationService(
	pages PageReader,
	modules ModuleReader,
	ranker PageRanker,
	generator Generator,
	relations RelationRepositoryInterface,
	minSimilarity float64,
	m *metrics.Metrics,
	log *logger.Logger,
) *RelationService {
	return &RelationService{
		pages:         pages,
		modules:       modules,
		ranker:        ranker,
		generator:     generator,
		relations:     relations,
		minSimilarity: minSimilarity,
		defaultTopK:   DefaultTopK,
		metrics:       m,
		log:           log.With("service", "RelationService"),
	}
}

// WithDefaultTopK sets the candidate count used when a request has none
func (s *RelationService) WithDefaultTopK(k int) *RelationService {
	if k > 0 {
		s.defaultTopK = k
	}
	return s
}

// Suggest ranks the page's neighbours and asks the generator to anchor a
// relation to each of them. Anchors that fail validation are returned with
// their Violation set; nothing is persisted.
func (s *RelationService) Suggest(ctx context.Context, in SuggestInput) ([]domain.RelationSuggestion, error) {
	ctx, span := telemetry.StartSpan(ctx, "RelationService.Suggest", telemetry.SpanAttributes{
		PageID:    in.PageID,
		Operation: "suggest_relations",
	})
	defer span.End()

	topK := in.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	if err := domain.ValidateTopK(topK); err != nil {
		return nil, err
	}
	minSim := s.minSimilarity
	if in.MinSimilarity != nil {
		minSim = *in.MinSimilarity
	}
	if err := domain.ValidateMinSimilarity(minSim); err != nil {
		return nil, err
	}
	allowed, err := resolveAllowedTypes(in.AllowedTypes)
	if err != nil {
		return nil, err
	}

	page, err := s.pages.GetWithBlocks(ctx, in.PageID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.ranker.RankPage(ctx, page, NeighborQuery{
		TopK:          topK,
		MinSimilarity: &minSim,
		OnlyPublished: in.OnlyPublished,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.RelationSuggestion{}, nil
	}

	texts := TextBlocks(page.Blocks, in.BlockIDs)
	if len(texts) == 0 {
		s.log.Info("no text blocks in scope, skipping relation suggestion", "page_id", page.ID)
		return []domain.RelationSuggestion{}, nil
	}

	module, err := s.modules.GetByID(ctx, page.ModuleID)
	if err != nil {
		return nil, err
	}

	msgs, err := relationMessages(module.AIConfig, page.Title, texts, candidates, allowed)
	if err != nil {
		return nil, err
	}
	res, err := s.generator.Generate(ctx, openai.GenerateRequest{
		SchemaName: relationSchemaName,
		Schema:     relationSchema,
		Messages:   msgs,
	}, "")
	if err != nil {
		return nil, err
	}

	var reply relationReply
	if err := json.Unmarshal(res.Content, &reply); err != nil {
		return nil, domain.ErrMalformedReply.Wrap(err)
	}

	byCandidate := make(map[int64]*domain.RelationSuggestion, len(candidates))
	for _, c := range candidates {
		byCandidate[c.PageID] = &domain.RelationSuggestion{
			CandidatePageID: c.PageID,
			CandidateTitle:  c.Title,
			Similarity:      c.Similarity,
		}
	}

	v := newAnchorValidator(page, texts, allowed)
	answered := make(map[int64]bool, len(candidates))
	for _, sg := range reply.Suggestions {
		suggestion, ok := byCandidate[sg.CandidatePageID]
		if !ok {
			s.log.Warn("dropping suggestion for unknown candidate",
				"page_id", page.ID,
				"candidate_page_id", sg.CandidatePageID,
			)
			continue
		}
		answered[sg.CandidatePageID] = true
		for _, a := range sg.Anchors {
			if len(suggestion.Anchors) >= maxAnchorsPerSuggestion {
				break
			}
			anchor := v.check(domain.Anchor{
				BlockID:      a.BlockID,
				MentionText:  a.MentionText,
				RelationType: domain.RelationType(a.RelationType),
				Explanation:  strings.TrimSpace(a.Explanation),
			})
			if !anchor.Valid() && s.metrics != nil {
				s.metrics.AnchorViolations.Inc()
			}
			suggestion.Anchors = append(suggestion.Anchors, anchor)
		}
	}

	suggestions := make([]domain.RelationSuggestion, 0, len(answered))
	for _, c := range candidates {
		if answered[c.PageID] {
			suggestions = append(suggestions, *byCandidate[c.PageID])
		}
	}
	if s.metrics != nil {
		s.metrics.SuggestionsReturned.Observe(float64(len(suggestions)))
	}

	return suggestions, nil
}

// AcceptRelation re-checks the anchor against the current page and stores the
// relation. An existing relation for the pair is a conflict.
func (s *RelationService) AcceptRelation(ctx context.Context, in AcceptRelationInput) (*domain.Relation, error) {
	ctx, span := telemetry.StartSpan(ctx, "RelationService.AcceptRelation", telemetry.SpanAttributes{
		PageID:    in.OriginPageID,
		Operation: "accept_relation",
	})
	defer span.End()

	rel := &domain.Relation{
		OriginPageID:    in.OriginPageID,
		RelatedPageID:   in.RelatedPageID,
		SimilarityScore: in.SimilarityScore,
		RelationType:    in.RelationType,
		MentionText:     in.MentionText,
		Explanation:     strings.TrimSpace(in.Explanation),
	}
	if err := domain.ValidateRelation(rel); err != nil {
		return nil, err
	}

	origin, err := s.pages.GetWithBlocks(ctx, in.OriginPageID)
	if err != nil {
		return nil, err
	}
	block, ok := origin.FindBlock(in.BlockID)
	if !ok {
		return nil, domain.ErrBlockNotFound.Wrap(fmt.Errorf("block %d on page %d", in.BlockID, in.OriginPageID))
	}
	text, isText := block.Content.(domain.TextContent)
	if !isText || !strings.Contains(text.Markdown, in.MentionText) {
		return nil, domain.ErrAnchorNotFound.Wrap(fmt.Errorf("%q in block %d", in.MentionText, in.BlockID))
	}

	if _, err := s.pages.GetWithBlocks(ctx, in.RelatedPageID); err != nil {
		return nil, err
	}

	if err := s.relations.Create(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

func resolveAllowedTypes(types []domain.RelationType) ([]domain.RelationType, error) {
	if len(types) == 0 {
		return domain.AllRelationTypes(), nil
	}
	seen := make(map[domain.RelationType]bool, len(types))
	out := make([]domain.RelationType, 0, len(types))
	for _, t := range types {
		if !domain.IsValidRelationType(t) {
			return nil, domain.ErrInvalidRelationType.Wrap(fmt.Errorf("%q", t))
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

type anchorValidator struct {
	page    *domain.Page
	inScope map[int64]bool
	allowed map[domain.RelationType]bool
}

func newAnchorValidator(page *domain.Page, scoped []TextBlock, allowed []domain.RelationType) *anchorValidator {
	v := &anchorValidator{
		page:    page,
		inScope: make(map[int64]bool, len(scoped)),
		allowed: make(map[domain.RelationType]bool, len(allowed)),
	}
	for _, t := range scoped {
		v.inScope[t.BlockID] = true
	}
	for _, t := range allowed {
		v.allowed[t] = true
	}
	return v
}

// check sets a.Violation to the first failed constraint
func (v *anchorValidator) check(a domain.Anchor) domain.Anchor {
	block, ok := v.page.FindBlock(a.BlockID)
	text, isText := domain.TextContent{}, false
	if ok {
		text, isText = block.Content.(domain.TextContent)
	}
	switch {
	case !ok || !isText || a.MentionText == "" || !strings.Contains(text.Markdown, a.MentionText):
		a.Violation = ViolationMentionNotFound
	case !v.inScope[a.BlockID]:
		a.Violation = ViolationOutOfScope
	case !v.allowed[a.RelationType]:
		a.Violation = ViolationTypeNotAllowed
	}
	return a
}
