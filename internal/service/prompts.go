package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/openai"
)

const (
	conceptSchemaName  = "concept_extraction"
	relationSchemaName = "relation_suggestions"
	blocksSchemaName   = "lesson_blocks"
)

func stringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func enumSchema(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func arraySchema(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func mustSchema(schema map[string]any) json.RawMessage {
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return raw
}

func relationTypeNames() []string {
	types := domain.AllRelationTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

var (
	conceptSchema = mustSchema(objectSchema(map[string]any{
		"concepts": arraySchema(objectSchema(map[string]any{
			"term":       stringSchema(),
			"definition": stringSchema(),
		}, "term", "definition")),
	}, "concepts"))

	relationSchema = mustSchema(objectSchema(map[string]any{
		"suggestions": arraySchema(objectSchema(map[string]any{
			"candidate_page_id": map[string]any{"type": "integer"},
			"anchors": arraySchema(objectSchema(map[string]any{
				"block_id":      map[string]any{"type": "integer"},
				"mention_text":  stringSchema(),
				"relation_type": enumSchema(relationTypeNames()...),
				"explanation":   stringSchema(),
			}, "block_id", "mention_text", "relation_type", "explanation")),
		}, "candidate_page_id", "anchors")),
	}, "suggestions"))

	blocksSchema = mustSchema(objectSchema(map[string]any{
		"blocks": arraySchema(objectSchema(map[string]any{
			"type":     enumSchema(string(domain.BlockTypeText), string(domain.BlockTypeCode), string(domain.BlockTypeImageSuggestion)),
			"markdown": stringSchema(),
			"language": stringSchema(),
			"code":     stringSchema(),
			"prompt":   stringSchema(),
			"reason":   stringSchema(),
		}, "type", "markdown", "language", "code", "prompt", "reason")),
	}, "blocks"))
)

func audienceLines(cfg domain.AIConfig) string {
	var b strings.Builder
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}
	fmt.Fprintf(&b, "Write in language: %s.\n", lang)
	if cfg.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s.\n", cfg.TargetAudience)
	}
	if cfg.TargetLevel != "" {
		fmt.Fprintf(&b, "Target level: %s.\n", cfg.TargetLevel)
	}
	return b.String()
}

func conceptMessages(cfg domain.AIConfig, title string, texts []TextBlock, maxTerms, maxDefinition int) []openai.Message {
	system := fmt.Sprintf(`You build glossaries for lessons.
Extract at most %d key concepts a learner must know from the lesson below.
Each definition is one sentence of at most %d characters.
Use terms exactly as they appear in the lesson. Do not repeat a term.
%s`, maxTerms, maxDefinition, audienceLines(cfg))

	var body strings.Builder
	fmt.Fprintf(&body, "Lesson: %s\n\n", title)
	for i, t := range texts {
		if i > 0 {
			body.WriteString(CompiledSeparator)
		}
		body.WriteString(t.Markdown)
	}

	return []openai.Message{
		{Role: openai.RoleSystem, Content: system},
		{Role: openai.RoleUser, Content: body.String()},
	}
}

type relationCandidatePrompt struct {
	PageID     int64   `json:"page_id"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

func relationMessages(cfg domain.AIConfig, title string, texts []TextBlock, candidates []domain.SimilarPage, allowed []domain.RelationType) ([]openai.Message, error) {
	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = string(t)
	}

	system := fmt.Sprintf(`You link lessons of a course together.
For every candidate lesson, return one suggestion with its candidate_page_id and 1 to 3 anchors.
An anchor names a block_id of the origin lesson and a mention_text copied character for character from that block's markdown.
relation_type must be one of: %s.
Explanations are one short sentence.
%s`, strings.Join(names, ", "), audienceLines(cfg))

	prompts := make([]relationCandidatePrompt, len(candidates))
	for i, c := range candidates {
		prompts[i] = relationCandidatePrompt{PageID: c.PageID, Title: c.Title, Summary: c.Summary, Similarity: c.Similarity}
	}
	payload, err := json.Marshal(map[string]any{
		"origin_title":  title,
		"origin_blocks": texts,
		"candidates":    prompts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode relation prompt: %w", err)
	}

	return []openai.Message{
		{Role: openai.RoleSystem, Content: system},
		{Role: openai.RoleUser, Content: string(payload)},
	}, nil
}

func regenerationSystemPrompt(cfg domain.AIConfig) string {
	return fmt.Sprintf(`You write lesson pages as an ordered list of blocks.
Block types: TEXT (markdown), CODE (language and code), IMAGE_SUGGESTION (prompt and reason for an illustration).
Never place two TEXT blocks next to each other. Merge consecutive text into one TEXT block and separate sections with markdown headers.
Leave fields that do not apply to a block type empty.
%s`, audienceLines(cfg))
}
