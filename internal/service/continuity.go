package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/openai"
)

// RegenerationRequest is the prompt chosen for a regeneration call
type RegenerationRequest struct {
	Messages       []openai.Message
	ContinuationID string
	// Fresh is set when the current blocks are sent in full and no thread is continued
	Fresh bool
}

type blockPrompt struct {
	Type     domain.BlockType `json:"type"`
	Markdown string           `json:"markdown,omitempty"`
	Language string           `json:"language,omitempty"`
	Code     string           `json:"code,omitempty"`
	Prompt   string           `json:"prompt,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

func toBlockPrompt(c domain.BlockContent) blockPrompt {
	switch v := c.(type) {
	case domain.TextContent:
		return blockPrompt{Type: v.Type(), Markdown: v.Markdown}
	case domain.CodeContent:
		return blockPrompt{Type: v.Type(), Language: v.Language, Code: v.Code}
	case domain.ImageSuggestionContent:
		return blockPrompt{Type: v.Type(), Prompt: v.Prompt, Reason: v.Reason}
	}
	return blockPrompt{}
}

// BuildRegenerationRequest continues the page's last generation thread unless
// the page was edited by hand since, or was never generated. A fresh request
// carries the full current block list instead of a continuation id.
func BuildRegenerationRequest(page *domain.Page, module *domain.Module, instruction string) (RegenerationRequest, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return RegenerationRequest{}, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("regeneration instruction is required"))
	}

	var cfg domain.AIConfig
	if module != nil {
		cfg = module.AIConfig
	}
	system := openai.Message{Role: openai.RoleSystem, Content: regenerationSystemPrompt(cfg)}

	if !page.HasManualEdits && page.LastGenerationThreadID != "" {
		return RegenerationRequest{
			Messages: []openai.Message{
				system,
				{Role: openai.RoleUser, Content: instruction},
			},
			ContinuationID: page.LastGenerationThreadID,
		}, nil
	}

	ordered := page.OrderedBlocks()
	current := make([]blockPrompt, len(ordered))
	for i, b := range ordered {
		current[i] = toBlockPrompt(b.Content)
	}
	payload, err := json.Marshal(map[string]any{
		"title":  page.Title,
		"blocks": current,
	})
	if err != nil {
		return RegenerationRequest{}, fmt.Errorf("failed to encode current blocks: %w", err)
	}

	return RegenerationRequest{
		Messages: []openai.Message{
			system,
			{Role: openai.RoleUser, Content: "Current lesson:\n" + string(payload)},
			{Role: openai.RoleUser, Content: instruction},
		},
		Fresh: true,
	}, nil
}
