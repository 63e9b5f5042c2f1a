package service

import (
	"strings"

	"github.com/cloo-solutions/lessonlens/internal/domain"
)

// CompiledSeparator joins the fragments of compiled page text
const CompiledSeparator = "\n\n---\n\n"

// CompileContent turns a page's blocks into the plain text used for embedding
// and concept extraction. TEXT contributes its trimmed markdown, CODE a
// "Code (<language>):" header and the trimmed code, IMAGE_SUGGESTION nothing.
// An empty result means there is nothing to analyze.
func CompileContent(blocks []domain.Block) string {
	ordered := domain.SortBlocks(blocks)

	fragments := make([]string, 0, len(ordered))
	for _, b := range ordered {
		switch c := b.Content.(type) {
		case domain.TextContent:
			if md := strings.TrimSpace(c.Markdown); md != "" {
				fragments = append(fragments, md)
			}
		case domain.CodeContent:
			code := strings.TrimSpace(c.Code)
			if code == "" {
				continue
			}
			lang := strings.TrimSpace(c.Language)
			if lang == "" {
				lang = "code"
			}
			fragments = append(fragments, "Code ("+lang+"):\n"+code)
		case domain.ImageSuggestionContent:
			// not part of the compiled text
		}
	}

	return strings.Join(fragments, CompiledSeparator)
}

// TextBlock is a TEXT block's id and trimmed markdown
type TextBlock struct {
	BlockID  int64  `json:"block_id"`
	Markdown string `json:"markdown"`
}

// TextBlocks returns the non-empty TEXT blocks in order. A non-empty scope
// keeps only the listed block ids.
func TextBlocks(blocks []domain.Block, scope []int64) []TextBlock {
	var allowed map[int64]bool
	if len(scope) > 0 {
		allowed = make(map[int64]bool, len(scope))
		for _, id := range scope {
			allowed[id] = true
		}
	}

	var out []TextBlock
	for _, b := range domain.SortBlocks(blocks) {
		c, ok := b.Content.(domain.TextContent)
		if !ok {
			continue
		}
		if allowed != nil && !allowed[b.ID] {
			continue
		}
		if md := strings.TrimSpace(c.Markdown); md != "" {
			out = append(out, TextBlock{BlockID: b.ID, Markdown: md})
		}
	}
	return out
}
