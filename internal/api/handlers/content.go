package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/go-chi/chi/v5"
)

const timeFormat = "2006-01-02T15:04:05Z"

// BlockPayload is the wire form of a block's content. Only the fields of the
// tagged variant are set.
type BlockPayload struct {
	Type     string `json:"type"`
	Markdown string `json:"markdown,omitempty"`
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type BlockResponse struct {
	ID         int64 `json:"id"`
	OrderIndex int   `json:"order_index"`
	BlockPayload
}

type JobResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	PageID      int64   `json:"page_id"`
	Status      string  `json:"status"`
	Attempts    int32   `json:"attempts"`
	Error       string  `json:"error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	AvailableAt string  `json:"available_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

func (p BlockPayload) toContent() (domain.BlockContent, error) {
	switch domain.BlockType(p.Type) {
	case domain.BlockTypeText:
		return domain.TextContent{Markdown: p.Markdown}, nil
	case domain.BlockTypeCode:
		return domain.CodeContent{Language: p.Language, Code: p.Code}, nil
	case domain.BlockTypeImageSuggestion:
		return domain.ImageSuggestionContent{Prompt: p.Prompt, Reason: p.Reason}, nil
	}
	return nil, domain.ErrInvalidBlockType.Wrap(fmt.Errorf("%q", p.Type))
}

func payloadsToContents(payloads []BlockPayload) ([]domain.BlockContent, error) {
	contents := make([]domain.BlockContent, 0, len(payloads))
	for i, p := range payloads {
		c, err := p.toContent()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		contents = append(contents, c)
	}
	return contents, nil
}

func contentToPayload(c domain.BlockContent) BlockPayload {
	switch v := c.(type) {
	case domain.TextContent:
		return BlockPayload{Type: string(v.Type()), Markdown: v.Markdown}
	case domain.CodeContent:
		return BlockPayload{Type: string(v.Type()), Language: v.Language, Code: v.Code}
	case domain.ImageSuggestionContent:
		return BlockPayload{Type: string(v.Type()), Prompt: v.Prompt, Reason: v.Reason}
	}
	return BlockPayload{}
}

func contentsToPayloads(contents []domain.BlockContent) []BlockPayload {
	out := make([]BlockPayload, 0, len(contents))
	for _, c := range contents {
		out = append(out, contentToPayload(c))
	}
	return out
}

func blocksToResponse(blocks []domain.Block) []BlockResponse {
	out := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, BlockResponse{
			ID:           b.ID,
			OrderIndex:   b.OrderIndex,
			BlockPayload: contentToPayload(b.Content),
		})
	}
	return out
}

func jobToResponse(j *domain.QueuedJob) *JobResponse {
	resp := &JobResponse{
		ID:          j.ID,
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.UTC().Format(timeFormat),
		AvailableAt: j.AvailableAt.UTC().Format(timeFormat),
	}
	if j.Job != nil {
		resp.Kind = string(j.Job.Kind())
		resp.PageID = j.Job.TargetPageID()
	}
	if j.ProcessedAt != nil {
		processed := j.ProcessedAt.UTC().Format(timeFormat)
		resp.ProcessedAt = &processed
	}
	return resp
}

func jobsToResponse(jobs []*domain.QueuedJob) []*JobResponse {
	out := make([]*JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToResponse(j))
	}
	return out
}

// int64Param parses a positive integer URL parameter
func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
