package domain

import (
	"encoding/json"
	"fmt"
)

// BlockType is the tag of a block's content variant
type BlockType string

const (
	BlockTypeText            BlockType = "TEXT"
	BlockTypeCode            BlockType = "CODE"
	BlockTypeImageSuggestion BlockType = "IMAGE_SUGGESTION"
)

// BlockContent is the closed set of block payloads. Only the three variants in
// this file implement it.
type BlockContent interface {
	Type() BlockType
	isBlockContent()
}

// TextContent is a markdown paragraph or section.
type TextContent struct {
	Markdown string `json:"markdown"`
}

// CodeContent is a code listing.
type CodeContent struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ImageSuggestionContent describes an illustration that should be produced.
type ImageSuggestionContent struct {
	Prompt string `json:"prompt"`
	Reason string `json:"reason"`
}

func (TextContent) Type() BlockType            { return BlockTypeText }
func (CodeContent) Type() BlockType            { return BlockTypeCode }
func (ImageSuggestionContent) Type() BlockType { return BlockTypeImageSuggestion }

func (TextContent) isBlockContent()            {}
func (CodeContent) isBlockContent()            {}
func (ImageSuggestionContent) isBlockContent() {}

// Block is one ordered content unit of a page
type Block struct {
	ID         int64
	PageID     int64
	OrderIndex int
	Content    BlockContent
}

// Type returns the block's tag, or "" for a block without content.
func (b *Block) Type() BlockType {
	if b == nil || b.Content == nil {
		return ""
	}
	return b.Content.Type()
}

// EncodeBlockContent returns the tag and JSON body stored for a block.
func EncodeBlockContent(c BlockContent) (BlockType, []byte, error) {
	if c == nil {
		return "", nil, ErrMissingRequiredField
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s block content: %w", c.Type(), err)
	}
	return c.Type(), raw, nil
}

// DecodeBlockContent rebuilds the variant named by t from its JSON body.
func DecodeBlockContent(t BlockType, raw []byte) (BlockContent, error) {
	switch t {
	case BlockTypeText:
		var c TextContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode text block: %w", err)
		}
		return c, nil
	case BlockTypeCode:
		var c CodeContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode code block: %w", err)
		}
		return c, nil
	case BlockTypeImageSuggestion:
		var c ImageSuggestionContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode image suggestion block: %w", err)
		}
		return c, nil
	}
	return nil, ErrInvalidBlockType
}

// IsValidBlockType checks if a BlockType is one of the known variants
func IsValidBlockType(t BlockType) bool {
	switch t {
	case BlockTypeText, BlockTypeCode, BlockTypeImageSuggestion:
		return true
	}
	return false
}

// CheckNoConsecutiveText reports the first pair of adjacent TEXT blocks.
// Generated block lists must consolidate text under internal headers instead.
func CheckNoConsecutiveText(contents []BlockContent) error {
	for i := 1; i < len(contents); i++ {
		if contents[i-1] == nil || contents[i] == nil {
			continue
		}
		if contents[i-1].Type() == BlockTypeText && contents[i].Type() == BlockTypeText {
			return ErrConsecutiveTextBlocks.Wrap(fmt.Errorf("blocks at positions %d and %d are both TEXT", i-1, i))
		}
	}
	return nil
}
