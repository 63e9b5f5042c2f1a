package domain

import (
	"sort"
	"time"
)

// Page is a lesson page together with its pipeline state
type Page struct {
	ID                     int64
	ModuleID               int64
	Title                  string
	Blocks                 []Block
	CompiledContent        *string
	Embedding              []float32
	HasManualEdits         bool
	LastGenerationThreadID string
	ConceptsProcessed      bool
	IsPublished            bool
	UpdatedAt              time.Time
}

// HasEmbedding reports whether a usable vector is stored for the page.
func (p *Page) HasEmbedding() bool {
	return len(p.Embedding) > 0 && p.CompiledContent != nil && *p.CompiledContent != ""
}

// OrderedBlocks returns the blocks sorted by OrderIndex. Ties keep block id order.
func (p *Page) OrderedBlocks() []Block {
	return SortBlocks(p.Blocks)
}

// SortBlocks returns a copy of blocks sorted by OrderIndex, then ID
func SortBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	copy(out, blocks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindBlock returns the block with the given id.
func (p *Page) FindBlock(id int64) (*Block, bool) {
	for i := range p.Blocks {
		if p.Blocks[i].ID == id {
			return &p.Blocks[i], true
		}
	}
	return nil, false
}

// AIConfig is a module's generation settings
type AIConfig struct {
	Language       string
	TargetAudience string
	TargetLevel    string
}

// Module groups pages; only its AI configuration matters to the pipeline
type Module struct {
	ID       int64
	Title    string
	AIConfig AIConfig
}

// SimilarPage is a ranked neighbour of a page
type SimilarPage struct {
	PageID     int64
	Title      string
	Summary    string
	Similarity float64
}
