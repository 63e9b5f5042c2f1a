package domain

import (
	"fmt"
	"strings"
	"time"
)

// RelationType classifies how an origin page refers to a related page
type RelationType string

const (
	RelationTypePrerequisite RelationType = "PREREQUISITE"
	RelationTypeExtends      RelationType = "EXTENDS"
	RelationTypeExampleOf    RelationType = "EXAMPLE_OF"
	RelationTypeContrasts    RelationType = "CONTRASTS"
	RelationTypeRelated      RelationType = "RELATED"
)

// AllRelationTypes lists every relation type in a stable order
func AllRelationTypes() []RelationType {
	return []RelationType{
		RelationTypePrerequisite,
		RelationTypeExtends,
		RelationTypeExampleOf,
		RelationTypeContrasts,
		RelationTypeRelated,
	}
}

// IsValidRelationType checks if a RelationType is valid
func IsValidRelationType(t RelationType) bool {
	switch t {
	case RelationTypePrerequisite, RelationTypeExtends, RelationTypeExampleOf,
		RelationTypeContrasts, RelationTypeRelated:
		return true
	}
	return false
}

// Relation is a directed, anchored link between two pages
type Relation struct {
	ID              int64
	OriginPageID    int64
	RelatedPageID   int64
	SimilarityScore float64
	RelationType    RelationType
	MentionText     string
	Explanation     string
	IsEmbedded      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateRelation validates a Relation instance
func ValidateRelation(r *Relation) error {
	if r == nil {
		return fmt.Errorf("relation cannot be nil")
	}

	if r.OriginPageID <= 0 || r.RelatedPageID <= 0 {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("relation page ids are required"))
	}

	if r.OriginPageID == r.RelatedPageID {
		return ErrSelfRelation
	}

	if r.SimilarityScore < 0 || r.SimilarityScore > 1 {
		return ErrInvalidSimilarity.Wrap(fmt.Errorf("similarity score %v outside [0,1]", r.SimilarityScore))
	}

	if !IsValidRelationType(r.RelationType) {
		return ErrInvalidRelationType.Wrap(fmt.Errorf("%q", r.RelationType))
	}

	if strings.TrimSpace(r.MentionText) == "" {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("relation MentionText is required"))
	}

	return nil
}

// Anchor is one proposed place in the origin page where a related page is mentioned
type Anchor struct {
	BlockID      int64
	MentionText  string
	RelationType RelationType
	Explanation  string
	// Violation is empty when the anchor satisfies the exact-substring,
	// scope and type constraints; otherwise it names the failed check.
	Violation string
}

// Valid reports whether the anchor passed validation
func (a Anchor) Valid() bool {
	return a.Violation == ""
}

// RelationSuggestion groups the anchors proposed for one candidate page
type RelationSuggestion struct {
	CandidatePageID int64
	CandidateTitle  string
	Similarity      float64
	Anchors         []Anchor
}
