package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationTypeConstants(t *testing.T) {
	types := AllRelationTypes()

	assert.Len(t, types, 5)
	for _, rt := range types {
		assert.True(t, IsValidRelationType(rt), rt)
	}
	assert.False(t, IsValidRelationType("SEE_ALSO"))
}

func TestValidateRelation(t *testing.T) {
	valid := func() *Relation {
		return &Relation{
			OriginPageID:    1,
			RelatedPageID:   2,
			SimilarityScore: 0.81,
			RelationType:    RelationTypePrerequisite,
			MentionText:     "ATP",
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *Relation)
		wantErr error
	}{
		{"Valid", func(r *Relation) {}, nil},
		{"ManualZeroScore", func(r *Relation) { r.SimilarityScore = 0 }, nil},
		{"SelfRelation", func(r *Relation) { r.RelatedPageID = 1 }, ErrSelfRelation},
		{"MissingOrigin", func(r *Relation) { r.OriginPageID = 0 }, ErrMissingRequiredField},
		{"ScoreAboveOne", func(r *Relation) { r.SimilarityScore = 1.2 }, ErrInvalidSimilarity},
		{"BadType", func(r *Relation) { r.RelationType = "SEE_ALSO" }, ErrInvalidRelationType},
		{"BlankMention", func(r *Relation) { r.MentionText = " " }, ErrMissingRequiredField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := ValidateRelation(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, ValidateRelation(nil))
}

func TestAnchor_Valid(t *testing.T) {
	assert.True(t, Anchor{MentionText: "ATP"}.Valid())
	assert.False(t, Anchor{MentionText: "ATP", Violation: "mention text not found in block"}.Valid())
}
