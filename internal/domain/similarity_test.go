package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNearestQuery(t *testing.T) {
	valid := func() NearestQuery {
		return NearestQuery{ModuleID: 1, ExcludePageID: 2, Vector: []float32{0.1}, TopK: 5, MinSimilarity: 0.72}
	}

	tests := []struct {
		name    string
		mutate  func(q *NearestQuery)
		wantErr error
	}{
		{"Valid", func(q *NearestQuery) {}, nil},
		{"MinTopK", func(q *NearestQuery) { q.TopK = 1 }, nil},
		{"MaxTopK", func(q *NearestQuery) { q.TopK = 20 }, nil},
		{"ZeroTopK", func(q *NearestQuery) { q.TopK = 0 }, ErrInvalidTopK},
		{"TopKTooLarge", func(q *NearestQuery) { q.TopK = 21 }, ErrInvalidTopK},
		{"NegativeSimilarity", func(q *NearestQuery) { q.MinSimilarity = -0.1 }, ErrInvalidSimilarity},
		{"SimilarityAboveOne", func(q *NearestQuery) { q.MinSimilarity = 1.01 }, ErrInvalidSimilarity},
		{"MissingModule", func(q *NearestQuery) { q.ModuleID = 0 }, ErrMissingRequiredField},
		{"MissingVector", func(q *NearestQuery) { q.Vector = nil }, ErrMissingRequiredField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid()
			tt.mutate(&q)
			err := ValidateNearestQuery(q)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
