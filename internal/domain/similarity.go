package domain

import "fmt"

const (
	MinTopK = 1
	MaxTopK = 20
)

// NearestQuery selects a page's neighbours within its module
type NearestQuery struct {
	ModuleID      int64
	ExcludePageID int64
	Vector        []float32
	TopK          int
	MinSimilarity float64
	OnlyPublished bool
}

// ValidateNearestQuery checks the bounds of a NearestQuery
func ValidateNearestQuery(q NearestQuery) error {
	if q.ModuleID <= 0 {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("nearest query ModuleID is required"))
	}
	if len(q.Vector) == 0 {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("nearest query Vector is required"))
	}
	if err := ValidateTopK(q.TopK); err != nil {
		return err
	}
	return ValidateMinSimilarity(q.MinSimilarity)
}

// ValidateTopK rejects values outside [MinTopK, MaxTopK]
func ValidateTopK(k int) error {
	if k < MinTopK || k > MaxTopK {
		return ErrInvalidTopK.Wrap(fmt.Errorf("%d not in [%d,%d]", k, MinTopK, MaxTopK))
	}
	return nil
}

// ValidateMinSimilarity rejects values outside [0,1]
func ValidateMinSimilarity(v float64) error {
	if v < 0 || v > 1 {
		return ErrInvalidSimilarity.Wrap(fmt.Errorf("%v not in [0,1]", v))
	}
	return nil
}
