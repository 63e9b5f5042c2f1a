package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultDefinitionMaxChars bounds concept definitions when no limit is configured
const DefaultDefinitionMaxChars = 200

// Concept is a glossary term extracted from, or attached to, a page
type Concept struct {
	ID         int64
	PageID     int64
	Term       string
	Definition string
	CreatedAt  time.Time
}

// ValidateConcept validates a Concept against the definition length limit
func ValidateConcept(c *Concept, maxDefinitionChars int) error {
	if c == nil {
		return fmt.Errorf("concept cannot be nil")
	}

	if c.PageID <= 0 {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("concept PageID is required"))
	}

	if strings.TrimSpace(c.Term) == "" {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("concept Term is required"))
	}

	if strings.TrimSpace(c.Definition) == "" {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("concept Definition is required"))
	}

	if maxDefinitionChars <= 0 {
		maxDefinitionChars = DefaultDefinitionMaxChars
	}
	if utf8.RuneCountInString(c.Definition) > maxDefinitionChars {
		return ErrDefinitionTooLong.Wrap(fmt.Errorf("%d > %d characters", utf8.RuneCountInString(c.Definition), maxDefinitionChars))
	}

	return nil
}
