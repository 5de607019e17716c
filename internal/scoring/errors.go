package scoring

import (
	"errors"
	"fmt"
)

var ErrScoring = errors.New("local scoring failed")

// ScoringError describes a model load or inference failure. ModelScorer logs
// it and answers with the fallback list instead of returning it.
type ScoringError struct {
	Op  string
	Err error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrScoring, e.Op, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

func (e *ScoringError) Is(target error) bool {
	return target == ErrScoring
}
