package extract

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("ai api key is not configured")
	ErrExtraction        = errors.New("text extraction failed")
)

// MissingCredentialError is returned before any network call when a binary
// document needs the inference endpoint but no API key is configured.
type MissingCredentialError struct {
	MediaType string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: required to extract %s documents", ErrMissingCredential, e.MediaType)
}

func (e *MissingCredentialError) Unwrap() error {
	return ErrMissingCredential
}

// ExtractionError carries the upstream failure, if any.
type ExtractionError struct {
	FileName string
	Detail   string
	Cause    error
}

func (e *ExtractionError) Error() string {
	msg := ErrExtraction.Error()
	if e.FileName != "" {
		msg = fmt.Sprintf("%s for %q", msg, e.FileName)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Reason is the upstream message shown to the user, or the detail when there
// is no upstream error.
func (e *ExtractionError) Reason() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Detail
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}
