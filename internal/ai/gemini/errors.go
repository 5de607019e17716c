package gemini

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEnrichment       = errors.New("ai enrichment request failed")
	ErrEnrichmentParse  = errors.New("ai enrichment response is not valid json")
	ErrEnrichmentSchema = errors.New("ai enrichment response has an unexpected shape")
)

// FieldError is a single schema violation.
type FieldError struct {
	Field   string
	Message string
}

// EnrichmentError wraps every enrichment failure. Kind is one of the sentinel
// errors above and is matched by errors.Is; Cause is reachable via errors.As.
type EnrichmentError struct {
	Kind   error
	Detail string
	Cause  error
	Fields []FieldError
}

func (e *EnrichmentError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	for _, f := range e.Fields {
		fmt.Fprintf(&sb, "; %s: %s", f.Field, f.Message)
	}
	return sb.String()
}

func (e *EnrichmentError) Unwrap() error {
	return e.Cause
}

func (e *EnrichmentError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}
