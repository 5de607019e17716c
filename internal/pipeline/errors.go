package pipeline

import (
	"errors"
	"fmt"

	"github.com/spigell/resume-recommender/internal/ai/gemini"
	"github.com/spigell/resume-recommender/internal/extract"
	"github.com/spigell/resume-recommender/internal/resume"
)

// Error kinds exposed to clients.
const (
	KindFileTooLarge      = "file_too_large"
	KindUnsupportedFormat = "unsupported_format"
	KindMissingCredential = "missing_credential"
	KindExtraction        = "extraction_failed"
	KindEnrichment        = "enrichment_failed"
	KindInternal          = "internal"
)

const EnrichmentUnavailableWarning = "AI enrichment is unavailable; showing local matches only."

// Kind classifies err for clients.
func Kind(err error) string {
	switch {
	case errors.Is(err, resume.ErrFileTooLarge):
		return KindFileTooLarge
	case errors.Is(err, resume.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, extract.ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, extract.ErrExtraction):
		return KindExtraction
	case errors.Is(err, gemini.ErrEnrichment),
		errors.Is(err, gemini.ErrEnrichmentParse),
		errors.Is(err, gemini.ErrEnrichmentSchema):
		return KindEnrichment
	default:
		return KindInternal
	}
}

// Describe returns a short message suitable for the user.
func Describe(err error) string {
	switch Kind(err) {
	case KindFileTooLarge:
		limit := resume.DefaultMaxFileSize
		var sizeErr *resume.FileTooLargeError
		if errors.As(err, &sizeErr) {
			limit = sizeErr.Limit
		}
		return fmt.Sprintf("The file is too large. The maximum size is %s.", humanSize(limit))
	case KindUnsupportedFormat:
		return "Unsupported file format. Please upload a PDF, Word document or plain text file."
	case KindMissingCredential:
		return "The AI service is not configured, so PDF and Word files cannot be read. Upload a plain text file instead."
	case KindExtraction:
		msg := "We could not read the text of your resume"
		var exErr *extract.ExtractionError
		if errors.As(err, &exErr) && exErr.Reason() != "" {
			msg = fmt.Sprintf("%s (%s)", msg, exErr.Reason())
		}
		return msg + ". Please try again or upload a different file."
	case KindEnrichment:
		return EnrichmentUnavailableWarning
	default:
		return "Something went wrong while processing your resume. Please try again."
	}
}

func humanSize(bytes int64) string {
	const mb = 1024 * 1024
	if bytes >= mb && bytes%mb == 0 {
		return fmt.Sprintf("%d MB", bytes/mb)
	}
	if bytes >= 1024 && bytes%1024 == 0 {
		return fmt.Sprintf("%d KB", bytes/1024)
	}
	return fmt.Sprintf("%d bytes", bytes)
}
