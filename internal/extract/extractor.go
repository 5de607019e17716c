// Package extract turns uploaded resume documents into plain text.
package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/resume"
	"go.uber.org/zap"
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

// ExtractionPrompt is sent next to binary documents.
const ExtractionPrompt = "Extract all the text from this document. Return only the extracted text with no commentary, formatting notes or markdown."

// Extractor converts documents to text. Plain text is decoded directly; PDF
// and Word documents go to the generator, or to the local parsers in local
// mode.
type Extractor struct {
	generator ai.Generator
	mode      string
	logger    *zap.Logger
}

// New creates an extractor. generator may be nil when no API key is
// configured; binary documents that need it then fail with
// MissingCredentialError.
func New(generator ai.Generator, mode string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != ModeLocal {
		mode = ModeRemote
	}

	return &Extractor{generator: generator, mode: mode, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, doc *resume.Document) (string, error) {
	if !resume.IsSupported(doc.MediaType) {
		return "", &resume.UnsupportedFormatError{FileName: doc.FileName, MediaType: doc.MediaType}
	}

	if !resume.IsBinary(doc.MediaType) {
		return decodeText(doc.Data), nil
	}

	if e.mode == ModeLocal && doc.MediaType != resume.MediaTypeDoc {
		text, err := extractLocal(doc)
		if err != nil {
			return "", &ExtractionError{FileName: doc.FileName, Detail: "local parser", Cause: err}
		}
		e.logger.Debug("extracted text locally",
			zap.String("media_type", doc.MediaType),
			zap.Int("text_length", utf8.RuneCountInString(text)),
		)
		return text, nil
	}

	return e.extractRemote(ctx, doc)
}

func (e *Extractor) extractRemote(ctx context.Context, doc *resume.Document) (string, error) {
	if e.generator == nil {
		return "", &MissingCredentialError{MediaType: doc.MediaType}
	}

	e.logger.Debug("extracting text with the inference endpoint",
		zap.String("media_type", doc.MediaType),
		zap.Int64("size", doc.Size),
	)

	text, err := e.generator.GenerateContent(ctx, &ai.Request{
		Prompt: ExtractionPrompt,
		Inline: &ai.InlineData{MIMEType: doc.MediaType, Data: doc.Data},
		Generation: ai.GenerationConfig{
			Temperature:     ai.Ptr[float32](0),
			MaxOutputTokens: 8192,
		},
	})
	if err != nil {
		return "", &ExtractionError{FileName: doc.FileName, Cause: err}
	}

	return text, nil
}

func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
