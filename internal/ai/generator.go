package ai

import (
	"context"
	"fmt"
	"strings"
)

// Generator sends one request to a generative model and returns its text.
type Generator interface {
	GenerateContent(ctx context.Context, req *Request) (string, error)
}

// Request is a single-turn generation request. Inline is optional and carries a
// binary document next to the prompt.
type Request struct {
	Prompt     string
	Inline     *InlineData
	Generation GenerationConfig
	Safety     []SafetySetting
}

type InlineData struct {
	MIMEType string
	Data     []byte
}

type GenerationConfig struct {
	Temperature     *float32
	TopK            *float32
	TopP            *float32
	MaxOutputTokens int32
}

type SafetySetting struct {
	Category  string
	Threshold string
}

const (
	HarmCategoryHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"

	BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"
)

// DefaultSafetySettings blocks medium and above for every harm category.
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		HarmCategoryHarassment,
		HarmCategoryHateSpeech,
		HarmCategorySexuallyExplicit,
		HarmCategoryDangerousContent,
	}

	settings := make([]SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, SafetySetting{Category: category, Threshold: BlockMediumAndAbove})
	}

	return settings
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// APIError is a non-success response from the inference endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = e.Status
	}
	return fmt.Sprintf("inference api returned status %d: %s", e.StatusCode, message)
}
