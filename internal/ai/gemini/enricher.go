package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/jsonblock"
	"github.com/spigell/resume-recommender/internal/scoring"
	"github.com/spigell/resume-recommender/internal/utils"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const (
	maxJobs          = 3
	maxSkills        = 4
	maxLearningSteps = 4
)

//go:embed enrich_prompt.md
var enrichPromptTemplate string

const enrichmentSchema = `{
  "type": "object",
  "required": ["jobRecommendations"],
  "properties": {
    "jobRecommendations": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "object"}
    }
  }
}`

var enrichmentSchemaLoader = gojsonschema.NewStringLoader(enrichmentSchema)

// EnrichmentGeneration returns the fixed sampling parameters for enrichment.
func EnrichmentGeneration() ai.GenerationConfig {
	return ai.GenerationConfig{
		Temperature:     ai.Ptr[float32](0.4),
		TopK:            ai.Ptr[float32](32),
		TopP:            ai.Ptr[float32](0.95),
		MaxOutputTokens: 8192,
	}
}

type Enricher struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewEnricher(generator ai.Generator, logger *zap.Logger, maxLogLength int) *Enricher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Enricher{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Enrich asks the model for three recommendations. The request is sent once;
// any failure is returned as *EnrichmentError.
func (e *Enricher) Enrich(ctx context.Context, text string, local []scoring.ScoredCandidate) (*ai.Enrichment, error) {
	if e.generator == nil {
		return nil, &EnrichmentError{Kind: ErrEnrichment, Detail: "generator is not configured"}
	}

	prompt := buildEnrichPrompt(text, local)

	e.logger.Debug("gemini enrichment request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
		zap.Int("local_candidates", len(local)),
	)

	raw, err := e.generator.GenerateContent(ctx, &ai.Request{
		Prompt:     prompt,
		Generation: EnrichmentGeneration(),
		Safety:     ai.DefaultSafetySettings(),
	})
	if err != nil {
		return nil, &EnrichmentError{Kind: ErrEnrichment, Detail: "generate content", Cause: err}
	}

	e.logger.Debug("gemini enrichment response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return ParseEnrichment(raw)
}

func buildEnrichPrompt(text string, local []scoring.ScoredCandidate) string {
	template := enrichPromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "{{LOCAL_CANDIDATES}}\nResume:\n{{RESUME_TEXT}}\n\nJSON Response:"
	}

	prompt := strings.ReplaceAll(template, "{{LOCAL_CANDIDATES}}", localCandidatesSection(local))
	return strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", strings.TrimSpace(text))
}

func localCandidatesSection(local []scoring.ScoredCandidate) string {
	if len(local) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("- Use these jobs in this order and keep their exact title, company and match values:\n")
	for i, c := range local {
		if i == maxJobs {
			break
		}
		fmt.Fprintf(&sb, "  %d. title: %q, company: %q, match: \"%d%%\"\n",
			i+1, c.Title, c.Company, int(math.Round(c.MatchFraction*100)))
	}

	return sb.String()
}

// ParseEnrichment recovers, validates and normalizes a model response.
func ParseEnrichment(raw string) (*ai.Enrichment, error) {
	data, _, err := jsonblock.Extract(raw)
	if err != nil {
		return nil, &EnrichmentError{Kind: ErrEnrichmentParse, Cause: err}
	}

	result, err := gojsonschema.Validate(enrichmentSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &EnrichmentError{Kind: ErrEnrichmentParse, Detail: "load document", Cause: err}
	}

	if !result.Valid() {
		schemaErr := &EnrichmentError{Kind: ErrEnrichmentSchema}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			schemaErr.Fields = append(schemaErr.Fields, FieldError{Field: field, Message: desc.Description()})
		}
		return nil, schemaErr
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, &EnrichmentError{Kind: ErrEnrichmentParse, Cause: err}
	}

	var enrichment ai.Enrichment
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &enrichment,
	})
	if err != nil {
		return nil, fmt.Errorf("create enrichment decoder: %w", err)
	}

	if err := decoder.Decode(generic); err != nil {
		return nil, &EnrichmentError{Kind: ErrEnrichmentSchema, Detail: "decode", Cause: err}
	}

	normalize(&enrichment)
	return &enrichment, nil
}

func normalize(e *ai.Enrichment) {
	if len(e.Jobs) > maxJobs {
		e.Jobs = e.Jobs[:maxJobs]
	}
	e.Insights = strings.TrimSpace(e.Insights)

	for i := range e.Jobs {
		job := &e.Jobs[i]
		job.Title = strings.TrimSpace(job.Title)
		job.Company = strings.TrimSpace(job.Company)
		job.Description = strings.TrimSpace(job.Description)
		job.Match = normalizeMatch(job.Match)

		skills := make([]string, 0, maxSkills)
		for _, skill := range job.Skills {
			if skill = strings.TrimSpace(skill); skill != "" && len(skills) < maxSkills {
				skills = append(skills, skill)
			}
		}
		job.Skills = skills

		if len(job.LearningPath) > maxLearningSteps {
			job.LearningPath = job.LearningPath[:maxLearningSteps]
		}
		if job.LearningPath == nil {
			job.LearningPath = []ai.LearningStep{}
		}
		for j := range job.LearningPath {
			step := &job.LearningPath[j]
			step.Title = strings.TrimSpace(step.Title)
			step.Provider = strings.TrimSpace(step.Provider)
			step.Description = strings.TrimSpace(step.Description)
			step.Difficulty = normalizeDifficulty(step.Difficulty)
		}
	}
}

func normalizeMatch(match string) string {
	match = strings.TrimSpace(match)
	if match == "" {
		return ""
	}

	if f, err := strconv.ParseFloat(match, 64); err == nil {
		if f > 0 && f <= 1 && strings.Contains(match, ".") {
			f *= 100
		}
		return fmt.Sprintf("%d%%", int(math.Round(f)))
	}

	return match
}

func normalizeDifficulty(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "beginner", "basic", "entry", "easy":
		return ai.DifficultyBeginner
	case "advanced", "expert", "hard":
		return ai.DifficultyAdvanced
	default:
		return ai.DifficultyIntermediate
	}
}
