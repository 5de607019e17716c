package ai

import (
	"context"

	"github.com/spigell/resume-recommender/internal/scoring"
)

const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

type LearningStep struct {
	Title       string `json:"title"`
	Provider    string `json:"provider"`
	Difficulty  string `json:"difficulty"`
	Description string `json:"description"`
}

// EnrichedJob is one recommendation as described by the model. Title, company
// and match are not trusted and get replaced by local values during merge.
type EnrichedJob struct {
	Title        string         `json:"title"`
	Company      string         `json:"company"`
	Match        string         `json:"match"`
	Description  string         `json:"description"`
	Skills       []string       `json:"skills"`
	LearningPath []LearningStep `json:"learningPath"`
}

type Enrichment struct {
	Jobs     []EnrichedJob `json:"jobRecommendations"`
	Insights string        `json:"aiInsights"`
}

// Enricher asks a generative model to elaborate on a resume. local may be nil.
type Enricher interface {
	Enrich(ctx context.Context, text string, local []scoring.ScoredCandidate) (*Enrichment, error)
}
