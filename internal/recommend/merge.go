// Package recommend combines local scoring with AI enrichment into the final
// recommendation set shown to the user.
package recommend

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/scoring"
)

const (
	MaxJobs = 3

	DefaultDescription = "This role matches your resume profile and skills."
	LocalOnlyInsights  = "Based on your resume, consider developing additional technical and soft skills to improve your job prospects."
	NoMatchesInsights  = "We could not identify job matches from your resume. Try uploading a more detailed resume."
)

type Job struct {
	Title        string            `json:"title"`
	Company      string            `json:"company"`
	Match        string            `json:"match"`
	Description  string            `json:"description"`
	Skills       []string          `json:"skills"`
	LearningPath []ai.LearningStep `json:"learningPath"`
}

// RecommendationSet replaces the previous one wholesale on every upload.
type RecommendationSet struct {
	Jobs     []Job  `json:"jobRecommendations"`
	Insights string `json:"aiInsights"`
}

// Merge pairs the top local candidates with enriched jobs by position. Title,
// company and match always come from the local candidate; description, skills
// and learning path come from the enriched job at the same index when there is
// one. Without it a job keeps the candidate's resume skills and an empty
// learning path. Merge never fails and never pads the result.
func Merge(local []scoring.ScoredCandidate, enrichment *ai.Enrichment) RecommendationSet {
	ranked := scoring.SortCandidates(local)
	if len(ranked) > MaxJobs {
		ranked = ranked[:MaxJobs]
	}

	var enriched []ai.EnrichedJob
	if enrichment != nil {
		enriched = enrichment.Jobs
	}

	jobs := make([]Job, 0, len(ranked))
	for i, candidate := range ranked {
		job := Job{
			Title:        candidate.Title,
			Company:      candidate.Company,
			Match:        MatchLabel(candidate.MatchFraction),
			Description:  DefaultDescription,
			Skills:       append([]string{}, candidate.Skills...),
			LearningPath: []ai.LearningStep{},
		}

		if i < len(enriched) {
			e := enriched[i]
			if strings.TrimSpace(e.Description) != "" {
				job.Description = e.Description
			}
			if len(e.Skills) > 0 {
				job.Skills = append([]string{}, e.Skills...)
			}
			if len(e.LearningPath) > 0 {
				job.LearningPath = append([]ai.LearningStep{}, e.LearningPath...)
			}
		}

		jobs = append(jobs, job)
	}

	return RecommendationSet{Jobs: jobs, Insights: insights(len(jobs), enrichment)}
}

func insights(jobs int, enrichment *ai.Enrichment) string {
	if jobs == 0 {
		return NoMatchesInsights
	}
	if enrichment != nil && len(enrichment.Jobs) > 0 {
		if text := strings.TrimSpace(enrichment.Insights); text != "" {
			return text
		}
	}
	return LocalOnlyInsights
}

// MatchLabel renders a 0..1 fraction as "N% Match".
func MatchLabel(fraction float64) string {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return fmt.Sprintf("%d%% Match", int(math.Round(fraction*100)))
}
