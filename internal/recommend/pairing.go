package recommend

import (
	"strings"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/scoring"
)

// Mismatch marks a position where Merge paired a local candidate with an
// enriched job describing a different title.
type Mismatch struct {
	Index         int
	LocalTitle    string
	EnrichedTitle string
}

// PairingMismatches reports positions where positional pairing joins
// differently titled jobs. Merge still pairs them; callers use this to warn.
func PairingMismatches(local []scoring.ScoredCandidate, enrichment *ai.Enrichment) []Mismatch {
	if enrichment == nil {
		return nil
	}

	ranked := scoring.SortCandidates(local)

	var mismatches []Mismatch
	for i := 0; i < MaxJobs && i < len(ranked) && i < len(enrichment.Jobs); i++ {
		enrichedTitle := strings.TrimSpace(enrichment.Jobs[i].Title)
		if enrichedTitle == "" {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(ranked[i].Title), enrichedTitle) {
			mismatches = append(mismatches, Mismatch{
				Index:         i,
				LocalTitle:    ranked[i].Title,
				EnrichedTitle: enrichedTitle,
			})
		}
	}

	return mismatches
}
