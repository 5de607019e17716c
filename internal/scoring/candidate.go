// Package scoring ranks job titles for a resume without calling an external
// service.
package scoring

import "sort"

// ScoredCandidate is a job title suggested by a local scorer. Skills are the
// resume skills shown when no enrichment is available.
type ScoredCandidate struct {
	Title         string   `json:"title"`
	Company       string   `json:"company"`
	MatchFraction float64  `json:"matchFraction"`
	Skills        []string `json:"skills,omitempty"`
}

// Scorer produces candidates ordered by descending MatchFraction.
type Scorer interface {
	Score(text string) []ScoredCandidate
}

// DocumentScorer is implemented by scorers that also look at the uploaded
// file name.
type DocumentScorer interface {
	ScoreDocument(fileName, text string) []ScoredCandidate
}

// ScoreDocument uses the file-aware method when the scorer has one.
func ScoreDocument(s Scorer, fileName, text string) []ScoredCandidate {
	if ds, ok := s.(DocumentScorer); ok {
		return ds.ScoreDocument(fileName, text)
	}
	return s.Score(text)
}

// SortCandidates returns a copy sorted by descending MatchFraction. Equal
// fractions keep their original order.
func SortCandidates(candidates []ScoredCandidate) []ScoredCandidate {
	sorted := make([]ScoredCandidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MatchFraction > sorted[j].MatchFraction
	})

	return sorted
}
