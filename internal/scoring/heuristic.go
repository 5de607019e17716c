package scoring

import "strings"

type keywordRule struct {
	keyword    string
	candidates []ScoredCandidate
}

var heuristicRules = []keywordRule{
	{
		keyword: "data",
		candidates: []ScoredCandidate{
			{Title: "Data Scientist", Company: "Analytics Co.", MatchFraction: 0.87},
			{Title: "Web Developer", Company: "Tech Innovations", MatchFraction: 0.82},
			{Title: "Frontend Developer", Company: "Web Solutions Ltd.", MatchFraction: 0.79},
		},
	},
	{
		keyword: "dev",
		candidates: []ScoredCandidate{
			{Title: "Software Engineer", Company: "Tech Innovations", MatchFraction: 0.89},
			{Title: "Backend Developer", Company: "ServerTech Solutions", MatchFraction: 0.84},
			{Title: "Frontend Developer", Company: "Web Solutions Ltd.", MatchFraction: 0.80},
		},
	},
	{
		keyword: "design",
		candidates: []ScoredCandidate{
			{Title: "UX Designer", Company: "Creative Designs Inc.", MatchFraction: 0.88},
			{Title: "Product Designer", Company: "Creative Designs Inc.", MatchFraction: 0.81},
			{Title: "Frontend Developer", Company: "Web Solutions Ltd.", MatchFraction: 0.74},
		},
	},
	{
		keyword: "market",
		candidates: []ScoredCandidate{
			{Title: "Marketing Manager", Company: "Growth Strategies Inc.", MatchFraction: 0.86},
			{Title: "Business Analyst", Company: "Insight Analytics", MatchFraction: 0.78},
			{Title: "Customer Success Manager", Company: "Client Relations Co.", MatchFraction: 0.72},
		},
	},
	{
		keyword: "manager",
		candidates: []ScoredCandidate{
			{Title: "Project Manager", Company: "Enterprise Solutions", MatchFraction: 0.85},
			{Title: "Operations Manager", Company: "Efficiency Corp.", MatchFraction: 0.80},
			{Title: "Business Analyst", Company: "Insight Analytics", MatchFraction: 0.76},
		},
	},
}

var heuristicDefault = []ScoredCandidate{
	{Title: "Customer Success Manager", Company: "Client Relations Co.", MatchFraction: 0.72},
	{Title: "Business Analyst", Company: "Insight Analytics", MatchFraction: 0.70},
	{Title: "Operations Manager", Company: "Efficiency Corp.", MatchFraction: 0.68},
}

// HeuristicScorer picks a fixed candidate triple by the first keyword found in
// the file name or resume text. It always returns a result.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (h *HeuristicScorer) Score(text string) []ScoredCandidate {
	return h.ScoreDocument("", text)
}

func (h *HeuristicScorer) ScoreDocument(fileName, text string) []ScoredCandidate {
	haystack := strings.ToLower(fileName + "\n" + text)

	for _, rule := range heuristicRules {
		if strings.Contains(haystack, rule.keyword) {
			return withSkills(SortCandidates(rule.candidates), text)
		}
	}

	return withSkills(SortCandidates(heuristicDefault), text)
}
