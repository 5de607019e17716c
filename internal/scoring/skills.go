package scoring

import "strings"

const maxSkills = 4

// skillNames holds display names that are not a simple capitalisation of the
// vocabulary word.
var skillNames = map[string]string{
	"sql":        "SQL",
	"tensorflow": "TensorFlow",
	"javascript": "JavaScript",
	"node":       "Node.js",
	"api":        "API",
	"aws":        "AWS",
	"ux":         "UX",
	"seo":        "SEO",
}

// Skills padding and defaults when the resume names too few vocabulary words.
var (
	paddingSkills = []string{"Communication", "Problem Solving"}
	defaultSkills = []string{"Communication", "Problem Solving", "Teamwork", "Adaptability"}
)

// ResumeSkills returns the vocabulary words found in text as whole tokens,
// in vocabulary order and formatted for display.
func ResumeSkills(text string) []string {
	present := make(map[string]bool)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		present[token] = true
	}

	var skills []string
	for _, word := range Vocabulary {
		if present[word] {
			skills = append(skills, skillName(word))
		}
	}
	return skills
}

// DisplaySkills caps found at four entries, pads it to two with generic
// skills and uses a generic list when nothing was found. The result is a new
// slice.
func DisplaySkills(found []string) []string {
	if len(found) == 0 {
		return append([]string{}, defaultSkills...)
	}

	skills := append([]string{}, found...)
	if len(skills) > maxSkills {
		return skills[:maxSkills]
	}
	for _, s := range paddingSkills {
		if len(skills) >= 2 {
			break
		}
		skills = append(skills, s)
	}
	return skills
}

func withSkills(candidates []ScoredCandidate, text string) []ScoredCandidate {
	skills := DisplaySkills(ResumeSkills(text))

	out := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		c.Skills = append([]string{}, skills...)
		out[i] = c
	}
	return out
}

func skillName(word string) string {
	if name, ok := skillNames[word]; ok {
		return name
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
