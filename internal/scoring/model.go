package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Vocabulary is the ordered keyword list the feature vector is built from.
var Vocabulary = []string{
	"python", "sql", "statistics", "analytics", "pandas", "tensorflow",
	"tableau", "java", "javascript", "react", "node", "api",
	"backend", "frontend", "docker", "kubernetes", "aws", "linux",
	"design", "figma", "ux", "prototype", "marketing", "seo",
	"sales", "product", "roadmap", "agile", "management", "budget",
}

// Categories maps classifier outputs to job titles. Outputs beyond the table
// wrap around modulo its length, so a wider model yields repeated titles.
var Categories = []ScoredCandidate{
	{Title: "Data Scientist", Company: "Analytics Co."},
	{Title: "Software Engineer", Company: "Tech Innovations"},
	{Title: "Frontend Developer", Company: "Web Solutions Ltd."},
	{Title: "Backend Developer", Company: "ServerTech Solutions"},
	{Title: "UX Designer", Company: "Creative Designs Inc."},
	{Title: "Project Manager", Company: "Enterprise Solutions"},
	{Title: "Marketing Manager", Company: "Growth Strategies Inc."},
	{Title: "Business Analyst", Company: "Insight Analytics"},
	{Title: "Operations Manager", Company: "Efficiency Corp."},
	{Title: "Customer Success Manager", Company: "Client Relations Co."},
}

// FallbackCandidates is returned whenever the model cannot be used.
var FallbackCandidates = []ScoredCandidate{
	{Title: "Software Engineer", Company: "Tech Innovations", MatchFraction: 0.75},
	{Title: "Data Analyst", Company: "Insight Analytics", MatchFraction: 0.70},
	{Title: "Project Manager", Company: "Enterprise Solutions", MatchFraction: 0.65},
}

var tokenPattern = regexp.MustCompile(`[a-z0-9+#]+`)

// Classifier is a linear softmax model: one weight row and one bias per
// output category.
type Classifier struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// LoadClassifier reads a classifier from a JSON file.
func LoadClassifier(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file %q: %w", path, err)
	}

	var clf Classifier
	if err := json.Unmarshal(data, &clf); err != nil {
		return nil, fmt.Errorf("decoding model file %q: %w", path, err)
	}

	if err := clf.validate(len(Vocabulary)); err != nil {
		return nil, err
	}

	return &clf, nil
}

func (c *Classifier) validate(features int) error {
	if len(c.Weights) == 0 {
		return errors.New("model has no output categories")
	}
	if len(c.Bias) != len(c.Weights) {
		return fmt.Errorf("model has %d bias values for %d categories", len(c.Bias), len(c.Weights))
	}
	for i, row := range c.Weights {
		if len(row) != features {
			return fmt.Errorf("model row %d has %d weights, expected %d", i, len(row), features)
		}
	}
	return nil
}

// Predict returns one probability per output category.
func (c *Classifier) Predict(features []float64) ([]float64, error) {
	if err := c.validate(len(features)); err != nil {
		return nil, err
	}

	logits := make([]float64, len(c.Weights))
	maxLogit := math.Inf(-1)
	for i, row := range c.Weights {
		sum := c.Bias[i]
		for j, w := range row {
			sum += w * features[j]
		}
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return nil, fmt.Errorf("category %d produced a non-finite logit", i)
		}
		logits[i] = sum
		maxLogit = math.Max(maxLogit, sum)
	}

	var total float64
	probs := make([]float64, len(logits))
	for i, logit := range logits {
		probs[i] = math.Exp(logit - maxLogit)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}

	return probs, nil
}

// Features counts vocabulary keywords in text and normalizes by token count.
func Features(text string) []float64 {
	features := make([]float64, len(Vocabulary))
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return features
	}

	index := make(map[string]int, len(Vocabulary))
	for i, word := range Vocabulary {
		index[word] = i
	}

	for _, token := range tokens {
		if i, ok := index[token]; ok {
			features[i]++
		}
	}

	for i := range features {
		features[i] /= float64(len(tokens))
	}

	return features
}

// ModelScorer ranks categories with a classifier loaded once from disk.
type ModelScorer struct {
	path   string
	logger *zap.Logger

	once sync.Once
	clf  *Classifier
	err  error
}

func NewModelScorer(path string, logger *zap.Logger) *ModelScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelScorer{path: strings.TrimSpace(path), logger: logger}
}

// NewModelScorerFromClassifier wraps an already loaded classifier.
func NewModelScorerFromClassifier(clf *Classifier, logger *zap.Logger) *ModelScorer {
	s := NewModelScorer("", logger)
	s.once.Do(func() {
		s.clf = clf
		if clf == nil {
			s.err = &ScoringError{Op: "load", Err: errors.New("classifier is nil")}
		}
	})
	return s
}

// Load reads the model file. It runs once; later calls return the first result.
func (s *ModelScorer) Load() error {
	s.once.Do(func() {
		if s.path == "" {
			s.err = &ScoringError{Op: "load", Err: errors.New("model file is not configured")}
			return
		}

		clf, err := LoadClassifier(s.path)
		if err != nil {
			s.err = &ScoringError{Op: "load", Err: err}
			return
		}

		s.clf = clf
		s.logger.Info("scoring model loaded",
			zap.String("path", s.path),
			zap.Int("categories", len(clf.Weights)),
		)
	})

	return s.err
}

func (s *ModelScorer) Score(text string) []ScoredCandidate {
	candidates, err := s.score(text)
	if err != nil {
		s.logger.Warn("using fallback candidates", zap.Error(err))
		return withSkills(SortCandidates(FallbackCandidates), text)
	}
	return candidates
}

func (s *ModelScorer) score(text string) ([]ScoredCandidate, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}

	probs, err := s.clf.Predict(Features(text))
	if err != nil {
		return nil, &ScoringError{Op: "inference", Err: err}
	}

	candidates := make([]ScoredCandidate, 0, len(probs))
	for i, p := range probs {
		category := Categories[i%len(Categories)]
		candidates = append(candidates, ScoredCandidate{
			Title:         category.Title,
			Company:       category.Company,
			MatchFraction: p,
		})
	}

	return withSkills(SortCandidates(candidates), text), nil
}
