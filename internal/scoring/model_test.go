package scoring

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func identityClassifier(rows int) *Classifier {
	clf := &Classifier{
		Weights: make([][]float64, rows),
		Bias:    make([]float64, rows),
	}
	for i := range clf.Weights {
		clf.Weights[i] = make([]float64, len(Vocabulary))
		clf.Weights[i][i%len(Vocabulary)] = 10
	}
	return clf
}

func TestFeatures(t *testing.T) {
	features := Features("Python and SQL, python again")
	if len(features) != len(Vocabulary) {
		t.Fatalf("expected %d features, got %d", len(Vocabulary), len(features))
	}

	// five tokens: python, and, sql, python, again
	if math.Abs(features[0]-0.4) > 1e-9 {
		t.Fatalf("expected python feature 0.4, got %v", features[0])
	}
	if math.Abs(features[1]-0.2) > 1e-9 {
		t.Fatalf("expected sql feature 0.2, got %v", features[1])
	}

	empty := Features("   ")
	for i, v := range empty {
		if v != 0 {
			t.Fatalf("expected zero feature at %d, got %v", i, v)
		}
	}
}

func TestModelScorerRanksByProbability(t *testing.T) {
	scorer := NewModelScorerFromClassifier(identityClassifier(len(Categories)), zap.NewNop())

	got := scorer.Score("java java java python")
	if len(got) != len(Categories) {
		t.Fatalf("expected %d candidates, got %d", len(Categories), len(got))
	}

	// row 7 weights "java" (vocabulary index 7)
	if got[0].Title != Categories[7].Title {
		t.Fatalf("expected %q first, got %q", Categories[7].Title, got[0].Title)
	}

	var total float64
	for i, c := range got {
		total += c.MatchFraction
		if i > 0 && c.MatchFraction > got[i-1].MatchFraction {
			t.Fatalf("candidates are not sorted: %+v", got)
		}
	}
	if math.Abs(total-1) > 1e-9 {
		t.Fatalf("expected probabilities to sum to 1, got %v", total)
	}
}

func TestModelScorerWrapsCategories(t *testing.T) {
	rows := len(Categories) + 2
	scorer := NewModelScorerFromClassifier(identityClassifier(rows), zap.NewNop())

	got := scorer.Score("resume")
	if len(got) != rows {
		t.Fatalf("expected %d candidates, got %d", rows, len(got))
	}

	seen := map[string]int{}
	for _, c := range got {
		seen[c.Title]++
	}
	if seen[Categories[0].Title] != 2 || seen[Categories[1].Title] != 2 {
		t.Fatalf("expected wrapped categories to repeat, got %v", seen)
	}
}

func TestModelScorerFallsBackWhenLoadFails(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	scorer := NewModelScorer(filepath.Join(t.TempDir(), "missing.json"), zap.New(core))

	err := scorer.Load()
	if !errors.Is(err, ErrScoring) {
		t.Fatalf("expected scoring error, got %v", err)
	}

	got := scorer.Score("python developer")
	if len(got) != len(FallbackCandidates) {
		t.Fatalf("expected fallback candidates, got %+v", got)
	}
	for i := range got {
		if got[i].Title != FallbackCandidates[i].Title || got[i].MatchFraction != FallbackCandidates[i].MatchFraction {
			t.Fatalf("candidate %d: expected %+v, got %+v", i, FallbackCandidates[i], got[i])
		}
	}

	if observed.FilterMessage("using fallback candidates").Len() != 1 {
		t.Fatalf("expected fallback warning to be logged")
	}
}

func TestModelScorerFallsBackOnInferenceFailure(t *testing.T) {
	clf := identityClassifier(3)
	clf.Bias[1] = math.Inf(1)

	got := NewModelScorerFromClassifier(clf, nil).Score("python")
	if got[0].Title != FallbackCandidates[0].Title {
		t.Fatalf("expected fallback list, got %+v", got)
	}
}

func TestLoadClassifier(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "model.json")
	row := "[" + zeros(len(Vocabulary)) + "]"
	if err := os.WriteFile(valid, []byte(`{"weights":[`+row+`,`+row+`],"bias":[0.1,0.2]}`), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}

	clf, err := LoadClassifier(valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clf.Weights) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(clf.Weights))
	}

	short := filepath.Join(dir, "short.json")
	if err := os.WriteFile(short, []byte(`{"weights":[[1,2]],"bias":[0]}`), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	if _, err := LoadClassifier(short); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func zeros(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += "0"
	}
	return out
}
