package feedback

import (
	"testing"

	"pronounce-go/internal/config"
	"pronounce-go/internal/types"
)

func newGenerator() *Generator { return New(config.DefaultTuning().Feedback) }

func TestEvaluationThresholds(t *testing.T) {
	t.Parallel()
	r := newGenerator().Evaluation(60, 90, 96, nil, types.GradeC)
	if len(r.Improvements) != 1 || r.Improvements[0] != msgAccuracy {
		t.Fatalf("Improvements = %v, want [%q]", r.Improvements, msgAccuracy)
	}
	if len(r.Positives) != 2 || r.Positives[0] != posFluency || r.Positives[1] != posCompleteness {
		t.Fatalf("Positives = %v", r.Positives)
	}
}

func TestEvaluationCapsAndDeduplicates(t *testing.T) {
	t.Parallel()
	words := []types.WordDetail{
		{Word: "thank", Accuracy: 40},
		{Word: "thank", Accuracy: 30},
		{Word: "you", Accuracy: 50},
	}
	r := newGenerator().Evaluation(10, 10, 10, words, types.GradeE)
	if len(r.Improvements) != 3 {
		t.Fatalf("Improvements = %v, want 3 entries", r.Improvements)
	}
	seen := map[string]bool{}
	for _, s := range r.Improvements {
		if seen[s] {
			t.Fatalf("duplicate improvement %q", s)
		}
		seen[s] = true
	}
	if len(r.Positives) != 0 || r.Positives == nil {
		t.Fatalf("Positives = %#v, want empty non-nil", r.Positives)
	}
}

func TestWordImprovementTemplate(t *testing.T) {
	t.Parallel()
	r := newGenerator().Evaluation(90, 90, 100, []types.WordDetail{{Word: "sorry", Accuracy: 50}}, types.GradeB)
	if len(r.Improvements) != 1 || r.Improvements[0] != `Work on the pronunciation of "sorry"` {
		t.Fatalf("Improvements = %v", r.Improvements)
	}
	if r.Positives[len(r.Positives)-1] != posGradeB {
		t.Fatalf("Positives = %v, want grade B praise last", r.Positives)
	}
}

func TestRemediationPrepended(t *testing.T) {
	t.Parallel()
	det := types.NonNativeDetection{Detected: true, Confidence: 0.7}
	scores := types.ComparisonScores{TextAccuracy: 50, PhonemeAccuracy: 50, Prosody: 50, Stress: 50, Timing: 50}
	r := newGenerator().Comparison(scores, types.GradeD, types.NonNativeDetection{}, det)

	if len(r.Improvements) != len(Remediation)+3 {
		t.Fatalf("Improvements = %v, want remediation plus three", r.Improvements)
	}
	for i, s := range Remediation {
		if r.Improvements[i] != s {
			t.Fatalf("Improvements[%d] = %q, want %q", i, r.Improvements[i], s)
		}
	}
	if r.Improvements[len(Remediation)] != msgText {
		t.Fatalf("first regular improvement = %q, want %q", r.Improvements[len(Remediation)], msgText)
	}
}

func TestComparisonPraise(t *testing.T) {
	t.Parallel()
	s := types.ComparisonScores{TextAccuracy: 100, PhonemeAccuracy: 100, Prosody: 100, Stress: 100, Timing: 100}
	r := newGenerator().Comparison(s, types.GradeA)
	if len(r.Improvements) != 0 {
		t.Fatalf("Improvements = %v, want none", r.Improvements)
	}
	if len(r.Positives) != 1 || r.Positives[0] != posGradeA {
		t.Fatalf("Positives = %v", r.Positives)
	}
}
