package fusion

import (
	"math"
	"testing"

	"pronounce-go/internal/config"
	"pronounce-go/internal/grading"
	"pronounce-go/internal/types"
)

func newFuser() *Fuser { return New(config.DefaultTuning().Fusion) }

func TestLocalComposite(t *testing.T) {
	t.Parallel()
	fs := types.AudioFeatureSet{FrameCount: 50, RhythmConsistency: 0.8}

	native := types.NonNativeDetection{NativeScore: 90}
	b := newFuser().Local(fs, native, 0)
	// native = round(90*0.4 + 25 + 25 + 8) = 94
	if b.Native != 94 {
		t.Fatalf("Native = %v, want 94", b.Native)
	}
	want := 90*0.3 + 100*0.2 + 100*0.2 + 94*0.3
	if math.Abs(b.Score-want) > 1e-9 {
		t.Fatalf("Score = %v, want %v", b.Score, want)
	}

	detected := types.NonNativeDetection{Detected: true, Weight: 70, NativeScore: 0}
	fs.RhythmConsistency = 0.4
	b = newFuser().Local(fs, detected, 0)
	if b.Acoustic != 30 || b.Rhythm != 50 || b.Phoneme != 60 {
		t.Fatalf("breakdown = %+v", b)
	}
}

func TestLocalAveragesReferenceScore(t *testing.T) {
	t.Parallel()
	fs := types.AudioFeatureSet{FrameCount: 10}
	b := newFuser().Local(fs, types.NonNativeDetection{NativeScore: 40}, 80)
	if b.Acoustic != 60 {
		t.Fatalf("Acoustic = %v, want 60", b.Acoustic)
	}
}

func TestLocalEmptyFeatures(t *testing.T) {
	t.Parallel()
	if b := newFuser().Local(types.AudioFeatureSet{}, types.NonNativeDetection{}, 90); b.Score != 0 {
		t.Fatalf("Score = %v, want 0 for empty features", b.Score)
	}
}

func TestWithRemote(t *testing.T) {
	t.Parallel()
	f := newFuser()
	local := Breakdown{Score: 60}
	ok := types.RemoteAssessment{Source: types.SourcePrimary, Recognized: true, Pronunciation: 90}

	tests := []struct {
		name    string
		localOK bool
		remote  types.RemoteAssessment
		want    float64
	}{
		{"blend", true, ok, 60*0.7 + 90*0.3},
		{"zero remote", true, types.RemoteAssessment{Recognized: true}, 60},
		{"demo ignored", true, types.RemoteAssessment{Source: types.SourceDemo, Recognized: true, Pronunciation: 75}, 60},
		{"remote only", false, ok, 90},
		{"demo only", false, types.RemoteAssessment{Source: types.SourceDemo, Pronunciation: 75}, 75},
		{"unrecognized only", false, types.RemoteAssessment{Grade: types.GradeF}, 0},
	}
	for _, tc := range tests {
		if got := f.WithRemote(local, tc.localOK, tc.remote); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: WithRemote = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestComparisonWeights(t *testing.T) {
	t.Parallel()
	s := types.ComparisonScores{TextAccuracy: 100, PhonemeAccuracy: 80, Prosody: 50, Stress: 100, Timing: 30}
	want := 30 + 24 + 10 + 10 + 3.0
	if got := newFuser().Comparison(s); math.Abs(got-want) > 1e-9 {
		t.Fatalf("Comparison = %v, want %v", got, want)
	}
}

func TestTiming(t *testing.T) {
	t.Parallel()
	f := newFuser()
	tests := []struct {
		d, expected, want float64
	}{
		{1.0, 0, 100},
		{1.4, 0, 50},
		{0.2, 0, 30},
		{3.5, 0, 30},
		{3.5, 2.0, 0},
		{2.0, 2.0, 100},
	}
	for _, tc := range tests {
		if got := f.Timing(tc.d, tc.expected); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Timing(%v, %v) = %v, want %v", tc.d, tc.expected, got, tc.want)
		}
	}
}

func TestPenalize(t *testing.T) {
	t.Parallel()
	f := newFuser()
	grades := config.DefaultTuning().Grades
	tests := []struct {
		name   string
		score  float64
		det    types.NonNativeDetection
		scale  config.GradeScale
		want   float64
		capped bool
	}{
		{"not detected", 95, types.NonNativeDetection{Confidence: 0.9}, grades.Comparison, 95, false},
		{"below threshold", 95, types.NonNativeDetection{Detected: true, Confidence: 0.2}, grades.Comparison, 95, false},
		{"soft cap", 100, types.NonNativeDetection{Detected: true, Confidence: 0.3}, grades.Comparison, 60, true},
		{"penalty only", 80, types.NonNativeDetection{Detected: true, Confidence: 0.3}, grades.Comparison, 62, false},
		{"hard cap", 100, types.NonNativeDetection{Detected: true, Confidence: 0.5}, grades.Comparison, 50, true},
		{"floored", 20, types.NonNativeDetection{Detected: true, Confidence: 1}, grades.Comparison, 0, false},
		{"remote soft ceiling", 100, types.NonNativeDetection{Detected: true, Confidence: 0.3}, grades.Remote, 79, true},
		{"remote penalty already C", 100, types.NonNativeDetection{Detected: true, Confidence: 0.5}, grades.Remote, 70, false},
		{"remote penalty already D", 95, types.NonNativeDetection{Detected: true, Confidence: 0.5}, grades.Remote, 65, false},
	}
	for _, tc := range tests {
		adj := f.Penalize(tc.score, tc.det, tc.scale)
		if math.Abs(adj.Score-tc.want) > 1e-9 || adj.Capped != tc.capped {
			t.Fatalf("%s: Penalize = %+v, want score %v capped %v", tc.name, adj, tc.want, tc.capped)
		}
	}
}

func TestConfidentDetectionNeverAboveC(t *testing.T) {
	t.Parallel()
	tuning := config.DefaultTuning()
	f := New(tuning.Fusion)
	scales := []config.GradeScale{tuning.Grades.Remote, tuning.Grades.Comparison}
	for conf := 0.5; conf <= 1.0; conf += 0.05 {
		det := types.NonNativeDetection{Detected: true, Confidence: conf}
		for score := 0.0; score <= 100; score += 2.5 {
			for _, scale := range scales {
				adj := f.Penalize(score, det, scale)
				g := grading.Letter(adj.Score, scale)
				if g == types.GradeA || g == types.GradeB {
					t.Fatalf("conf %.2f score %v: grade %s after penalty (%v)", conf, score, g, adj.Score)
				}
			}
		}
	}
}

// On the remote scale the configured cap scores grade below C, so the cap
// must only clamp to the top of C: it never lowers a C or D further, and
// higher fused scores never end lower.
func TestRemoteCapKeepsGradeAndOrder(t *testing.T) {
	t.Parallel()
	tuning := config.DefaultTuning()
	f := New(tuning.Fusion)
	scale := tuning.Grades.Remote
	for _, conf := range []float64{0.25, 0.3, 0.45, 0.5, 0.75, 1} {
		det := types.NonNativeDetection{Detected: true, Confidence: conf}
		prev := -1.0
		for score := 0.0; score <= 100; score += 0.5 {
			adj := f.Penalize(score, det, scale)
			if adj.Score < prev {
				t.Fatalf("conf %.2f: Penalize(%v) = %v, below Penalize of a lower score (%v)", conf, score, adj.Score, prev)
			}
			prev = adj.Score

			penalized := math.Max(0, score-adj.Penalty)
			before := grading.Letter(penalized, scale)
			after := grading.Letter(adj.Score, scale)
			if before >= types.GradeC && after != before {
				t.Fatalf("conf %.2f score %v: grade %s became %s", conf, score, before, after)
			}
			if after < types.GradeC {
				t.Fatalf("conf %.2f score %v: grade %s above C", conf, score, after)
			}
		}
	}
}

func TestCapIsIndependentOfPenalty(t *testing.T) {
	t.Parallel()
	f := newFuser()
	grades := config.DefaultTuning().Grades
	tests := []struct {
		score, conf float64
		scale       config.GradeScale
		want        float64
		capped      bool
	}{
		{99, 0.9, grades.Comparison, 50, true},
		{55, 0.9, grades.Comparison, 55, false},
		{71, 0.3, grades.Comparison, 60, true},
		{99, 0.9, grades.Remote, 79, true},
		{75, 0.9, grades.Remote, 75, false},
		{55, 0.3, grades.Remote, 55, false},
	}
	for _, tc := range tests {
		if got, capped := f.Cap(tc.score, tc.conf, tc.scale); got != tc.want || capped != tc.capped {
			t.Fatalf("Cap(%v, %v) = %v, %v, want %v, %v", tc.score, tc.conf, got, capped, tc.want, tc.capped)
		}
	}
}

func TestConfident(t *testing.T) {
	t.Parallel()
	f := newFuser()
	if f.Confident(types.NonNativeDetection{Detected: true, Confidence: 0.5}) {
		t.Fatal("Confident(0.5) = true, want strictly above")
	}
	if !f.Confident(types.NonNativeDetection{}, types.NonNativeDetection{Detected: true, Confidence: 0.6}) {
		t.Fatal("Confident(0, 0.6) = false")
	}
}
