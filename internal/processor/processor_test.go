package processor

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"pronounce-go/internal/audio"
	"pronounce-go/internal/comparator"
	"pronounce-go/internal/config"
	"pronounce-go/internal/extractor"
	"pronounce-go/internal/grading"
	"pronounce-go/internal/types"
)

const rate = 16000

type fakeRemote struct {
	res   types.RemoteAssessment
	calls atomic.Int32
}

func (f *fakeRemote) Assess(_ context.Context, _ []byte, _ string) types.RemoteAssessment {
	f.calls.Add(1)
	return f.res
}

func demoRemote() *fakeRemote {
	return &fakeRemote{res: types.RemoteAssessment{
		Source: types.SourceDemo, RecognizedText: "Demo recognition result",
		Accuracy: 72, Fluency: 78, Completeness: 75, Pronunciation: 75,
		Recognized: true, Grade: types.GradeC, Error: "provider down",
	}}
}

// syllables is a voiced 150 Hz signal with four energy bursts.
func syllables() []float64 {
	var out []float64
	for b := 0; b < 4; b++ {
		for i := 0; i < rate/6; i++ {
			t := float64(i) / rate
			out = append(out, 0.6*math.Sin(2*math.Pi*(150+40*t)*t)+0.2*math.Sin(2*math.Pi*900*t))
		}
		out = append(out, make([]float64, rate/10)...)
	}
	return out
}

func wavBytes(t *testing.T, samples []float64) []byte {
	t.Helper()
	b, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return b
}

func newEngine(t *testing.T, remote Assessor, withReference bool) *Engine {
	t.Helper()
	tuning := config.DefaultTuning()
	ex := extractor.New(tuning.Extractor, nil)
	store := comparator.NewStore()
	if withReference {
		raw, err := audio.DecodeWAV(wavBytes(t, syllables()))
		if err != nil {
			t.Fatalf("DecodeWAV: %v", err)
		}
		clip := raw.Prepared(tuning.Extractor.TrimThreshold)
		store = comparator.NewStore(&comparator.Entry{
			PhraseID: "p-001", Text: "Hello", Key: "hello",
			SampleRate: rate, Duration: clip.Duration(),
			Sequence: ex.Sequence(clip), Clip: clip,
		})
	}
	return New(tuning, store, remote, WithExtractor(ex))
}

func inRange(t *testing.T, name string, v int) {
	t.Helper()
	if v < 0 || v > 100 {
		t.Fatalf("%s = %d, want within [0,100]", name, v)
	}
}

func TestInputErrorsSkipRemote(t *testing.T) {
	t.Parallel()
	remote := demoRemote()
	e := newEngine(t, remote, false)
	if _, err := e.Evaluate(context.Background(), Request{Reference: "hello"}); !errors.Is(err, ErrMissingAudio) {
		t.Fatalf("Evaluate(no audio) error = %v, want ErrMissingAudio", err)
	}
	if _, err := e.Compare(context.Background(), Request{Audio: []byte("x"), Reference: "  "}); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("Compare(no reference) error = %v, want ErrMissingReference", err)
	}
	if _, err := e.Assess(context.Background(), Request{}); err == nil {
		t.Fatal("Assess(empty) error = nil")
	}
	if n := remote.calls.Load(); n != 0 {
		t.Fatalf("remote called %d times, want 0", n)
	}
}

func TestEvaluateOutageWithUndecodableAudio(t *testing.T) {
	t.Parallel()
	ev, err := newEngine(t, demoRemote(), false).Evaluate(context.Background(), Request{Audio: []byte("not a wav"), Reference: "hello"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.OverallScore != 75 || ev.Grade != types.GradeC {
		t.Fatalf("evaluation = %d %s, want 75 C", ev.OverallScore, ev.Grade)
	}
	if ev.Error == "" || ev.Remote.Source != types.SourceDemo {
		t.Fatalf("evaluation error = %q source %q, want labeled demo", ev.Error, ev.Remote.Source)
	}
	if ev.Diagnostics.AudioError == "" || ev.Diagnostics.Features != nil {
		t.Fatalf("diagnostics = %+v, want audio error and no features", ev.Diagnostics)
	}
}

// A provider outage on analyzable audio keeps the local composite as the
// score; the placeholder only labels the response.
func TestEvaluateOutageWithAnalyzableAudio(t *testing.T) {
	t.Parallel()
	for _, withReference := range []bool{false, true} {
		ev, err := newEngine(t, demoRemote(), withReference).Evaluate(context.Background(), Request{Audio: wavBytes(t, syllables()), Reference: "Hello"})
		if err != nil {
			t.Fatalf("Evaluate(reference %v): %v", withReference, err)
		}
		d := ev.Diagnostics
		if ev.Error != "provider down" || ev.Remote.Source != types.SourceDemo {
			t.Fatalf("reference %v: error = %q source %q, want labeled demo", withReference, ev.Error, ev.Remote.Source)
		}
		if d.Features == nil || d.AudioError != "" {
			t.Fatalf("reference %v: diagnostics = %+v, want analyzed audio", withReference, d)
		}
		if withReference && d.ReferenceScore != 100 {
			t.Fatalf("reference score = %d, want 100 against its own recording", d.ReferenceScore)
		}
		if d.Text != nil {
			t.Fatalf("reference %v: text detection ran on a placeholder result", withReference)
		}
		inRange(t, "OverallScore", ev.OverallScore)
		switch {
		case d.PenaltyApplied == 0 && ev.OverallScore != d.LocalComposite:
			t.Fatalf("reference %v: OverallScore = %d, want local composite %d", withReference, ev.OverallScore, d.LocalComposite)
		case d.PenaltyApplied > 0 && ev.OverallScore > d.LocalComposite:
			t.Fatalf("reference %v: OverallScore = %d above local composite %d", withReference, ev.OverallScore, d.LocalComposite)
		}
		if want := grading.Letter(float64(ev.OverallScore), config.DefaultTuning().Grades.Remote); ev.Grade != want {
			t.Fatalf("reference %v: Grade = %s, want %s", withReference, ev.Grade, want)
		}
	}
}

func TestEvaluateUnrecognizedIsGradeF(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{res: types.RemoteAssessment{Source: types.SourcePrimary, Grade: types.GradeF}}
	ev, err := newEngine(t, remote, false).Evaluate(context.Background(), Request{Audio: wavBytes(t, syllables()), Reference: "hello"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Grade != types.GradeF || ev.OverallScore != 0 {
		t.Fatalf("evaluation = %d %s, want 0 F", ev.OverallScore, ev.Grade)
	}
	if len(ev.Improvements) == 0 {
		t.Fatal("no improvements for an unrecognized recording")
	}
}

func TestEvaluateFusesLocalReferenceAndRemote(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{res: types.RemoteAssessment{
		Source: types.SourcePrimary, RecognizedText: "Hello.", Recognized: true,
		Accuracy: 90, Fluency: 90, Completeness: 100, Pronunciation: 92,
	}}
	ev, err := newEngine(t, remote, true).Evaluate(context.Background(), Request{Audio: wavBytes(t, syllables()), Reference: "Hello"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d := ev.Diagnostics
	if d.Features == nil || d.Features.Empty() {
		t.Fatal("features missing for decodable audio")
	}
	if d.ReferenceScore != 100 || d.ReferenceError != "" {
		t.Fatalf("reference = %d (%q), want 100 against its own recording", d.ReferenceScore, d.ReferenceError)
	}
	if d.Text == nil || d.Text.Detected {
		t.Fatalf("text detection = %+v, want clean run", d.Text)
	}
	inRange(t, "OverallScore", ev.OverallScore)
	inRange(t, "LocalComposite", d.LocalComposite)
	if !d.Acoustic.Detected {
		want := int(math.Round(float64(d.LocalComposite)*0.7 + 92*0.3))
		if diff := ev.OverallScore - want; diff < -1 || diff > 1 {
			t.Fatalf("OverallScore = %d, want ~%d", ev.OverallScore, want)
		}
	}
}

func TestCompareWithSuppliedText(t *testing.T) {
	t.Parallel()
	remote := demoRemote()
	c, err := newEngine(t, remote, false).Compare(context.Background(), Request{
		Audio: []byte("garbage"), Reference: "hello", RecognizedText: "hello",
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	want := types.ComparisonScores{TextAccuracy: 100, PhonemeAccuracy: 100, Prosody: 0, Stress: 100, Timing: 30}
	if c.Scores != want {
		t.Fatalf("Scores = %+v, want %+v", c.Scores, want)
	}
	if c.OverallScore != 73 || c.Grade != types.GradeC {
		t.Fatalf("comparison = %d %s, want 73 C", c.OverallScore, c.Grade)
	}
	if remote.calls.Load() != 0 {
		t.Fatal("remote called although the recognized text was supplied")
	}
}

func TestCompareTransliteratedTextIsPenalized(t *testing.T) {
	t.Parallel()
	c, err := newEngine(t, demoRemote(), false).Compare(context.Background(), Request{
		Audio: []byte("garbage"), Reference: "thank you", RecognizedText: "sankyuu",
		Prosody: []byte(`{"SNR": 12, "Confidence": 0.5}`),
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if c.Diagnostics.Text == nil || !c.Diagnostics.Text.Detected {
		t.Fatalf("text detection = %+v, want detected", c.Diagnostics.Text)
	}
	if c.Diagnostics.PenaltyApplied == 0 {
		t.Fatal("no penalty applied")
	}
	if c.Grade < types.GradeC {
		t.Fatalf("Grade = %s, want C or worse", c.Grade)
	}
	if c.Improvements[0] != "Avoid katakana-style pronunciation and practice the native sounds" {
		t.Fatalf("Improvements = %v, want remediation first", c.Improvements)
	}
}

func TestAssessConfidentDetectionCapsGrade(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{res: types.RemoteAssessment{
		Source: types.SourcePrimary, RecognizedText: "harou", Recognized: true,
		Accuracy: 95, Fluency: 95, Completeness: 100, Pronunciation: 95,
	}}
	a, err := newEngine(t, remote, false).Assess(context.Background(), Request{Audio: []byte("garbage"), Reference: "hello"})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !a.NonNativeCapped {
		t.Fatal("NonNativeCapped = false")
	}
	if a.Grade < types.GradeC {
		t.Fatalf("Grade = %s, want C or worse", a.Grade)
	}
	lower := min(a.Evaluation.OverallScore, a.Comparison.OverallScore)
	if a.OverallScore != lower {
		t.Fatalf("OverallScore = %d, want min(%d, %d)", a.OverallScore, a.Evaluation.OverallScore, a.Comparison.OverallScore)
	}
	if a.ID == "" || remote.calls.Load() != 1 {
		t.Fatalf("id %q, remote calls %d: want an id and a single remote call", a.ID, remote.calls.Load())
	}
}

func TestAssessCleanRunKeepsEvaluation(t *testing.T) {
	t.Parallel()
	remote := &fakeRemote{res: types.RemoteAssessment{
		Source: types.SourceMock, RecognizedText: "hello", Recognized: true,
		Accuracy: 85, Fluency: 80, Completeness: 90, Pronunciation: 84,
	}}
	a, err := newEngine(t, remote, false).Assess(context.Background(), Request{Audio: []byte("garbage"), Reference: "hello"})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.NonNativeCapped || a.OverallScore != a.Evaluation.OverallScore || a.Grade != a.Evaluation.Grade {
		t.Fatalf("assessment = %+v, want the evaluation verdict", a)
	}
	if a.OverallScore != 84 || a.Grade != types.GradeB {
		t.Fatalf("verdict = %d %s, want 84 B", a.OverallScore, a.Grade)
	}
}

func TestAssessCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newEngine(t, demoRemote(), false).Assess(ctx, Request{Audio: []byte("x"), Reference: "hello"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Assess error = %v, want context.Canceled", err)
	}
}

func TestCalibrate(t *testing.T) {
	t.Parallel()
	rows, err := newEngine(t, demoRemote(), true).Calibrate(context.Background())
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.PhraseID != "p-001" || r.SelfScore != 100 {
		t.Fatalf("row = %+v, want p-001 with self score 100", r)
	}
	inRange(t, "LocalComposite", r.LocalComposite)
}
