package processor

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"pronounce-go/internal/classifier"
	"pronounce-go/internal/fusion"
	"pronounce-go/internal/grading"
	"pronounce-go/internal/textsim"
	"pronounce-go/internal/types"
)

// Compare scores a recording against the reference phrase by text,
// phoneme sketch, prosody, stress and timing. The remote ladder only runs
// when the caller did not supply the recognized text.
func (e *Engine) Compare(ctx context.Context, req Request) (types.Comparison, error) {
	if err := req.validate(); err != nil {
		return types.Comparison{}, err
	}
	ctx, span := startPipeline(ctx, "compare")
	defer span.End()
	start := time.Now()

	in, err := e.gather(ctx, req, strings.TrimSpace(req.RecognizedText) == "")
	if err != nil {
		return types.Comparison{}, err
	}
	c := e.comparison(ctx, in)
	e.metrics.RecordDuration(ctx, "compare", time.Since(start).Seconds())
	return c, nil
}

// recognized is the caller supplied text, or the remote text when it is a
// real recognition.
func (in inputs) recognized() string {
	if t := strings.TrimSpace(in.req.RecognizedText); t != "" {
		return t
	}
	if in.remoteRan && !in.remote.Degraded() {
		return in.remote.RecognizedText
	}
	return ""
}

func (e *Engine) comparison(ctx context.Context, in inputs) types.Comparison {
	l := in.local
	recognized := in.recognized()
	c := types.Comparison{
		RecognizedText: recognized,
		ReferenceText:  in.req.Reference,
		Diagnostics:    e.diagnostics(l),
	}

	var s types.ComparisonScores
	var text types.NonNativeDetection
	if recognized != "" {
		s.TextAccuracy = fusion.Round(textAccuracy(recognized, in.req.Reference))
		s.PhonemeAccuracy = fusion.Round(textsim.SketchAccuracy(recognized, in.req.Reference))
		text = classifier.DetectText(recognized, in.req.Reference, e.prosodySignals(in), e.tuning.TextDetector)
		c.Diagnostics.Text = &text
		if text.Detected {
			e.metrics.RecordDetection(ctx, types.DetectorText)
		}
	}

	switch {
	case l.refErr == nil && l.reference.Score > 0:
		s.Prosody = l.reference.Score
	case l.analyzable():
		s.Prosody = l.features.Scores.Prosody
	}
	if l.analyzable() {
		s.Stress = l.features.Scores.StressPattern
	} else {
		s.Stress = fusion.Round(capitalizationStress(recognized, in.req.Reference))
	}
	s.Timing = fusion.Round(e.fuser.Timing(l.clip.Duration(), l.reference.ReferenceSec))
	c.Scores = s

	breakdown := e.fuser.Local(l.features, l.acoustic, float64(l.reference.Score))
	c.Diagnostics.LocalComposite = fusion.Round(breakdown.Score)

	adj := e.fuser.Penalize(e.fuser.Comparison(s), text, e.tuning.Grades.Comparison)
	c.Diagnostics.PenaltyApplied = adj.Penalty
	c.Diagnostics.CapApplied = adj.Capped

	c.OverallScore = fusion.Round(adj.Score)
	c.Grade = grading.Letter(adj.Score, e.tuning.Grades.Comparison)
	c.GradeDescription = grading.Description(c.Grade)

	fb := e.fb.Comparison(s, c.Grade, text)
	c.Improvements, c.Positives = fb.Improvements, fb.Positives

	e.log.WithFields(logrus.Fields{
		"pipeline": "compare",
		"score":    c.OverallScore,
		"grade":    c.Grade,
		"penalty":  adj.Penalty,
	}).Info("comparison completed")
	return c
}

// textAccuracy is the punctuation-insensitive similarity scaled to 0..100.
func textAccuracy(recognized, reference string) float64 {
	a, b := textsim.Normalize(recognized), textsim.Normalize(reference)
	if a == b {
		return 100
	}
	return textsim.Similarity(a, b) * 100
}

// capitalizationStress is the text-only stress estimate: full marks when
// both texts agree on carrying capital letters.
func capitalizationStress(recognized, reference string) float64 {
	if hasUpper(recognized) == hasUpper(reference) {
		return 100
	}
	return 70
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
