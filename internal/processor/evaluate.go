package processor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"pronounce-go/internal/classifier"
	"pronounce-go/internal/fusion"
	"pronounce-go/internal/grading"
	"pronounce-go/internal/types"
)

// Evaluate is the remote-augmented assessment of one recording.
func (e *Engine) Evaluate(ctx context.Context, req Request) (types.Evaluation, error) {
	if err := req.validate(); err != nil {
		return types.Evaluation{}, err
	}
	ctx, span := startPipeline(ctx, "evaluate")
	defer span.End()
	start := time.Now()

	in, err := e.gather(ctx, req, true)
	if err != nil {
		return types.Evaluation{}, err
	}
	ev := e.evaluation(ctx, in)
	e.metrics.RecordDuration(ctx, "evaluate", time.Since(start).Seconds())
	return ev, nil
}

func (e *Engine) evaluation(ctx context.Context, in inputs) types.Evaluation {
	r := in.remote
	l := in.local
	ev := types.Evaluation{
		Pronunciation:  fusion.Round(r.Pronunciation),
		Accuracy:       fusion.Round(r.Accuracy),
		Fluency:        fusion.Round(r.Fluency),
		Completeness:   fusion.Round(r.Completeness),
		RecognizedText: r.RecognizedText,
		Words:          r.Words,
		Remote:         r,
		Error:          r.Error,
		Diagnostics:    e.diagnostics(l),
	}

	if r.Grade == types.GradeF {
		fb := e.fb.Unrecognized()
		ev.Grade = types.GradeF
		ev.GradeDescription = grading.Description(types.GradeF)
		ev.Improvements, ev.Positives = fb.Improvements, fb.Positives
		return ev
	}

	breakdown := e.fuser.Local(l.features, l.acoustic, float64(l.reference.Score))
	ev.Diagnostics.LocalComposite = fusion.Round(breakdown.Score)
	score := e.fuser.WithRemote(breakdown, l.analyzable(), r)

	dets := []types.NonNativeDetection{l.acoustic}
	if !r.Degraded() && r.RecognizedText != "" {
		text := classifier.DetectText(r.RecognizedText, in.req.Reference, e.prosodySignals(in), e.tuning.TextDetector)
		ev.Diagnostics.Text = &text
		dets = append(dets, text)
		if text.Detected {
			e.metrics.RecordDetection(ctx, types.DetectorText)
		}
	}
	adj := e.fuser.Penalize(score, strongest(dets...), e.tuning.Grades.Remote)
	ev.Diagnostics.PenaltyApplied = adj.Penalty
	ev.Diagnostics.CapApplied = adj.Capped

	ev.OverallScore = fusion.Round(adj.Score)
	ev.Grade = grading.Letter(adj.Score, e.tuning.Grades.Remote)
	ev.GradeDescription = grading.Description(ev.Grade)

	fb := e.fb.Evaluation(r.Accuracy, r.Fluency, r.Completeness, r.Words, ev.Grade, dets...)
	ev.Improvements, ev.Positives = fb.Improvements, fb.Positives

	e.log.WithFields(logrus.Fields{
		"pipeline": "evaluate",
		"source":   r.Source,
		"score":    ev.OverallScore,
		"grade":    ev.Grade,
		"penalty":  adj.Penalty,
		"capped":   adj.Capped,
	}).Info("evaluation completed")
	return ev
}

func (e *Engine) diagnostics(l local) types.Diagnostics {
	d := types.Diagnostics{
		Acoustic:       l.acoustic,
		ReferenceScore: l.reference.Score,
		ReferenceError: errText(l.refErr),
		AudioError:     errText(l.audioErr),
	}
	if d.Acoustic.Patterns == nil {
		d.Acoustic = types.NonNativeDetection{Source: types.DetectorAcoustic, Patterns: []string{}}
	}
	if l.audioErr == nil {
		fs := l.features
		d.Features = &fs
	}
	return d
}
