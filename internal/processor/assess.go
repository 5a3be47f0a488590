package processor

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pronounce-go/internal/classifier"
	"pronounce-go/internal/fusion"
	"pronounce-go/internal/grading"
	"pronounce-go/internal/observe"
	"pronounce-go/internal/types"
)

func startPipeline(ctx context.Context, name string) (context.Context, trace.Span) {
	return observe.StartSpan(ctx, "processor."+name, trace.WithAttributes(attribute.String("pipeline", name)))
}

// Assess runs both pipelines over a single decode and remote call. A
// confident non-native detection from any detector caps the verdict at C
// and takes the lower of the two scores; otherwise the evaluation stands.
func (e *Engine) Assess(ctx context.Context, req Request) (types.Assessment, error) {
	if err := req.validate(); err != nil {
		return types.Assessment{}, err
	}
	ctx, span := startPipeline(ctx, "assess")
	defer span.End()
	start := time.Now()

	in, err := e.gather(ctx, req, true)
	if err != nil {
		return types.Assessment{}, err
	}
	a := types.Assessment{
		ID:         uuid.New().String(),
		Evaluation: e.evaluation(ctx, in),
		Comparison: e.comparison(ctx, in),
	}
	a.OverallScore = a.Evaluation.OverallScore
	a.Grade = a.Evaluation.Grade

	dets := []types.NonNativeDetection{a.Evaluation.Diagnostics.Acoustic}
	for _, d := range []*types.NonNativeDetection{a.Evaluation.Diagnostics.Text, a.Comparison.Diagnostics.Text} {
		if d != nil {
			dets = append(dets, *d)
		}
	}
	if e.fuser.Confident(dets...) {
		if a.Comparison.OverallScore < a.OverallScore {
			a.OverallScore = a.Comparison.OverallScore
		}
		a.Grade = grading.AtMost(grading.Letter(float64(a.OverallScore), e.tuning.Grades.Remote), types.GradeC)
		if a.Evaluation.Grade == types.GradeF {
			a.Grade = types.GradeF
		}
		a.NonNativeCapped = true
	}
	a.GradeDescription = grading.Description(a.Grade)
	a.DurationMs = time.Since(start).Milliseconds()

	span.SetAttributes(attribute.String("assessment.grade", string(a.Grade)))
	e.metrics.RecordDuration(ctx, "assess", time.Since(start).Seconds())
	e.log.WithFields(logrus.Fields{
		"assessment_id": a.ID,
		"score":         a.OverallScore,
		"grade":         a.Grade,
		"capped":        a.NonNativeCapped,
		"duration_ms":   a.DurationMs,
	}).Info("assessment completed")
	return a, nil
}

// Calibrate runs every reference recording through the local pipeline and a
// self comparison. Rows are ordered by phrase id.
func (e *Engine) Calibrate(ctx context.Context) ([]types.CalibrationRow, error) {
	entries := e.store.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].PhraseID < entries[j].PhraseID })
	rows := make([]types.CalibrationRow, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fs := e.ex.Extract(entry.Clip)
			fs.Scores = classifier.Score(fs)
			det := classifier.DetectAcoustic(fs, e.tuning.Detector)
			self, err := e.cmp.CompareSequences(entry.Sequence, entry.SampleRate, entry.Sequence, entry.SampleRate)
			if err != nil {
				e.log.WithError(err).WithField("phrase_id", entry.PhraseID).Warn("self comparison failed")
			}
			composite := e.fuser.Local(fs, det, float64(self.Score)).Score
			rows[i] = types.CalibrationRow{
				PhraseID:       entry.PhraseID,
				Text:           entry.Text,
				DurationSec:    fs.DurationSec,
				Syllables:      fs.SyllableCount,
				Quality:        fs.Scores,
				Detected:       det.Detected,
				Confidence:     det.Confidence,
				Patterns:       det.Patterns,
				SelfScore:      self.Score,
				LocalComposite: fusion.Round(composite),
				Grade:          grading.Letter(composite, e.tuning.Grades.Remote),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
