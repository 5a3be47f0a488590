// Package processor orchestrates one assessment request: local acoustic
// analysis and the remote ladder run concurrently and their outputs are
// fused into evaluations, comparisons and the unified verdict.
package processor

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pronounce-go/internal/audio"
	"pronounce-go/internal/classifier"
	"pronounce-go/internal/comparator"
	"pronounce-go/internal/config"
	"pronounce-go/internal/extractor"
	"pronounce-go/internal/feedback"
	"pronounce-go/internal/fusion"
	"pronounce-go/internal/logger"
	"pronounce-go/internal/observe"
	"pronounce-go/internal/transcription"
	"pronounce-go/internal/types"
)

// Input errors. Nothing is sent to the provider when one is returned.
var (
	ErrMissingAudio     = errors.New("audio file is required")
	ErrMissingReference = errors.New("reference text is required")
)

// Assessor is the remote assessment client.
type Assessor interface {
	Assess(ctx context.Context, wav []byte, reference string) types.RemoteAssessment
}

// Request is one consumer request. RecognizedText and Prosody are optional
// and only used by the comparison pipeline.
type Request struct {
	Audio          []byte
	Reference      string
	RecognizedText string
	Prosody        []byte
}

func (r Request) validate() error {
	if len(r.Audio) == 0 {
		return ErrMissingAudio
	}
	if strings.TrimSpace(r.Reference) == "" {
		return ErrMissingReference
	}
	return nil
}

type Engine struct {
	tuning  config.Tuning
	ex      *extractor.Extractor
	store   *comparator.Store
	cmp     *comparator.Comparator
	remote  Assessor
	fuser   *fusion.Fuser
	fb      *feedback.Generator
	metrics *observe.Metrics
	log     *logrus.Entry
}

type Option func(*Engine)

func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) { e.log = l }
}

// WithExtractor shares an extractor, typically the one the reference store
// was loaded with.
func WithExtractor(ex *extractor.Extractor) Option {
	return func(e *Engine) { e.ex = ex }
}

func New(t config.Tuning, store *comparator.Store, remote Assessor, opts ...Option) *Engine {
	e := &Engine{
		tuning: t,
		store:  store,
		remote: remote,
		fuser:  fusion.New(t.Fusion),
		fb:     feedback.New(t.Feedback),
		log:    logger.Discard(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.WithField("component", "processor")
	if e.ex == nil {
		e.ex = extractor.New(t.Extractor, e.log)
	}
	e.cmp = comparator.New(t.Comparator, e.ex, store, e.log)
	return e
}

// local is the request scoped result of the acoustic branch.
type local struct {
	clip      audio.Clip
	features  types.AudioFeatureSet
	acoustic  types.NonNativeDetection
	reference comparator.Result
	refErr    error
	audioErr  error
}

func (l local) analyzable() bool { return l.audioErr == nil && !l.features.Empty() }

// inputs is everything the pipelines fuse.
type inputs struct {
	req    Request
	local  local
	remote types.RemoteAssessment
	// remoteRan is false when the comparison pipeline had its text supplied
	remoteRan bool
}

// gather decodes the upload and runs the acoustic branch and, if asked,
// the remote ladder concurrently.
func (e *Engine) gather(ctx context.Context, req Request, withRemote bool) (inputs, error) {
	in := inputs{req: req, remoteRan: withRemote}
	clip, decodeErr := audio.DecodeWAV(req.Audio)
	payload := req.Audio
	if decodeErr == nil {
		if p, err := audio.ProviderPayload(req.Audio, clip); err == nil {
			payload = p
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		in.local = e.analyze(gctx, clip, decodeErr, req.Reference)
		return nil
	})
	if withRemote {
		g.Go(func() error {
			in.remote = e.remote.Assess(gctx, payload, req.Reference)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

// analyze extracts features, then classifies and compares in parallel.
func (e *Engine) analyze(ctx context.Context, raw audio.Clip, decodeErr error, reference string) local {
	ctx, span := observe.StartSpan(ctx, "processor.analyze")
	defer span.End()

	l := local{audioErr: decodeErr}
	if decodeErr != nil {
		e.log.WithError(decodeErr).Warn("audio could not be decoded, local analysis skipped")
		l.refErr = decodeErr
		return l
	}
	l.clip = raw.Prepared(e.tuning.Extractor.TrimThreshold)
	l.features = e.ex.Extract(l.clip)

	var g errgroup.Group
	g.Go(func() error {
		l.features.Scores = classifier.Score(l.features)
		l.acoustic = classifier.DetectAcoustic(l.features, e.tuning.Detector)
		return nil
	})
	g.Go(func() error {
		l.reference, l.refErr = e.cmp.Compare(l.clip, reference)
		return nil
	})
	_ = g.Wait()

	switch {
	case l.refErr == nil:
		e.metrics.RecordReference(ctx, "hit")
	case errors.Is(l.refErr, comparator.ErrReferenceNotFound):
		e.metrics.RecordReference(ctx, "miss")
	default:
		e.metrics.RecordReference(ctx, "error")
	}
	if l.acoustic.Detected {
		e.metrics.RecordDetection(ctx, types.DetectorAcoustic)
	}
	return l
}

// strongest returns the detected detection with the highest confidence.
func strongest(dets ...types.NonNativeDetection) types.NonNativeDetection {
	var best types.NonNativeDetection
	for _, d := range dets {
		if d.Detected && d.Confidence > best.Confidence {
			best = d
		}
	}
	return best
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// prosodySignals prefers a caller supplied prosody blob over the signals of
// the remote result.
func (e *Engine) prosodySignals(in inputs) types.ProsodySignals {
	if len(in.req.Prosody) > 0 {
		sig, err := transcription.ParseProsody(in.req.Prosody)
		if err == nil {
			return sig
		}
		e.log.WithError(err).Warn("prosody blob ignored")
	}
	if in.remoteRan && !in.remote.Degraded() {
		return in.remote.Signals
	}
	return types.ProsodySignals{}
}
