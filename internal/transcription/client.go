// Package transcription is the remote pronunciation assessment client. A
// request walks a fixed ladder (comprehensive assessment, reduced
// assessment, plain transcription, demo result) and always yields a result.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pronounce-go/internal/config"
	"pronounce-go/internal/grading"
	"pronounce-go/internal/logger"
	"pronounce-go/internal/observe"
	"pronounce-go/internal/types"
)

// ErrStatus is wrapped by every non-2xx provider answer.
var ErrStatus = errors.New("provider returned non-2xx status")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d %s", ErrStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

const maxBody = 4 << 20

type Client struct {
	endpoint string
	key      string
	language string
	timeout  time.Duration
	retries  uint64
	mock     bool
	// configErr short-circuits every call to the demo result.
	configErr error

	grades  config.GradeScale
	http    *http.Client
	metrics *observe.Metrics
	log     *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client from the service configuration. Missing credentials
// are not fatal here; see Ready.
func New(svc config.Service, grades config.GradeScale, opts ...Option) *Client {
	c := &Client{
		endpoint:  svc.Endpoint(),
		key:       svc.SpeechKey,
		language:  svc.Language,
		timeout:   svc.AttemptTimeout,
		retries:   svc.AttemptRetries,
		mock:      svc.MockSpeech,
		configErr: svc.Validate(),
		grades:    grades,
		http:      &http.Client{},
		log:       logger.Discard(),
	}
	if c.language == "" {
		c.language = "en-US"
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.WithField("component", "transcription")
	return c
}

// Ready returns the configuration error, if any.
func (c *Client) Ready() error { return c.configErr }

// Assess runs the fallback ladder for one recording. It never fails: the
// last resort is a demo result carrying the error that caused it.
func (c *Client) Assess(ctx context.Context, wav []byte, reference string) types.RemoteAssessment {
	if c.mock {
		c.metrics.RecordOutcome(ctx, types.SourceMock)
		return mockResult(reference)
	}
	if c.configErr != nil {
		c.metrics.RecordOutcome(ctx, types.SourceDemo)
		return demoResult(c.configErr)
	}

	var lastErr error
	for st := stagePrimary; st != stageDemo; st = c.next(ctx, st) {
		res, err := c.attempt(ctx, st, wav, reference)
		if err == nil {
			res.Source = st.source()
			if res.Grade == "" {
				res.Grade = grading.Letter(res.Pronunciation, c.grades)
			}
			c.metrics.RecordOutcome(ctx, res.Source)
			c.log.WithFields(logrus.Fields{
				"stage":       st.String(),
				"recognized":  res.Recognized,
				"synthesized": res.Synthesized,
				"score":       res.Pronunciation,
			}).Info("remote assessment completed")
			return res
		}
		lastErr = err
		c.log.WithFields(logrus.Fields{
			"stage": st.String(),
			"error": err.Error(),
		}).Warn("remote attempt failed, falling back")
	}

	c.metrics.RecordOutcome(ctx, types.SourceDemo)
	c.log.WithField("error", errString(lastErr)).Error("remote assessment unavailable, returning demo result")
	return demoResult(lastErr)
}

// next is the failure transition. A cancelled request skips the remaining
// network stages.
func (c *Client) next(ctx context.Context, st stage) stage {
	if ctx.Err() != nil {
		return stageDemo
	}
	return st + 1
}

func (c *Client) attempt(ctx context.Context, st stage, wav []byte, reference string) (types.RemoteAssessment, error) {
	ctx, span := observe.StartSpan(ctx, "transcription."+st.String())
	defer span.End()

	var body []byte
	op := func() error {
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		b, err := c.do(actx, st, wav, reference)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	err := backoff.Retry(op, policy)

	var res types.RemoteAssessment
	if err == nil {
		if st == stageTranscribe {
			res, err = transcribed(body, reference)
		} else {
			res, err = decodeAssessment(body, reference)
		}
	}

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("ladder.status", status))
	c.metrics.RecordAttempt(ctx, st.String(), status)
	return res, err
}

// do performs one HTTP exchange. Client errors (4xx) are permanent for the
// retry policy; everything else may be retried.
func (c *Client) do(ctx context.Context, st stage, wav []byte, reference string) ([]byte, error) {
	req, err := c.newRequest(ctx, st, wav, reference)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(serr)
		}
		return nil, serr
	}
	return body, nil
}

func transcribed(body []byte, reference string) (types.RemoteAssessment, error) {
	text, signals, err := decodeTranscript(body)
	if err != nil {
		return types.RemoteAssessment{}, err
	}
	res := types.RemoteAssessment{
		RecognizedText: text,
		Recognized:     true,
		Signals:        signals,
	}
	fromSimilarity(&res, reference)
	return res, nil
}

func demoResult(cause error) types.RemoteAssessment {
	return types.RemoteAssessment{
		Source:         types.SourceDemo,
		RecognizedText: "Demo recognition result",
		Accuracy:       72,
		Fluency:        78,
		Completeness:   75,
		Pronunciation:  75,
		Recognized:     true,
		Grade:          types.GradeC,
		Error:          errString(cause),
	}
}

func mockResult(reference string) types.RemoteAssessment {
	return types.RemoteAssessment{
		Source:         types.SourceMock,
		RecognizedText: reference,
		Accuracy:       85,
		Fluency:        80,
		Completeness:   90,
		Pronunciation:  84,
		Recognized:     true,
		Grade:          types.GradeB,
	}
}

func errString(err error) string {
	if err == nil {
		return "remote assessment unavailable"
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
