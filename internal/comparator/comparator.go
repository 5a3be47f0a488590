// Package comparator scores a user utterance against a pre-recorded
// reference of the same phrase by aligning cepstral sequences.
package comparator

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"pronounce-go/internal/audio"
	"pronounce-go/internal/config"
	"pronounce-go/internal/extractor"
	"pronounce-go/internal/logger"
)

var ErrTooShort = errors.New("comparator: sequence too short")

// ErrReversed marks a recording whose frame order aligns better backwards.
var ErrReversed = errors.New("comparator: utterance aligns in reverse")

type Result struct {
	Score      int     `json:"score"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
	PhraseID   string  `json:"phrase_id,omitempty"`
	// reference duration, the timing expectation
	ReferenceSec float64 `json:"reference_sec,omitempty"`
}

type Comparator struct {
	cfg   config.ComparatorTuning
	ex    *extractor.Extractor
	store *Store
	log   *logrus.Entry
}

func New(cfg config.ComparatorTuning, ex *extractor.Extractor, store *Store, log *logrus.Entry) *Comparator {
	if log == nil {
		log = logger.Discard()
	}
	return &Comparator{cfg: cfg, ex: ex, store: store, log: log.WithField("component", "comparator")}
}

// Compare scores a prepared clip against the stored reference for text.
// Every failure yields a zero score together with the reason; none of them
// is fatal to the caller.
func (c *Comparator) Compare(clip audio.Clip, text string) (Result, error) {
	ref, err := c.store.Lookup(text)
	if err != nil {
		c.log.WithField("text", text).Debug("no reference recording")
		return Result{}, err
	}
	res, err := c.CompareSequences(c.ex.Sequence(clip), clip.SampleRate, ref.Sequence, ref.SampleRate)
	res.PhraseID = ref.PhraseID
	res.ReferenceSec = ref.Duration
	if err != nil {
		c.log.WithError(err).WithField("phrase_id", ref.PhraseID).Warn("reference comparison failed")
	}
	return res, err
}

// CompareSequences aligns two cepstral sequences. Mismatched sample rates,
// sequences under the minimum frame count and utterances that align better
// when reversed all score 0.
func (c *Comparator) CompareSequences(user [][]float64, userRate int, ref [][]float64, refRate int) (Result, error) {
	if userRate != refRate {
		return Result{}, fmt.Errorf("%w: user %d Hz, reference %d Hz", audio.ErrSampleRateMismatch, userRate, refRate)
	}
	min := c.cfg.MinFrames
	if min < 2 {
		min = 2
	}
	if len(user) < min || len(ref) < min {
		return Result{}, fmt.Errorf("%w: user %d frames, reference %d frames", ErrTooShort, len(user), len(ref))
	}

	forward := dtw(user, ref)
	if backward := dtw(reversed(user), ref); backward < forward {
		return Result{Distance: forward}, ErrReversed
	}
	sim := math.Exp(-c.cfg.DecayK * forward)
	return Result{
		Score:      int(math.Round(sim * 100)),
		Similarity: sim,
		Distance:   forward,
	}, nil
}
