// Package fusion combines local, reference and remote sub-scores into one
// score and applies the non-native penalty and grade cap.
package fusion

import (
	"math"

	"pronounce-go/internal/config"
	"pronounce-go/internal/types"
)

type Fuser struct {
	cfg config.FusionTuning
}

func New(cfg config.FusionTuning) *Fuser {
	return &Fuser{cfg: cfg}
}

// Breakdown is the local composite with its four components.
type Breakdown struct {
	Acoustic float64 `json:"acoustic"`
	Rhythm   float64 `json:"rhythm"`
	Phoneme  float64 `json:"phoneme"`
	Native   float64 `json:"native"`
	Score    float64 `json:"score"`
}

// Local fuses the acoustic analysis without remote data. referenceScore is
// the comparator score, or 0 when no reference was available; a positive
// value is averaged into the acoustic component.
func (f *Fuser) Local(fs types.AudioFeatureSet, det types.NonNativeDetection, referenceScore float64) Breakdown {
	var b Breakdown
	if fs.Empty() {
		return b
	}
	c := f.cfg
	rc := fs.RhythmConsistency
	naturalRhythm := rc > c.RhythmFlagThreshold
	naturalTransitions := rc > c.PhonemeFlagThreshold

	b.Acoustic = det.NativeScore
	if det.Detected {
		b.Acoustic = math.Max(0, 100-det.Weight)
	}
	if referenceScore > 0 {
		b.Acoustic = (b.Acoustic + referenceScore) / 2
	}

	b.Rhythm = c.RhythmFlagFail
	if naturalRhythm {
		b.Rhythm = c.RhythmFlagPass
	}
	b.Phoneme = c.PhonemeFlagFail
	if naturalTransitions {
		b.Phoneme = c.PhonemeFlagPass
	}

	native := det.NativeScore*c.NativeFeatureShare + rc*c.CoarticulationScale
	if naturalRhythm {
		native += c.NativeRhythmBonus
	}
	if naturalTransitions {
		native += c.NativePhonemeBonus
	}
	b.Native = math.Min(100, math.Round(native))

	b.Score = clamp(b.Acoustic*c.Local.Acoustic +
		b.Rhythm*c.Local.Rhythm +
		b.Phoneme*c.Local.Phoneme +
		b.Native*c.Local.Native)
	return b
}

// WithRemote blends the local composite with the remote pronunciation
// score. Degraded remote results (demo, unrecognized) do not enter the
// blend. When the audio could not be analyzed locally the remote score
// stands alone, placeholder or not.
func (f *Fuser) WithRemote(local Breakdown, localOK bool, remote types.RemoteAssessment) float64 {
	usable := remote.Pronunciation > 0 && !remote.Degraded()
	switch {
	case !localOK:
		return clamp(remote.Pronunciation)
	case usable:
		return clamp(local.Score*f.cfg.LocalShare + remote.Pronunciation*f.cfg.RemoteShare)
	default:
		return local.Score
	}
}

// Comparison is the weighted sum of the comparison pipeline sub-scores.
func (f *Fuser) Comparison(s types.ComparisonScores) float64 {
	w := f.cfg.Comparison
	return clamp(float64(s.TextAccuracy)*w.Text +
		float64(s.PhonemeAccuracy)*w.Phoneme +
		float64(s.Prosody)*w.Prosody +
		float64(s.Stress)*w.Stress +
		float64(s.Timing)*w.Timing)
}

// Timing scores an utterance duration against the expected one. Durations
// outside the plausible window score the fixed out-of-range value.
func (f *Fuser) Timing(durationSec, expectedSec float64) float64 {
	t := f.cfg.Timing
	if expectedSec <= 0 {
		expectedSec = t.ExpectedSec
	}
	maxSec := math.Max(t.MaxSec, 2*expectedSec)
	if durationSec < t.MinSec || durationSec > maxSec {
		return t.OutOfRange
	}
	return math.Max(0, 1-math.Abs(durationSec-expectedSec)/t.ToleranceSec) * 100
}

// Adjustment is the outcome of Penalize.
type Adjustment struct {
	Score   float64
	Penalty float64
	Capped  bool
}

// Penalize subtracts the non-native penalty from score when det fired with
// enough confidence, then applies Cap for the scale the score is graded on.
func (f *Fuser) Penalize(score float64, det types.NonNativeDetection, scale config.GradeScale) Adjustment {
	adj := Adjustment{Score: score}
	if !det.Detected || det.Confidence <= f.cfg.PenaltyThreshold {
		return adj
	}
	adj.Penalty = det.Confidence * f.cfg.PenaltyMagnitude
	adj.Score = math.Max(0, score-adj.Penalty)
	adj.Score, adj.Capped = f.Cap(adj.Score, det.Confidence, scale)
	return adj
}

// Cap is the grade ceiling for detected non-native pronunciation. A
// confident detection uses the hard cap, any other the soft cap. When the
// configured cap score would grade below C on scale, the cap falls back to
// clamping at the top of C, so it never lowers a grade past C.
func (f *Fuser) Cap(score, confidence float64, scale config.GradeScale) (float64, bool) {
	c := f.cfg
	trigger, target := c.SoftCapTrigger, c.SoftCapScore
	if confidence >= c.HardCapConfidence {
		trigger, target = c.HardCapTrigger, c.HardCapScore
	}
	if target < scale.C {
		ceiling := scale.B - 1
		if score > ceiling {
			return ceiling, true
		}
		return score, false
	}
	if score > trigger {
		return target, true
	}
	return score, false
}

// Confident reports whether any detection passes the merge threshold used
// by the unified assessment.
func (f *Fuser) Confident(dets ...types.NonNativeDetection) bool {
	for _, d := range dets {
		if d.Detected && d.Confidence > f.cfg.MergeConfidence {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(100, v)
}

// Round converts a fused score to the integer shown to users.
func Round(v float64) int {
	return int(math.Round(clamp(v)))
}
