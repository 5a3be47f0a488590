package classifier

import (
	"math"
	"slices"

	"pronounce-go/internal/config"
	"pronounce-go/internal/types"
)

// Pattern names reported by the acoustic detector, in evaluation order.
const (
	PatternLongSyllables   = "syllable spacing too long"
	PatternUnnaturalRhythm = "unnatural rhythm"
	PatternFlatPitch       = "insufficient pitch variation"
	PatternTimbre          = "unnatural timbre"
	PatternLowComplexity   = "insufficient spectral complexity"
)

// DetectAcoustic runs the weighted katakana rules over fs. Each rule adds
// its weight independently; detection needs the total to pass the cutoff.
// Confidence is the total over 100, capped at 1. The native-side bonuses
// accumulate separately into NativeScore.
func DetectAcoustic(fs types.AudioFeatureSet, cfg config.DetectorTuning) types.NonNativeDetection {
	d := types.NonNativeDetection{Source: types.DetectorAcoustic, Patterns: []string{}}
	if fs.Empty() {
		return d
	}

	rules := []struct {
		value   float64
		rule    config.RuleTuning
		high    bool // katakana side is above the threshold
		pattern string
	}{
		{fs.AvgSyllableDuration, cfg.SyllableDuration, true, PatternLongSyllables},
		{fs.RhythmConsistency, cfg.Rhythm, false, PatternUnnaturalRhythm},
		{fs.PitchVariation, cfg.PitchVariation, false, PatternFlatPitch},
		{fs.SpectralCentroid, cfg.Centroid, false, PatternTimbre},
		{fs.ZeroCrossingRate, cfg.ZeroCrossing, false, PatternLowComplexity},
	}
	for _, r := range rules {
		katakana, native := r.value < r.rule.Katakana, r.value > r.rule.Native
		if r.high {
			katakana, native = r.value > r.rule.Katakana, r.value < r.rule.Native
		}
		switch {
		case katakana:
			d.Weight += r.rule.Weight
			d.Patterns = appendUnique(d.Patterns, r.pattern)
		case native:
			d.NativeScore += r.rule.Bonus
		}
	}

	d.Detected = d.Weight > cfg.Cutoff
	d.Confidence = math.Min(d.Weight, 100) / 100
	return d
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
