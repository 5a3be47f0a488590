// Package classifier derives quality sub-scores from acoustic features and
// flags non-native ("katakana") articulation from audio or text.
package classifier

import (
	"math"

	"pronounce-go/internal/types"
)

// Score computes the nine quality sub-scores of fs. Empty feature sets
// score zero across the board.
func Score(fs types.AudioFeatureSet) types.QualityScores {
	if fs.Empty() {
		return types.QualityScores{}
	}
	pv := fs.PitchVariation
	rhythm := fs.RhythmConsistency
	steadiness := math.Max(0, 1-(fs.Jitter+fs.Shimmer)/0.2)
	harmonic := math.Min(1, fs.HNR/20)
	pitchLift := math.Min(1, pv/0.3)

	naturalness := (pitchLift + rhythm + steadiness) / 3
	fluency := (rhythm + math.Min(1, (fs.SpectralFlux+fs.SpectralContrast)/2)) / 2
	clarity := (harmonic + math.Max(0, 1-fs.SpectralFlatness) + math.Min(1, fs.SpectralBandwidth/2000)) / 3
	intonation := (pitchLift + math.Max(0, 1-math.Abs(fs.SpectralSkewness)/2)) / 2
	rhythmScore := (rhythm + math.Min(1, fs.SpectralSpread/1000)) / 2
	articulation := (steadiness + harmonic) / 2
	prosody := (pitchLift + rhythm + math.Max(0, 1-math.Abs(fs.SpectralKurtosis)/5)) / 3

	stress := 50.0
	if fs.FrameCount >= 2 && fs.PitchCount >= 2 {
		stress = math.Min(100, (fs.EnergyVariation+pv)/2*100)
	}

	// overall quality blends stability of pitch and energy with rhythm
	quality := ((1 - pv) + (1 - math.Min(1, fs.EnergyVariation)) + rhythm) / 3 * 100

	s := types.QualityScores{
		Naturalness:   percent(naturalness * 100),
		Fluency:       percent(fluency * 100),
		Clarity:       percent(clarity * 100),
		StressPattern: percent(stress),
		Intonation:    percent(intonation * 100),
		Rhythm:        percent(rhythmScore * 100),
		Articulation:  percent(articulation * 100),
		Prosody:       percent(prosody * 100),
	}
	s.Overall = percent(quality*0.15 +
		float64(s.Naturalness)*0.15 +
		float64(s.Fluency)*0.15 +
		float64(s.Clarity)*0.15 +
		float64(s.StressPattern)*0.1 +
		float64(s.Intonation)*0.1 +
		float64(s.Rhythm)*0.1 +
		float64(s.Articulation)*0.05 +
		float64(s.Prosody)*0.05)
	return s
}

// percent rounds v and clamps it to [0,100].
func percent(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
