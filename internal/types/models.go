package types

// --------------------------------------------
// Phrase catalog
// --------------------------------------------

// Phrase is one practice phrase. Katakana holds the transliterated rendering
// learners tend to fall back on.
type Phrase struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Katakana   string `json:"katakana,omitempty"`
	Meaning    string `json:"meaning,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// --------------------------------------------
// Local signal analysis
// --------------------------------------------

// QualityScores are the derived sub-scores, each in [0,100].
type QualityScores struct {
	Naturalness   int `json:"naturalness"`
	Fluency       int `json:"fluency"`
	Clarity       int `json:"clarity"`
	StressPattern int `json:"stress_pattern"`
	Intonation    int `json:"intonation"`
	Rhythm        int `json:"rhythm"`
	Articulation  int `json:"articulation"`
	Prosody       int `json:"prosody"`
	Overall       int `json:"overall"`
}

// AudioFeatureSet describes one utterance. Ratios are in [0,1]. A zero
// FrameCount means nothing analyzable was found and every field is zero.
type AudioFeatureSet struct {
	SampleRate  int     `json:"sample_rate"`
	DurationSec float64 `json:"duration_sec"`
	FrameCount  int     `json:"frame_count"`

	SyllableCount       int     `json:"syllable_count"`
	AvgSyllableDuration float64 `json:"avg_syllable_duration"`
	RhythmConsistency   float64 `json:"rhythm_consistency"`

	PitchMean      float64   `json:"pitch_mean"`
	PitchVariation float64   `json:"pitch_variation"`
	PitchCount     int       `json:"pitch_count"`
	Formants       []float64 `json:"formants"`

	SpectralCentroid  float64 `json:"spectral_centroid"`
	SpectralRolloff   float64 `json:"spectral_rolloff"`
	SpectralBandwidth float64 `json:"spectral_bandwidth"`
	SpectralFlatness  float64 `json:"spectral_flatness"`
	SpectralSpread    float64 `json:"spectral_spread"`
	SpectralSkewness  float64 `json:"spectral_skewness"`
	SpectralKurtosis  float64 `json:"spectral_kurtosis"`
	SpectralFlux      float64 `json:"spectral_flux"`
	SpectralContrast  float64 `json:"spectral_contrast"`
	ZeroCrossingRate  float64 `json:"zero_crossing_rate"`

	EnergyMean         float64   `json:"energy_mean"`
	EnergyVariation    float64   `json:"energy_variation"`
	EnergyDistribution []float64 `json:"energy_distribution"`

	Jitter  float64 `json:"jitter"`
	Shimmer float64 `json:"shimmer"`
	HNR     float64 `json:"hnr"`

	MFCC []float64 `json:"mfcc"`

	Scores QualityScores `json:"scores"`
}

// Empty reports whether the set came from silent or unusable audio.
func (f AudioFeatureSet) Empty() bool { return f.FrameCount == 0 }

// --------------------------------------------
// Non-native ("katakana") pattern detection
// --------------------------------------------

const (
	DetectorAcoustic = "acoustic"
	DetectorText     = "text"
)

type NonNativeDetection struct {
	Source     string   `json:"source"`
	Detected   bool     `json:"detected"`
	Confidence float64  `json:"confidence"`
	Patterns   []string `json:"patterns"`
	// acoustic detector only
	Weight      float64 `json:"weight,omitempty"`
	NativeScore float64 `json:"native_score,omitempty"`
}
