package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning collects every empirically tuned threshold, weight and penalty
// used by the extractor, the detectors, the comparator and fusion.
type Tuning struct {
	Extractor    ExtractorTuning    `yaml:"extractor"`
	Detector     DetectorTuning     `yaml:"detector"`
	TextDetector TextDetectorTuning `yaml:"text_detector"`
	Comparator   ComparatorTuning   `yaml:"comparator"`
	Fusion       FusionTuning       `yaml:"fusion"`
	Feedback     FeedbackTuning     `yaml:"feedback"`
	Grades       GradeTuning        `yaml:"grades"`
}

type ExtractorTuning struct {
	FrameMs                 float64 `yaml:"frame_ms"`
	HopMs                   float64 `yaml:"hop_ms"`
	TrimThreshold           float64 `yaml:"trim_threshold"`
	SyllableEnergyThreshold float64 `yaml:"syllable_energy_threshold"`
	MinPitchHz              float64 `yaml:"min_pitch_hz"`
	MaxPitchHz              float64 `yaml:"max_pitch_hz"`
	VoicingThreshold        float64 `yaml:"voicing_threshold"`
	FormantMinHz            float64 `yaml:"formant_min_hz"`
	FormantMaxHz            float64 `yaml:"formant_max_hz"`
	MaxFormants             int     `yaml:"max_formants"`
	RolloffFraction         float64 `yaml:"rolloff_fraction"`
	EnergyBins              int     `yaml:"energy_bins"`
	MFCCCount               int     `yaml:"mfcc_count"`
	MelFilters              int     `yaml:"mel_filters"`
	SequenceFFTSize         int     `yaml:"sequence_fft_size"`
	SequenceHop             int     `yaml:"sequence_hop"`
}

// RuleTuning is one acoustic detector rule. Katakana is the threshold past
// which Weight is added; Native is the opposite threshold earning Bonus.
type RuleTuning struct {
	Katakana float64 `yaml:"katakana"`
	Weight   float64 `yaml:"weight"`
	Native   float64 `yaml:"native"`
	Bonus    float64 `yaml:"bonus"`
}

type DetectorTuning struct {
	SyllableDuration RuleTuning `yaml:"syllable_duration"`
	Rhythm           RuleTuning `yaml:"rhythm"`
	PitchVariation   RuleTuning `yaml:"pitch_variation"`
	Centroid         RuleTuning `yaml:"centroid"`
	ZeroCrossing     RuleTuning `yaml:"zero_crossing"`
	Cutoff           float64    `yaml:"cutoff"`
}

type TextDetectorTuning struct {
	NonLatinWeight       float64  `yaml:"non_latin_weight"`
	MisromanizedWeight   float64  `yaml:"misromanized_weight"`
	ShortTextRatio       float64  `yaml:"short_text_ratio"`
	ShortTextWeight      float64  `yaml:"short_text_weight"`
	PhonemeDeficitRatio  float64  `yaml:"phoneme_deficit_ratio"`
	PhonemeDeficitWeight float64  `yaml:"phoneme_deficit_weight"`
	VowelDeficitRatio    float64  `yaml:"vowel_deficit_ratio"`
	VowelDeficitWeight   float64  `yaml:"vowel_deficit_weight"`
	MonotoneWeight       float64  `yaml:"monotone_weight"`
	LowSNR               float64  `yaml:"low_snr"`
	LowSNRWeight         float64  `yaml:"low_snr_weight"`
	LowConfidence        float64  `yaml:"low_confidence"`
	LowConfidenceWeight  float64  `yaml:"low_confidence_weight"`
	WhitelistDamping     float64  `yaml:"whitelist_damping"`
	DampedFloor          float64  `yaml:"damped_floor"`
	Whitelist            []string `yaml:"whitelist"`
	Misromanized         []string `yaml:"misromanized"`
}

type ComparatorTuning struct {
	DecayK    float64 `yaml:"decay_k"`
	MinFrames int     `yaml:"min_frames"`
}

type LocalWeights struct {
	Acoustic float64 `yaml:"acoustic"`
	Rhythm   float64 `yaml:"rhythm"`
	Phoneme  float64 `yaml:"phoneme"`
	Native   float64 `yaml:"native"`
}

type ComparisonWeights struct {
	Text    float64 `yaml:"text"`
	Phoneme float64 `yaml:"phoneme"`
	Prosody float64 `yaml:"prosody"`
	Stress  float64 `yaml:"stress"`
	Timing  float64 `yaml:"timing"`
}

type TimingTuning struct {
	MinSec       float64 `yaml:"min_sec"`
	MaxSec       float64 `yaml:"max_sec"`
	ExpectedSec  float64 `yaml:"expected_sec"`
	ToleranceSec float64 `yaml:"tolerance_sec"`
	OutOfRange   float64 `yaml:"out_of_range"`
}

type FusionTuning struct {
	Local                LocalWeights      `yaml:"local"`
	RhythmFlagThreshold  float64           `yaml:"rhythm_flag_threshold"`
	RhythmFlagPass       float64           `yaml:"rhythm_flag_pass"`
	RhythmFlagFail       float64           `yaml:"rhythm_flag_fail"`
	PhonemeFlagThreshold float64           `yaml:"phoneme_flag_threshold"`
	PhonemeFlagPass      float64           `yaml:"phoneme_flag_pass"`
	PhonemeFlagFail      float64           `yaml:"phoneme_flag_fail"`
	NativeFeatureShare   float64           `yaml:"native_feature_share"`
	NativeRhythmBonus    float64           `yaml:"native_rhythm_bonus"`
	NativePhonemeBonus   float64           `yaml:"native_phoneme_bonus"`
	CoarticulationScale  float64           `yaml:"coarticulation_scale"`
	LocalShare           float64           `yaml:"local_share"`
	RemoteShare          float64           `yaml:"remote_share"`
	Comparison           ComparisonWeights `yaml:"comparison"`
	Timing               TimingTuning      `yaml:"timing"`
	PenaltyThreshold     float64           `yaml:"penalty_threshold"`
	PenaltyMagnitude     float64           `yaml:"penalty_magnitude"`
	HardCapConfidence    float64           `yaml:"hard_cap_confidence"`
	HardCapTrigger       float64           `yaml:"hard_cap_trigger"`
	HardCapScore         float64           `yaml:"hard_cap_score"`
	SoftCapTrigger       float64           `yaml:"soft_cap_trigger"`
	SoftCapScore         float64           `yaml:"soft_cap_score"`
	MergeConfidence      float64           `yaml:"merge_confidence"`
}

type FeedbackTuning struct {
	MaxImprovements  int     `yaml:"max_improvements"`
	AccuracyLow      float64 `yaml:"accuracy_low"`
	FluencyLow       float64 `yaml:"fluency_low"`
	CompletenessLow  float64 `yaml:"completeness_low"`
	WordAccuracyLow  float64 `yaml:"word_accuracy_low"`
	AccuracyHigh     float64 `yaml:"accuracy_high"`
	FluencyHigh      float64 `yaml:"fluency_high"`
	CompletenessHigh float64 `yaml:"completeness_high"`
	TextAccuracyLow  float64 `yaml:"text_accuracy_low"`
	PhonemeLow       float64 `yaml:"phoneme_low"`
	ProsodyLow       float64 `yaml:"prosody_low"`
	StressLow        float64 `yaml:"stress_low"`
	TimingLow        float64 `yaml:"timing_low"`
}

// GradeScale holds the lower bound of each letter. Anything below D is E.
type GradeScale struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
	C float64 `yaml:"c"`
	D float64 `yaml:"d"`
}

type GradeTuning struct {
	Remote     GradeScale `yaml:"remote"`
	Comparison GradeScale `yaml:"comparison"`
}

// DefaultTuning returns the stock thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		Extractor: ExtractorTuning{
			FrameMs:                 25,
			HopMs:                   10,
			TrimThreshold:           0.02,
			SyllableEnergyThreshold: 0.01,
			MinPitchHz:              80,
			MaxPitchHz:              400,
			VoicingThreshold:        0.3,
			FormantMinHz:            500,
			FormantMaxHz:            3500,
			MaxFormants:             3,
			RolloffFraction:         0.85,
			EnergyBins:              10,
			MFCCCount:               13,
			MelFilters:              26,
			SequenceFFTSize:         512,
			SequenceHop:             128,
		},
		Detector: DetectorTuning{
			SyllableDuration: RuleTuning{Katakana: 0.4, Weight: 30, Native: 0.12, Bonus: 20},
			Rhythm:           RuleTuning{Katakana: 0.5, Weight: 25, Native: 0.7, Bonus: 25},
			PitchVariation:   RuleTuning{Katakana: 0.05, Weight: 20, Native: 0.2, Bonus: 20},
			Centroid:         RuleTuning{Katakana: 800, Weight: 15, Native: 1500, Bonus: 15},
			ZeroCrossing:     RuleTuning{Katakana: 0.05, Weight: 10, Native: 0.2, Bonus: 10},
			Cutoff:           60,
		},
		TextDetector: TextDetectorTuning{
			NonLatinWeight:       0.9,
			MisromanizedWeight:   0.8,
			ShortTextRatio:       0.8,
			ShortTextWeight:      0.4,
			PhonemeDeficitRatio:  0.8,
			PhonemeDeficitWeight: 0.5,
			VowelDeficitRatio:    0.8,
			VowelDeficitWeight:   0.4,
			MonotoneWeight:       0.5,
			LowSNR:               30,
			LowSNRWeight:         0.4,
			LowConfidence:        0.8,
			LowConfidenceWeight:  0.3,
			WhitelistDamping:     0.8,
			DampedFloor:          0.2,
			Whitelist:            []string{"sorry", "hello", "thank", "you", "how", "are", "what", "did", "say"},
			Misromanized: []string{
				"sorii", "sori", "haroo", "harou", "sankyuu", "sankyu", "watto",
				"wotto", "diddo", "yuu", "sei", "zatto", "guddo", "baddo", "purizu",
			},
		},
		Comparator: ComparatorTuning{
			DecayK:    0.02,
			MinFrames: 2,
		},
		Fusion: FusionTuning{
			Local:                LocalWeights{Acoustic: 0.3, Rhythm: 0.2, Phoneme: 0.2, Native: 0.3},
			RhythmFlagThreshold:  0.7,
			RhythmFlagPass:       100,
			RhythmFlagFail:       50,
			PhonemeFlagThreshold: 0.6,
			PhonemeFlagPass:      100,
			PhonemeFlagFail:      60,
			NativeFeatureShare:   0.4,
			NativeRhythmBonus:    25,
			NativePhonemeBonus:   25,
			CoarticulationScale:  10,
			LocalShare:           0.7,
			RemoteShare:          0.3,
			Comparison:           ComparisonWeights{Text: 0.3, Phoneme: 0.3, Prosody: 0.2, Stress: 0.1, Timing: 0.1},
			Timing:               TimingTuning{MinSec: 0.3, MaxSec: 3.0, ExpectedSec: 1.0, ToleranceSec: 0.8, OutOfRange: 30},
			PenaltyThreshold:     0.2,
			PenaltyMagnitude:     60,
			HardCapConfidence:    0.5,
			HardCapTrigger:       60,
			HardCapScore:         50,
			SoftCapTrigger:       70,
			SoftCapScore:         60,
			MergeConfidence:      0.5,
		},
		Feedback: FeedbackTuning{
			MaxImprovements:  3,
			AccuracyLow:      75,
			FluencyLow:       75,
			CompletenessLow:  85,
			WordAccuracyLow:  65,
			AccuracyHigh:     85,
			FluencyHigh:      85,
			CompletenessHigh: 95,
			TextAccuracyLow:  90,
			PhonemeLow:       80,
			ProsodyLow:       75,
			StressLow:        80,
			TimingLow:        70,
		},
		Grades: GradeTuning{
			Remote:     GradeScale{A: 90, B: 80, C: 70, D: 60},
			Comparison: GradeScale{A: 95, B: 85, C: 50, D: 30},
		},
	}
}

// LoadTuning overlays the YAML file at path on DefaultTuning. An empty path
// yields the defaults.
func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("config: open tuning: %w", err)
	}
	defer f.Close()
	return LoadTuningFromReader(f)
}

// LoadTuningFromReader decodes YAML from r over the defaults and validates.
func LoadTuningFromReader(r io.Reader) (Tuning, error) {
	t := DefaultTuning()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tuning{}, fmt.Errorf("config: decode tuning yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// Validate checks weight sums and ranges.
func (t Tuning) Validate() error {
	var errs []error
	e := t.Extractor
	if e.FrameMs <= 0 || e.HopMs <= 0 {
		errs = append(errs, errors.New("extractor: frame_ms and hop_ms must be positive"))
	}
	if e.MinPitchHz <= 0 || e.MaxPitchHz <= e.MinPitchHz {
		errs = append(errs, errors.New("extractor: pitch range must be 0 < min < max"))
	}
	if e.EnergyBins < 1 || e.MFCCCount < 2 || e.MelFilters < e.MFCCCount {
		errs = append(errs, errors.New("extractor: energy_bins >= 1 and mel_filters >= mfcc_count >= 2 required"))
	}
	if e.SequenceFFTSize < 16 || e.SequenceHop < 1 {
		errs = append(errs, errors.New("extractor: sequence_fft_size >= 16 and sequence_hop >= 1 required"))
	}
	if t.Comparator.DecayK <= 0 {
		errs = append(errs, errors.New("comparator: decay_k must be positive"))
	}
	f := t.Fusion
	if !sumsToOne(f.Local.Acoustic, f.Local.Rhythm, f.Local.Phoneme, f.Local.Native) {
		errs = append(errs, errors.New("fusion: local weights must sum to 1"))
	}
	if !sumsToOne(f.LocalShare, f.RemoteShare) {
		errs = append(errs, errors.New("fusion: local_share + remote_share must equal 1"))
	}
	c := f.Comparison
	if !sumsToOne(c.Text, c.Phoneme, c.Prosody, c.Stress, c.Timing) {
		errs = append(errs, errors.New("fusion: comparison weights must sum to 1"))
	}
	if f.HardCapConfidence < f.PenaltyThreshold {
		errs = append(errs, errors.New("fusion: hard_cap_confidence must not be below penalty_threshold"))
	}
	for name, s := range map[string]GradeScale{"remote": t.Grades.Remote, "comparison": t.Grades.Comparison} {
		if !(s.A > s.B && s.B > s.C && s.C > s.D && s.D >= 0 && s.A <= 100) {
			errs = append(errs, fmt.Errorf("grades: %s scale must be strictly decreasing within [0,100]", name))
		}
		if f.HardCapScore >= s.B || f.SoftCapScore >= s.B || f.HardCapTrigger >= s.B || f.SoftCapTrigger >= s.B {
			errs = append(errs, fmt.Errorf("fusion: cap scores and triggers must stay below the %s B boundary", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid tuning: %w", errors.Join(errs...))
	}
	return nil
}

func sumsToOne(ws ...float64) bool {
	var s float64
	for _, w := range ws {
		if w < 0 {
			return false
		}
		s += w
	}
	return math.Abs(s-1) < 1e-6
}
