package types

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
	// GradeF marks total recognition failure on the remote path.
	GradeF Grade = "F"
)

// Remote result sources, in ladder order.
const (
	SourcePrimary       = "primary"
	SourceSecondary     = "secondary"
	SourceTranscription = "transcription"
	SourceDemo          = "demo"
	SourceMock          = "mock"
)

type ScoredUnit struct {
	Unit     string  `json:"unit"`
	Accuracy float64 `json:"accuracy"`
}

type WordDetail struct {
	Word        string       `json:"word"`
	Accuracy    float64      `json:"accuracy"`
	ErrorType   string       `json:"error_type,omitempty"`
	OffsetSec   float64      `json:"offset_sec"`
	DurationSec float64      `json:"duration_sec"`
	Syllables   []ScoredUnit `json:"syllables,omitempty"`
	Phonemes    []ScoredUnit `json:"phonemes,omitempty"`
}

// ProsodySignals are the provider side hints the text detector consumes.
type ProsodySignals struct {
	Present    bool    `json:"present"`
	Monotone   bool    `json:"monotone"`
	SNR        float64 `json:"snr,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// RemoteAssessment is the outcome of the provider fallback ladder. Missing
// provider fields stay zero.
type RemoteAssessment struct {
	Source         string         `json:"source"`
	RecognizedText string         `json:"recognized_text"`
	Accuracy       float64        `json:"accuracy"`
	Fluency        float64        `json:"fluency"`
	Completeness   float64        `json:"completeness"`
	Pronunciation  float64        `json:"pronunciation"`
	Prosody        float64        `json:"prosody,omitempty"`
	Words          []WordDetail   `json:"words,omitempty"`
	Signals        ProsodySignals `json:"signals"`
	Synthesized    bool           `json:"synthesized,omitempty"`
	Recognized     bool           `json:"recognized"`
	Grade          Grade          `json:"grade"`
	Error          string         `json:"error,omitempty"`
}

// Degraded reports whether the scores are a placeholder rather than a
// provider or similarity derived assessment.
func (r RemoteAssessment) Degraded() bool {
	return r.Source == SourceDemo || !r.Recognized
}

// --------------------------------------------
// Outputs
// --------------------------------------------

type Diagnostics struct {
	Features       *AudioFeatureSet    `json:"features,omitempty"`
	Acoustic       NonNativeDetection  `json:"acoustic_detection"`
	Text           *NonNativeDetection `json:"text_detection,omitempty"`
	LocalComposite int                 `json:"local_composite"`
	ReferenceScore int                 `json:"reference_score"`
	ReferenceError string              `json:"reference_error,omitempty"`
	AudioError     string              `json:"audio_error,omitempty"`
	PenaltyApplied float64             `json:"penalty_applied,omitempty"`
	CapApplied     bool                `json:"cap_applied,omitempty"`
}

// Evaluation is the remote-augmented assessment.
type Evaluation struct {
	OverallScore     int              `json:"overall_score"`
	Grade            Grade            `json:"grade"`
	GradeDescription string           `json:"grade_description"`
	Pronunciation    int              `json:"pronunciation"`
	Accuracy         int              `json:"accuracy"`
	Fluency          int              `json:"fluency"`
	Completeness     int              `json:"completeness"`
	RecognizedText   string           `json:"recognized_text"`
	Improvements     []string         `json:"improvements"`
	Positives        []string         `json:"positives"`
	Words            []WordDetail     `json:"words,omitempty"`
	Remote           RemoteAssessment `json:"remote"`
	Diagnostics      Diagnostics      `json:"diagnostics"`
	Error            string           `json:"error,omitempty"`
}

type ComparisonScores struct {
	TextAccuracy    int `json:"text_accuracy"`
	PhonemeAccuracy int `json:"phoneme_accuracy"`
	Prosody         int `json:"prosody"`
	Stress          int `json:"stress"`
	Timing          int `json:"timing"`
}

// Comparison is the text and reference driven assessment.
type Comparison struct {
	OverallScore     int              `json:"overall_score"`
	Grade            Grade            `json:"grade"`
	GradeDescription string           `json:"grade_description"`
	Scores           ComparisonScores `json:"scores"`
	RecognizedText   string           `json:"recognized_text"`
	ReferenceText    string           `json:"reference_text"`
	Improvements     []string         `json:"improvements"`
	Positives        []string         `json:"positives"`
	Diagnostics      Diagnostics      `json:"diagnostics"`
}

// Assessment merges both pipelines into the final verdict.
type Assessment struct {
	ID               string     `json:"id"`
	OverallScore     int        `json:"overall_score"`
	Grade            Grade      `json:"grade"`
	GradeDescription string     `json:"grade_description"`
	NonNativeCapped  bool       `json:"non_native_capped"`
	Evaluation       Evaluation `json:"evaluation"`
	Comparison       Comparison `json:"comparison"`
	DurationMs       int64      `json:"duration_ms"`
}

// CalibrationRow is the local pipeline run over one reference recording.
type CalibrationRow struct {
	PhraseID       string        `json:"phrase_id"`
	Text           string        `json:"text"`
	DurationSec    float64       `json:"duration_sec"`
	Syllables      int           `json:"syllables"`
	Quality        QualityScores `json:"quality"`
	Detected       bool          `json:"detected"`
	Confidence     float64       `json:"confidence"`
	Patterns       []string      `json:"patterns"`
	SelfScore      int           `json:"self_score"`
	LocalComposite int           `json:"local_composite"`
	Grade          Grade         `json:"grade"`
}
