package transcription

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"pronounce-go/internal/textsim"
	"pronounce-go/internal/types"
)

// ErrNoTranscript is returned by the transcription stage when the provider
// answered without any text.
var ErrNoTranscript = errors.New("transcription returned no text")

const ticksPerSecond = 1e7

type speechResponse struct {
	RecognitionStatus string       `json:"RecognitionStatus"`
	DisplayText       string       `json:"DisplayText"`
	SNR               float64      `json:"SNR"`
	NBest             []hypothesis `json:"NBest"`
}

// scoreBlock carries the sentence level scores. The provider places them
// either in a nested PronunciationAssessment object or directly on the
// hypothesis.
type scoreBlock struct {
	AccuracyScore      float64 `json:"AccuracyScore"`
	FluencyScore       float64 `json:"FluencyScore"`
	CompletenessScore  float64 `json:"CompletenessScore"`
	PronScore          float64 `json:"PronScore"`
	PronunciationScore float64 `json:"PronunciationScore"`
	ProsodyScore       float64 `json:"ProsodyScore"`
}

type hypothesis struct {
	Confidence float64 `json:"Confidence"`
	Lexical    string  `json:"Lexical"`
	Display    string  `json:"Display"`

	PronunciationAssessment *scoreBlock `json:"PronunciationAssessment"`
	scoreBlock

	Words []providerWord `json:"Words"`
}

type wordFeedback struct {
	Prosody struct {
		Intonation struct {
			ErrorTypes []string `json:"ErrorTypes"`
		} `json:"Intonation"`
	} `json:"Prosody"`
}

type wordScores struct {
	AccuracyScore float64       `json:"AccuracyScore"`
	ErrorType     string        `json:"ErrorType"`
	Feedback      *wordFeedback `json:"Feedback"`
}

type providerWord struct {
	Word     string `json:"Word"`
	Offset   int64  `json:"Offset"`
	Duration int64  `json:"Duration"`

	PronunciationAssessment *wordScores `json:"PronunciationAssessment"`
	wordScores

	Syllables []providerUnit `json:"Syllables"`
	Phonemes  []providerUnit `json:"Phonemes"`
}

type providerUnit struct {
	Syllable string `json:"Syllable"`
	Phoneme  string `json:"Phoneme"`

	PronunciationAssessment *struct {
		AccuracyScore float64 `json:"AccuracyScore"`
	} `json:"PronunciationAssessment"`
	AccuracyScore float64 `json:"AccuracyScore"`
}

// shape tags where a score block was found.
type shape int

const (
	shapeNested shape = iota
	shapeFlat
)

func (s shape) String() string {
	if s == shapeNested {
		return "nested"
	}
	return "flat"
}

type taggedScores struct {
	shape  shape
	scores scoreBlock
}

// variants lists the score blocks of h in lookup order.
func (h hypothesis) variants() []taggedScores {
	var out []taggedScores
	if h.PronunciationAssessment != nil {
		out = append(out, taggedScores{shapeNested, *h.PronunciationAssessment})
	}
	return append(out, taggedScores{shapeFlat, h.scoreBlock})
}

// resolveScores picks every field from the first variant where it is
// non-zero. PronScore falls back to PronunciationScore within a variant.
func resolveScores(vs []taggedScores) scoreBlock {
	pick := func(get func(scoreBlock) float64) float64 {
		for _, v := range vs {
			if x := get(v.scores); x != 0 {
				return x
			}
		}
		return 0
	}
	return scoreBlock{
		AccuracyScore:     pick(func(b scoreBlock) float64 { return b.AccuracyScore }),
		FluencyScore:      pick(func(b scoreBlock) float64 { return b.FluencyScore }),
		CompletenessScore: pick(func(b scoreBlock) float64 { return b.CompletenessScore }),
		PronScore: pick(func(b scoreBlock) float64 {
			if b.PronScore != 0 {
				return b.PronScore
			}
			return b.PronunciationScore
		}),
		ProsodyScore: pick(func(b scoreBlock) float64 { return b.ProsodyScore }),
	}
}

func (b scoreBlock) zero() bool {
	return b.AccuracyScore == 0 && b.FluencyScore == 0 && b.CompletenessScore == 0 && b.PronScore == 0
}

func (w providerWord) scores() wordScores {
	out := w.wordScores
	if n := w.PronunciationAssessment; n != nil {
		if n.AccuracyScore != 0 {
			out.AccuracyScore = n.AccuracyScore
		}
		if n.ErrorType != "" {
			out.ErrorType = n.ErrorType
		}
		if n.Feedback != nil {
			out.Feedback = n.Feedback
		}
	}
	return out
}

func (u providerUnit) accuracy() float64 {
	if u.PronunciationAssessment != nil && u.PronunciationAssessment.AccuracyScore != 0 {
		return u.PronunciationAssessment.AccuracyScore
	}
	return u.AccuracyScore
}

func (w providerWord) monotone() bool {
	fb := w.scores().Feedback
	if fb == nil {
		return false
	}
	for _, e := range fb.Prosody.Intonation.ErrorTypes {
		if e == "Monotone" {
			return true
		}
	}
	return false
}

// decodeAssessment turns an assessment response body into a result. A body
// that does not parse is an error; a parsed body the provider could not
// recognize is a grade F result, not an error.
func decodeAssessment(body []byte, reference string) (types.RemoteAssessment, error) {
	var resp speechResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.RemoteAssessment{}, fmt.Errorf("decode provider response: %w", err)
	}
	res := types.RemoteAssessment{Signals: signalsOf(resp)}

	if len(resp.NBest) == 0 {
		if resp.RecognitionStatus != "Success" || strings.TrimSpace(resp.DisplayText) == "" {
			return unrecognized(res), nil
		}
		// simple format: text only
		res.RecognizedText = resp.DisplayText
		res.Recognized = true
		fromSimilarity(&res, reference)
		return res, nil
	}
	if resp.RecognitionStatus != "" && resp.RecognitionStatus != "Success" {
		return unrecognized(res), nil
	}

	best := resp.NBest[0]
	res.RecognizedText = best.Display
	if res.RecognizedText == "" {
		res.RecognizedText = resp.DisplayText
	}
	res.Recognized = true
	res.Words = convertWords(best.Words)

	s := resolveScores(best.variants())
	res.Accuracy = s.AccuracyScore
	res.Fluency = s.FluencyScore
	res.Completeness = s.CompletenessScore
	res.Pronunciation = s.PronScore
	res.Prosody = s.ProsodyScore

	if s.zero() && hasPhonemes(best.Words) {
		fromSimilarity(&res, reference)
	}
	return res, nil
}

// decodeTranscript returns the recognized text of a plain recognition
// response.
func decodeTranscript(body []byte) (string, types.ProsodySignals, error) {
	var resp speechResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", types.ProsodySignals{}, fmt.Errorf("decode transcription response: %w", err)
	}
	text := resp.DisplayText
	if text == "" && len(resp.NBest) > 0 {
		text = resp.NBest[0].Display
	}
	if strings.TrimSpace(text) == "" {
		return "", types.ProsodySignals{}, ErrNoTranscript
	}
	return text, signalsOf(resp), nil
}

// ParseProsody reads provider signals from a JSON blob returned by an
// earlier call. Both the full response and the trimmed
// {Words, SNR, Confidence} form are accepted.
func ParseProsody(blob []byte) (types.ProsodySignals, error) {
	var v struct {
		speechResponse
		Confidence float64        `json:"Confidence"`
		Words      []providerWord `json:"Words"`
	}
	if err := json.Unmarshal(blob, &v); err != nil {
		return types.ProsodySignals{}, fmt.Errorf("decode prosody: %w", err)
	}
	sig := signalsOf(v.speechResponse)
	sig.Present = true
	if v.Confidence != 0 {
		sig.Confidence = v.Confidence
	}
	for _, w := range v.Words {
		if w.monotone() {
			sig.Monotone = true
		}
	}
	return sig, nil
}

func signalsOf(resp speechResponse) types.ProsodySignals {
	sig := types.ProsodySignals{SNR: resp.SNR}
	if len(resp.NBest) > 0 {
		sig.Confidence = resp.NBest[0].Confidence
		for _, w := range resp.NBest[0].Words {
			if w.monotone() {
				sig.Monotone = true
				break
			}
		}
	}
	sig.Present = sig.SNR != 0 || sig.Confidence != 0 || sig.Monotone
	return sig
}

func convertWords(in []providerWord) []types.WordDetail {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.WordDetail, 0, len(in))
	for _, w := range in {
		sc := w.scores()
		d := types.WordDetail{
			Word:        w.Word,
			Accuracy:    sc.AccuracyScore,
			ErrorType:   sc.ErrorType,
			OffsetSec:   float64(w.Offset) / ticksPerSecond,
			DurationSec: float64(w.Duration) / ticksPerSecond,
		}
		for _, s := range w.Syllables {
			d.Syllables = append(d.Syllables, types.ScoredUnit{Unit: s.Syllable, Accuracy: s.accuracy()})
		}
		for _, p := range w.Phonemes {
			d.Phonemes = append(d.Phonemes, types.ScoredUnit{Unit: p.Phoneme, Accuracy: p.accuracy()})
		}
		out = append(out, d)
	}
	return out
}

func hasPhonemes(words []providerWord) bool {
	for _, w := range words {
		if len(w.Phonemes) > 0 {
			return true
		}
	}
	return false
}

// similarityScore is the rounded 0..100 edit-distance similarity of the
// normalized texts.
func similarityScore(recognized, reference string) float64 {
	return math.Round(textsim.Similarity(textsim.Normalize(recognized), textsim.Normalize(reference)) * 100)
}

func fromSimilarity(res *types.RemoteAssessment, reference string) {
	s := similarityScore(res.RecognizedText, reference)
	res.Accuracy, res.Fluency, res.Completeness, res.Pronunciation = s, s, s, s
	res.Synthesized = true
}

func unrecognized(res types.RemoteAssessment) types.RemoteAssessment {
	res.Recognized = false
	res.RecognizedText = ""
	res.Grade = types.GradeF
	return res
}
