package classifier

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"pronounce-go/internal/config"
	"pronounce-go/internal/textsim"
	"pronounce-go/internal/types"
)

const (
	PatternNonLatin       = "non-Latin script in recognized text"
	PatternTransliterated = "transliterated spelling"
	PatternShortText      = "recognized text too short"
	PatternPhonemeDeficit = "missing phonemes"
	PatternVowelDeficit   = "simplified syllable structure"
	PatternMonotone       = "monotone intonation"
	PatternLowSNR         = "low signal-to-noise ratio"
	PatternLowConfidence  = "low recognition confidence"
	PatternDampened       = "native pattern present, confidence reduced"
)

// DetectText flags transliterated pronunciation from the recognized text,
// the reference phrase and optional provider prosody signals. Every fired
// rule adds its weight; confidence is capped at 1. When a whitelisted word
// appears in both texts the confidence is dampened toward the floor but
// never raised.
func DetectText(recognized, reference string, signals types.ProsodySignals, cfg config.TextDetectorTuning) types.NonNativeDetection {
	d := types.NonNativeDetection{Source: types.DetectorText, Patterns: []string{}}
	rec, ref := textsim.Normalize(recognized), textsim.Normalize(reference)
	var conf float64
	fire := func(weight float64, pattern string) {
		conf += weight
		d.Patterns = appendUnique(d.Patterns, pattern)
	}

	if hasJapaneseScript(rec) {
		fire(cfg.NonLatinWeight, PatternNonLatin)
	}
	if transliterated(rec, ref, cfg.Misromanized) {
		fire(cfg.MisromanizedWeight, PatternTransliterated)
	}
	if float64(utf8.RuneCountInString(rec)) < cfg.ShortTextRatio*float64(utf8.RuneCountInString(ref)) {
		fire(cfg.ShortTextWeight, PatternShortText)
	}
	if float64(len(textsim.Sketch(rec))) < cfg.PhonemeDeficitRatio*float64(len(textsim.Sketch(ref))) {
		fire(cfg.PhonemeDeficitWeight, PatternPhonemeDeficit)
	}
	if float64(textsim.VowelCount(rec)) < cfg.VowelDeficitRatio*float64(textsim.VowelCount(ref)) {
		fire(cfg.VowelDeficitWeight, PatternVowelDeficit)
	}
	if signals.Present {
		if signals.Monotone {
			fire(cfg.MonotoneWeight, PatternMonotone)
		}
		if signals.SNR > 0 && signals.SNR < cfg.LowSNR {
			fire(cfg.LowSNRWeight, PatternLowSNR)
		}
		if signals.Confidence > 0 && signals.Confidence < cfg.LowConfidence {
			fire(cfg.LowConfidenceWeight, PatternLowConfidence)
		}
	}

	d.Detected = conf > 0
	if conf > 0 && sharesWhitelisted(rec, ref, cfg.Whitelist) {
		conf = math.Min(conf, math.Max(cfg.DampedFloor, conf-cfg.WhitelistDamping))
		d.Patterns = append(d.Patterns, PatternDampened)
	}
	d.Confidence = math.Min(1, conf)
	return d
}

func hasJapaneseScript(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) || r == 'ー' {
			return true
		}
	}
	return false
}

// transliterated reports known mis-romanizations, or a recognized word that
// sounds like a reference word but carries the epenthetic trailing vowel
// typical of katakana renderings ("watto" for "what").
func transliterated(rec, ref string, library []string) bool {
	refWords := strings.Fields(ref)
	for _, w := range strings.Fields(rec) {
		for _, known := range library {
			if w == known {
				return true
			}
		}
		if slices.Contains(refWords, w) || !endsWithVowel(w) {
			continue
		}
		for _, r := range refWords {
			if !endsWithVowel(r) && textsim.SoundsAlike(w, r) {
				return true
			}
		}
	}
	return false
}

func sharesWhitelisted(rec, ref string, whitelist []string) bool {
	recWords, refWords := strings.Fields(rec), strings.Fields(ref)
	for _, w := range whitelist {
		if slices.Contains(recWords, w) && slices.Contains(refWords, w) {
			return true
		}
	}
	return false
}

func endsWithVowel(w string) bool {
	return w != "" && strings.ContainsRune("aeiou", rune(w[len(w)-1]))
}
