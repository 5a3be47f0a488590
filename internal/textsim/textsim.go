// Package textsim holds the text comparisons shared by the remote client,
// the text detector and the comparison pipeline.
package textsim

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Similarity is 1 - levenshtein/maxLen over runes. Two empty strings are
// identical.
func Similarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	d := matchr.Levenshtein(a, b)
	return float64(longest-d) / float64(longest)
}

// Normalize lower-cases s, drops sentence punctuation and collapses runs of
// whitespace.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':':
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Key is the lower-case alphanumeric form of s used to name reference
// recordings: "Thank you!" becomes "thankyou".
func Key(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Sketch maps each latin letter to V (vowel) or C (consonant), ignoring
// everything else.
func Sketch(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case strings.ContainsRune("aeiou", r):
			b.WriteByte('V')
		case r >= 'a' && r <= 'z':
			b.WriteByte('C')
		}
	}
	return b.String()
}

// SketchAccuracy counts positional V/C agreements against the reference
// sketch, scaled to 0..100. An empty reference scores 0.
func SketchAccuracy(recognized, reference string) float64 {
	got, want := Sketch(recognized), Sketch(reference)
	if len(want) == 0 {
		return 0
	}
	match := 0
	for i := 0; i < len(got) && i < len(want); i++ {
		if got[i] == want[i] {
			match++
		}
	}
	return float64(match) / float64(len(want)) * 100
}

// VowelCount counts latin vowels.
func VowelCount(s string) int {
	return strings.Count(Sketch(s), "V")
}

// SoundsAlike reports whether two words share a Double Metaphone key.
func SoundsAlike(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	if ap == "" || bp == "" {
		return false
	}
	return ap == bp || (as != "" && as == bp) || (bs != "" && ap == bs)
}
