// Package feedback turns sub-scores into improvement and positive strings.
package feedback

import (
	"fmt"

	"pronounce-go/internal/config"
	"pronounce-go/internal/types"
)

// Remediation is prepended when non-native pronunciation is detected.
var Remediation = []string{
	"Avoid katakana-style pronunciation and practice the native sounds",
	"Pronounce each English sound precisely, without adding extra vowels",
	"Make your rhythm and intonation more natural",
}

const (
	msgAccuracy     = "Pronounce consonants and vowels more precisely"
	msgFluency      = "Try to speak more smoothly and naturally"
	msgCompleteness = "Pronounce every word clearly"
	msgWord         = "Work on the pronunciation of \"%s\""

	msgText    = "Say the exact words of the model phrase"
	msgPhoneme = "Articulate each sound carefully"
	msgProsody = "Aim for natural intonation"
	msgStress  = "Pay attention to where the stress falls"
	msgTiming  = "Make your rhythm and timing more natural"

	msgNotRecognized = "Speak more clearly and closer to the microphone"
	msgNoise         = "Reduce background noise and try again"

	posAccuracy     = "Highly accurate pronunciation"
	posFluency      = "Fluent delivery"
	posCompleteness = "Complete pronunciation of every word"
	posGradeA       = "Excellent pronunciation!"
	posGradeB       = "Good pronunciation, keep practicing"
)

type Result struct {
	Improvements []string
	Positives    []string
}

type Generator struct {
	cfg config.FeedbackTuning
}

func New(cfg config.FeedbackTuning) *Generator {
	return &Generator{cfg: cfg}
}

// Evaluation builds feedback for the remote-augmented pipeline.
func (g *Generator) Evaluation(accuracy, fluency, completeness float64, words []types.WordDetail, grade types.Grade, dets ...types.NonNativeDetection) Result {
	c := g.cfg
	var imp list
	if accuracy < c.AccuracyLow {
		imp.add(msgAccuracy)
	}
	if fluency < c.FluencyLow {
		imp.add(msgFluency)
	}
	if completeness < c.CompletenessLow {
		imp.add(msgCompleteness)
	}
	for _, w := range words {
		if w.Word != "" && w.Accuracy < c.WordAccuracyLow {
			imp.add(fmt.Sprintf(msgWord, w.Word))
		}
	}

	var pos list
	if accuracy >= c.AccuracyHigh {
		pos.add(posAccuracy)
	}
	if fluency >= c.FluencyHigh {
		pos.add(posFluency)
	}
	if completeness >= c.CompletenessHigh {
		pos.add(posCompleteness)
	}
	pos.praise(grade)
	return g.finish(imp, pos, dets)
}

// Comparison builds feedback for the comparison pipeline.
func (g *Generator) Comparison(s types.ComparisonScores, grade types.Grade, dets ...types.NonNativeDetection) Result {
	c := g.cfg
	var imp list
	if float64(s.TextAccuracy) < c.TextAccuracyLow {
		imp.add(msgText)
	}
	if float64(s.PhonemeAccuracy) < c.PhonemeLow {
		imp.add(msgPhoneme)
	}
	if float64(s.Prosody) < c.ProsodyLow {
		imp.add(msgProsody)
	}
	if float64(s.Stress) < c.StressLow {
		imp.add(msgStress)
	}
	if float64(s.Timing) < c.TimingLow {
		imp.add(msgTiming)
	}
	var pos list
	pos.praise(grade)
	return g.finish(imp, pos, dets)
}

// Unrecognized is the feedback for a recording the provider could not
// recognize.
func (g *Generator) Unrecognized() Result {
	return Result{Improvements: []string{msgNotRecognized, msgNoise}, Positives: []string{}}
}

func (g *Generator) finish(imp, pos list, dets []types.NonNativeDetection) Result {
	capped := imp
	if g.cfg.MaxImprovements > 0 && len(capped) > g.cfg.MaxImprovements {
		capped = capped[:g.cfg.MaxImprovements]
	}
	var out list
	for _, d := range dets {
		if d.Detected {
			for _, r := range Remediation {
				out.add(r)
			}
			break
		}
	}
	for _, s := range capped {
		out.add(s)
	}
	return Result{Improvements: out.slice(), Positives: pos.slice()}
}

// list is an insertion ordered set of strings.
type list []string

func (l *list) add(s string) {
	for _, v := range *l {
		if v == s {
			return
		}
	}
	*l = append(*l, s)
}

func (l *list) praise(g types.Grade) {
	switch g {
	case types.GradeA:
		l.add(posGradeA)
	case types.GradeB:
		l.add(posGradeB)
	}
}

func (l list) slice() []string {
	if l == nil {
		return []string{}
	}
	return l
}
