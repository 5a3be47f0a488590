// Package grading maps numeric scores to letter grades.
package grading

import (
	"math"

	"pronounce-go/internal/config"
	"pronounce-go/internal/types"
)

// Letter returns the grade of score on scale. Scores are compared after
// rounding, matching the integer scores shown to the user.
func Letter(score float64, scale config.GradeScale) types.Grade {
	s := math.Round(score)
	switch {
	case s >= scale.A:
		return types.GradeA
	case s >= scale.B:
		return types.GradeB
	case s >= scale.C:
		return types.GradeC
	case s >= scale.D:
		return types.GradeD
	default:
		return types.GradeE
	}
}

var descriptions = map[types.Grade]string{
	types.GradeA: "Excellent: native-like pronunciation",
	types.GradeB: "Good: clear and easy to understand",
	types.GradeC: "Fair: understandable with some effort",
	types.GradeD: "Needs work: several sounds are off",
	types.GradeE: "Keep practicing: hard to understand",
	types.GradeF: "Not recognized: please try again",
}

func Description(g types.Grade) string {
	return descriptions[g]
}

// AtMost returns the worse of g and ceiling.
func AtMost(g, ceiling types.Grade) types.Grade {
	if g > ceiling {
		return g
	}
	return ceiling
}
