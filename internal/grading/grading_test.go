package grading

import (
	"testing"

	"pronounce-go/internal/config"
	"pronounce-go/internal/types"
)

func TestLetter(t *testing.T) {
	t.Parallel()
	g := config.DefaultTuning().Grades
	tests := []struct {
		score float64
		scale config.GradeScale
		want  types.Grade
	}{
		{100, g.Remote, types.GradeA},
		{89.6, g.Remote, types.GradeA},
		{80, g.Remote, types.GradeB},
		{70, g.Remote, types.GradeC},
		{60, g.Remote, types.GradeD},
		{59, g.Remote, types.GradeE},
		{94, g.Comparison, types.GradeB},
		{84, g.Comparison, types.GradeC},
		{50, g.Comparison, types.GradeC},
		{30, g.Comparison, types.GradeD},
		{0, g.Comparison, types.GradeE},
	}
	for _, tc := range tests {
		if got := Letter(tc.score, tc.scale); got != tc.want {
			t.Fatalf("Letter(%v, %+v) = %s, want %s", tc.score, tc.scale, got, tc.want)
		}
	}
}

func TestAtMost(t *testing.T) {
	t.Parallel()
	if got := AtMost(types.GradeA, types.GradeC); got != types.GradeC {
		t.Fatalf("AtMost(A, C) = %s, want C", got)
	}
	if got := AtMost(types.GradeD, types.GradeC); got != types.GradeD {
		t.Fatalf("AtMost(D, C) = %s, want D", got)
	}
	for _, g := range []types.Grade{types.GradeA, types.GradeB, types.GradeC, types.GradeD, types.GradeE, types.GradeF} {
		if Description(g) == "" {
			t.Fatalf("Description(%s) is empty", g)
		}
	}
}
