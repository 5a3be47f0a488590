package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Preprocess trims leading and trailing samples whose magnitude does not
// exceed threshold and scales the remainder to a peak of 1. It returns an
// empty slice when every sample is at or below threshold. The input is not
// modified.
func Preprocess(samples []float64, threshold float64) []float64 {
	start, end := -1, -1
	for i, s := range samples {
		if math.Abs(s) > threshold {
			start = i
			break
		}
	}
	if start < 0 {
		return []float64{}
	}
	for i := len(samples) - 1; i >= start; i-- {
		if math.Abs(samples[i]) > threshold {
			end = i
			break
		}
	}

	out := make([]float64, end-start+1)
	copy(out, samples[start:end+1])
	peak := math.Max(floats.Max(out), -floats.Min(out))
	if peak > 0 {
		floats.Scale(1/peak, out)
	}
	return out
}

// Prepared returns a copy of c with Preprocess applied.
func (c Clip) Prepared(threshold float64) Clip {
	return Clip{Samples: Preprocess(c.Samples, threshold), SampleRate: c.SampleRate}
}
