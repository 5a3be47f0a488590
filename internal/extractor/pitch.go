package extractor

import "math"

type pitchEstimate struct {
	hz float64
	// normalized autocorrelation at the chosen lag
	r float64
}

// autocorrPitch evaluates the normalized autocorrelation over the lags of
// the [minHz,maxHz] period range and takes the shortest lag that is a local
// peak within 3% of the strongest one, which keeps exact multiples of the
// period from winning. hz is zero when no lag fits in the frame.
func autocorrPitch(frame []float64, sampleRate int, minHz, maxHz float64) pitchEstimate {
	minLag := int(math.Ceil(float64(sampleRate) / maxHz))
	maxLag := int(math.Floor(float64(sampleRate) / minHz))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	if maxLag < minLag {
		return pitchEstimate{}
	}
	rs := make([]float64, maxLag-minLag+1)
	top := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var xy, xx, yy float64
		for i := 0; i+lag < len(frame); i++ {
			a, b := frame[i], frame[i+lag]
			xy += a * b
			xx += a * a
			yy += b * b
		}
		if den := math.Sqrt(xx * yy); den > eps {
			rs[lag-minLag] = xy / den
		}
		top = math.Max(top, rs[lag-minLag])
	}
	if top <= 0 {
		return pitchEstimate{}
	}
	for i, r := range rs {
		if r < 0.97*top {
			continue
		}
		if i > 0 && rs[i-1] > r {
			continue
		}
		if i < len(rs)-1 && rs[i+1] > r {
			continue
		}
		return pitchEstimate{hz: float64(sampleRate) / float64(i+minLag), r: r}
	}
	return pitchEstimate{}
}

// perturbation is the mean absolute difference of consecutive values
// relative to their mean. Used for period (jitter) and amplitude (shimmer)
// perturbation. Needs at least two values.
func perturbation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var diff, sum float64
	for i, v := range values {
		sum += v
		if i > 0 {
			diff += math.Abs(v - values[i-1])
		}
	}
	mean := sum / float64(len(values))
	if mean < eps {
		return 0
	}
	return diff / float64(len(values)-1) / mean
}

// hnrDB converts the autocorrelation peak of a voiced frame into a
// harmonics-to-noise ratio.
func hnrDB(r float64) float64 {
	r = math.Min(math.Max(r, 0.001), 0.999)
	return 10 * math.Log10(r/(1-r))
}

func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i] >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

func peakAmplitude(frame []float64) float64 {
	var p float64
	for _, s := range frame {
		p = math.Max(p, math.Abs(s))
	}
	return p
}
