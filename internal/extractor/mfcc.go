package extractor

import (
	"math"

	"pronounce-go/internal/audio"
)

// melBank is a triangular mel filterbank followed by a DCT-II.
type melBank struct {
	filters [][]float64 // per filter, weight per FFT bin
	coeffs  int
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

func newMelBank(fftSize, sampleRate, filters, coeffs int) *melBank {
	bins := fftSize/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)
	points := make([]int, filters+2)
	for i := range points {
		hz := melToHz(maxMel * float64(i) / float64(filters+1))
		points[i] = int(math.Floor(float64(fftSize+1) * hz / float64(sampleRate)))
		if points[i] >= bins {
			points[i] = bins - 1
		}
	}
	bank := make([][]float64, filters)
	for m := 1; m <= filters; m++ {
		w := make([]float64, bins)
		left, center, right := points[m-1], points[m], points[m+1]
		for k := left; k < center; k++ {
			w[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right; k++ {
			w[k] = float64(right-k) / float64(right-center)
		}
		if center == left || center == right {
			w[center] = 1
		}
		bank[m-1] = w
	}
	return &melBank{filters: bank, coeffs: coeffs}
}

// apply returns the cepstral coefficients 0..coeffs-1 for a power spectrum.
func (b *melBank) apply(power []float64) []float64 {
	logE := make([]float64, len(b.filters))
	for m, w := range b.filters {
		var e float64
		for k, p := range power {
			if k < len(w) {
				e += w[k] * p
			}
		}
		logE[m] = math.Log(e + eps)
	}
	n := float64(len(logE))
	out := make([]float64, b.coeffs)
	for k := range out {
		var s float64
		for m, v := range logE {
			s += v * math.Cos(math.Pi*float64(k)*(float64(m)+0.5)/n)
		}
		scale := math.Sqrt(2 / n)
		if k == 0 {
			scale = math.Sqrt(1 / n)
		}
		out[k] = s * scale
	}
	return out
}

// Sequence returns per-frame cepstral vectors (coefficients 1..N-1, the
// energy term dropped) for alignment. Frames are SequenceFFTSize long with
// SequenceHop spacing. Clips shorter than one frame yield nil.
func (e *Extractor) Sequence(clip audio.Clip) [][]float64 {
	size, hop := e.cfg.SequenceFFTSize, e.cfg.SequenceHop
	if clip.SampleRate <= 0 || len(clip.Samples) < size {
		return nil
	}
	t := newTransformer(size, size, clip.SampleRate)
	bank := newMelBank(size, clip.SampleRate, e.cfg.MelFilters, e.cfg.MFCCCount)
	var seq [][]float64
	for start := 0; start+size <= len(clip.Samples); start += hop {
		c := bank.apply(t.spectrum(clip.Samples[start : start+size]).power)
		seq = append(seq, c[1:])
	}
	return seq
}
