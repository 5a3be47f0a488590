package extractor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const eps = 1e-12

// spectrum is the one-sided magnitude spectrum of a windowed frame.
type spectrum struct {
	mag   []float64
	power []float64
	binHz float64
}

func (s spectrum) freq(k int) float64 { return float64(k) * s.binHz }

// transformer owns the FFT plan, window and scratch space for one frame size.
// Not safe for concurrent use; each extraction builds its own.
type transformer struct {
	fft    *fourier.FFT
	win    []float64
	buf    []float64
	coeffs []complex128
	binHz  float64
}

func newTransformer(frameLen, fftSize, sampleRate int) *transformer {
	ones := make([]float64, frameLen)
	for i := range ones {
		ones[i] = 1
	}
	return &transformer{
		fft:    fourier.NewFFT(fftSize),
		win:    window.Hann(ones),
		buf:    make([]float64, fftSize),
		coeffs: make([]complex128, fftSize/2+1),
		binHz:  float64(sampleRate) / float64(fftSize),
	}
}

func (t *transformer) spectrum(frame []float64) spectrum {
	for i := range t.buf {
		t.buf[i] = 0
	}
	for i, s := range frame {
		if i >= len(t.win) {
			break
		}
		t.buf[i] = s * t.win[i]
	}
	t.coeffs = t.fft.Coefficients(t.coeffs, t.buf)
	mag := make([]float64, len(t.coeffs))
	power := make([]float64, len(t.coeffs))
	for k, c := range t.coeffs {
		m := math.Hypot(real(c), imag(c))
		mag[k] = m
		power[k] = m * m
	}
	return spectrum{mag: mag, power: power, binHz: t.binHz}
}

type spectralFrame struct {
	centroid  float64
	spread    float64
	skewness  float64
	kurtosis  float64
	rolloff   float64
	flatness  float64
	bandwidth float64
	contrast  float64
}

func analyzeSpectrum(s spectrum, rolloffFraction float64) spectralFrame {
	var total, totalPower float64
	for k := range s.mag {
		total += s.mag[k]
		totalPower += s.power[k]
	}
	if total < eps {
		return spectralFrame{}
	}

	var out spectralFrame
	for k, m := range s.mag {
		out.centroid += s.freq(k) * m
	}
	out.centroid /= total

	var m2, m3, m4 float64
	for k, m := range s.mag {
		d := s.freq(k) - out.centroid
		m2 += d * d * m
		m3 += d * d * d * m
		m4 += d * d * d * d * m
	}
	m2 /= total
	m3 /= total
	m4 /= total
	out.spread = math.Sqrt(m2)
	if out.spread > eps {
		out.skewness = m3 / math.Pow(out.spread, 3)
		out.kurtosis = m4/(m2*m2) - 3
	}

	var cum float64
	target := rolloffFraction * totalPower
	for k, p := range s.power {
		cum += p
		if cum >= target {
			out.rolloff = s.freq(k)
			break
		}
	}

	var logSum float64
	for _, p := range s.power {
		logSum += math.Log(p + eps)
	}
	geo := math.Exp(logSum / float64(len(s.power)))
	arith := totalPower / float64(len(s.power))
	out.flatness = clamp01(geo / (arith + eps))

	// -3 dB span around the strongest bins
	peak := 0.0
	for _, p := range s.power {
		peak = math.Max(peak, p)
	}
	lo, hi := -1, -1
	for k, p := range s.power {
		if p >= peak/2 {
			if lo < 0 {
				lo = k
			}
			hi = k
		}
	}
	if lo >= 0 {
		out.bandwidth = s.freq(hi) - s.freq(lo) + s.binHz
	}

	out.contrast = contrast(s.power)
	return out
}

// contrast compares the mean of the loudest fifth of bins with the quietest
// fifth, in [0,1].
func contrast(power []float64) float64 {
	sorted := append([]float64(nil), power...)
	sort.Float64s(sorted)
	n := len(sorted) / 5
	if n == 0 {
		return 0
	}
	var low, high float64
	for i := 0; i < n; i++ {
		low += sorted[i]
		high += sorted[len(sorted)-1-i]
	}
	if high+low < eps {
		return 0
	}
	return clamp01((high - low) / (high + low))
}

// spectralFlux is the normalized L1 change between consecutive magnitude
// spectra, in [0,1].
func spectralFlux(prev, cur []float64) float64 {
	if len(prev) != len(cur) {
		return 0
	}
	var diff, sum float64
	for k := range cur {
		diff += math.Abs(cur[k] - prev[k])
		sum += cur[k] + prev[k]
	}
	if sum < eps {
		return 0
	}
	return clamp01(diff / sum)
}

// formantPeaks picks local magnitude maxima inside [minHz,maxHz] that reach
// at least a tenth of the frame's strongest bin, strongest first, returning
// up to max frequencies in ascending order.
func formantPeaks(s spectrum, minHz, maxHz float64, max int) []float64 {
	top := 0.0
	for _, m := range s.mag {
		top = math.Max(top, m)
	}
	if top < eps {
		return nil
	}
	type peak struct{ hz, mag float64 }
	var peaks []peak
	for k := 1; k < len(s.mag)-1; k++ {
		f := s.freq(k)
		if f < minHz || f > maxHz {
			continue
		}
		m := s.mag[k]
		if m > s.mag[k-1] && m >= s.mag[k+1] && m >= top/10 {
			peaks = append(peaks, peak{hz: f, mag: m})
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].mag > peaks[j].mag })
	if len(peaks) > max {
		peaks = peaks[:max]
	}
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = p.hz
	}
	sort.Float64s(out)
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
