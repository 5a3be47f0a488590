// Package extractor turns a prepared mono clip into an AudioFeatureSet and
// into cepstral sequences for reference alignment.
package extractor

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pronounce-go/internal/audio"
	"pronounce-go/internal/config"
	"pronounce-go/internal/logger"
	"pronounce-go/internal/types"
)

type Extractor struct {
	cfg config.ExtractorTuning
	log *logrus.Entry
}

func New(cfg config.ExtractorTuning, log *logrus.Entry) *Extractor {
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{cfg: cfg, log: log.WithField("component", "extractor")}
}

// frameStats is everything measured on one analysis frame.
type frameStats struct {
	energy   float64
	zcr      float64
	pitch    pitchEstimate
	voiced   bool
	peak     float64
	spectral spectralFrame
	flux     float64
	formants []float64
	mfcc     []float64
}

// Extract analyzes a clip that has already been trimmed and peak-normalized.
// Clips shorter than one frame yield a zeroed set; this is not an error.
func (e *Extractor) Extract(clip audio.Clip) types.AudioFeatureSet {
	fs := types.AudioFeatureSet{
		SampleRate:         clip.SampleRate,
		DurationSec:        clip.Duration(),
		Formants:           []float64{},
		EnergyDistribution: make([]float64, e.cfg.EnergyBins),
		MFCC:               make([]float64, e.cfg.MFCCCount),
	}
	if clip.SampleRate <= 0 {
		return fs
	}
	frameLen := int(math.Round(float64(clip.SampleRate) * e.cfg.FrameMs / 1000))
	hop := int(math.Round(float64(clip.SampleRate) * e.cfg.HopMs / 1000))
	if frameLen < 2 || hop < 1 || len(clip.Samples) < frameLen {
		return fs
	}

	fftSize := nextPow2(frameLen)
	t := newTransformer(frameLen, fftSize, clip.SampleRate)
	bank := newMelBank(fftSize, clip.SampleRate, e.cfg.MelFilters, e.cfg.MFCCCount)

	var frames []frameStats
	var prevMag []float64
	for start := 0; start+frameLen <= len(clip.Samples); start += hop {
		frame := clip.Samples[start : start+frameLen]
		st := frameStats{
			zcr:  zeroCrossingRate(frame),
			peak: peakAmplitude(frame),
		}
		for _, s := range frame {
			st.energy += s * s
		}
		st.energy /= float64(frameLen)

		st.pitch = autocorrPitch(frame, clip.SampleRate, e.cfg.MinPitchHz, e.cfg.MaxPitchHz)
		st.voiced = st.pitch.r >= e.cfg.VoicingThreshold &&
			st.pitch.hz > e.cfg.MinPitchHz && st.pitch.hz < e.cfg.MaxPitchHz

		spec := t.spectrum(frame)
		st.spectral = analyzeSpectrum(spec, e.cfg.RolloffFraction)
		if prevMag != nil {
			st.flux = spectralFlux(prevMag, spec.mag)
		}
		prevMag = spec.mag
		st.formants = formantPeaks(spec, e.cfg.FormantMinHz, e.cfg.FormantMaxHz, e.cfg.MaxFormants)
		st.mfcc = bank.apply(spec.power)
		frames = append(frames, st)
	}

	e.aggregate(&fs, frames, hop, clip.SampleRate)
	e.log.WithFields(logrus.Fields{
		"frames":    fs.FrameCount,
		"syllables": fs.SyllableCount,
		"pitches":   fs.PitchCount,
	}).Debug("features extracted")
	return fs
}

func (e *Extractor) aggregate(fs *types.AudioFeatureSet, frames []frameStats, hop, sampleRate int) {
	n := len(frames)
	fs.FrameCount = n
	hopSec := float64(hop) / float64(sampleRate)

	energies := make([]float64, n)
	var pitches, periods, amps, hnrs []float64
	var onsets []int
	var fluxSum float64
	formantSums := make([]float64, e.cfg.MaxFormants)
	formantHits := make([]int, e.cfg.MaxFormants)
	above := false

	for i, st := range frames {
		energies[i] = st.energy

		// syllable onsets are rising edges over the energy threshold
		if st.energy > e.cfg.SyllableEnergyThreshold {
			if !above {
				onsets = append(onsets, i)
			}
			above = true
		} else {
			above = false
		}

		if st.voiced {
			pitches = append(pitches, st.pitch.hz)
			periods = append(periods, 1/st.pitch.hz)
			amps = append(amps, st.peak)
			hnrs = append(hnrs, hnrDB(st.pitch.r))
		}

		if st.voiced || len(st.formants) == e.cfg.MaxFormants {
			for j, f := range st.formants {
				formantSums[j] += f
				formantHits[j]++
			}
		}

		fs.SpectralCentroid += st.spectral.centroid
		fs.SpectralRolloff += st.spectral.rolloff
		fs.SpectralBandwidth += st.spectral.bandwidth
		fs.SpectralFlatness += st.spectral.flatness
		fs.SpectralSpread += st.spectral.spread
		fs.SpectralSkewness += st.spectral.skewness
		fs.SpectralKurtosis += st.spectral.kurtosis
		fs.SpectralContrast += st.spectral.contrast
		fs.ZeroCrossingRate += st.zcr
		fluxSum += st.flux
		for k, c := range st.mfcc {
			fs.MFCC[k] += c
		}
	}

	nf := float64(n)
	fs.SpectralCentroid /= nf
	fs.SpectralRolloff /= nf
	fs.SpectralBandwidth /= nf
	fs.SpectralFlatness = clamp01(fs.SpectralFlatness / nf)
	fs.SpectralSpread /= nf
	fs.SpectralSkewness /= nf
	fs.SpectralKurtosis /= nf
	fs.SpectralContrast = clamp01(fs.SpectralContrast / nf)
	fs.ZeroCrossingRate = clamp01(fs.ZeroCrossingRate / nf)
	if n > 1 {
		fs.SpectralFlux = clamp01(fluxSum / float64(n-1))
	}
	floats.Scale(1/nf, fs.MFCC)

	for j := range formantSums {
		if formantHits[j] > 0 {
			fs.Formants = append(fs.Formants, formantSums[j]/float64(formantHits[j]))
		}
	}

	// energy
	mean, std := stat.PopMeanStdDev(energies, nil)
	fs.EnergyMean = mean
	if mean > eps {
		fs.EnergyVariation = std / mean
	}
	fs.EnergyDistribution = histogram(energies, e.cfg.EnergyBins)

	// syllables and rhythm
	fs.SyllableCount = len(onsets)
	if fs.SyllableCount > 0 {
		fs.AvgSyllableDuration = fs.DurationSec / float64(fs.SyllableCount)
	}
	if len(onsets) >= 3 {
		intervals := make([]float64, len(onsets)-1)
		for i := 1; i < len(onsets); i++ {
			intervals[i-1] = float64(onsets[i]-onsets[i-1]) * hopSec
		}
		im, is := stat.PopMeanStdDev(intervals, nil)
		if im > eps {
			fs.RhythmConsistency = clamp01(1 - is/im)
		}
	}

	// pitch and voice quality
	fs.PitchCount = len(pitches)
	if len(pitches) >= 2 {
		pm, ps := stat.PopMeanStdDev(pitches, nil)
		fs.PitchMean = pm
		if pm > eps {
			fs.PitchVariation = clamp01(ps / pm)
		}
		fs.Jitter = clamp01(perturbation(periods))
		fs.Shimmer = clamp01(perturbation(amps))
		fs.HNR = math.Max(0, stat.Mean(hnrs, nil))
	} else if len(pitches) == 1 {
		fs.PitchMean = pitches[0]
	}
}

// histogram bins values over [0, max] and returns per-bin proportions.
func histogram(values []float64, bins int) []float64 {
	out := make([]float64, bins)
	if len(values) == 0 || bins == 0 {
		return out
	}
	top := floats.Max(values)
	if top <= 0 {
		out[0] = 1
		return out
	}
	for _, v := range values {
		i := int(v / top * float64(bins))
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		out[i]++
	}
	floats.Scale(1/float64(len(values)), out)
	return out
}
