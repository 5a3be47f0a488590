package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrEmptyInput         = errors.New("audio: empty input")
	ErrUnsupportedFormat  = errors.New("audio: unsupported wav format")
	ErrSampleRateMismatch = errors.New("audio: sample rate mismatch")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Clip is decoded mono audio with samples in [-1,1].
type Clip struct {
	Samples    []float64
	SampleRate int
	// set when the source already was 16-bit mono PCM
	nativePCM16 bool
}

// Duration in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// DecodeWAV decodes a PCM WAV payload, normalizing integer samples by the
// source bit depth and averaging channels down to mono.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, ErrEmptyInput
	}
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return Clip{}, fmt.Errorf("%w: not a RIFF/WAVE payload", ErrUnsupportedFormat)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return Clip{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decode pcm: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return Clip{}, ErrEmptyInput
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	if depth < 8 || depth > 32 {
		return Clip{}, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, depth)
	}
	scale := float64(int64(1) << (depth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			v := buf.Data[i*channels+ch]
			if depth == 8 {
				// 8-bit WAV is unsigned
				v -= 128
			}
			sum += float64(v) / scale
		}
		samples[i] = clampUnit(sum / float64(channels))
	}
	return Clip{
		Samples:     samples,
		SampleRate:  buf.Format.SampleRate,
		nativePCM16: channels == 1 && depth == 16,
	}, nil
}

// EncodeWAV writes samples as 16-bit mono PCM WAV.
func EncodeWAV(samples []float64, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, 1, wavFormatPCM)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(clampUnit(s) * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finalize wav: %w", err)
	}
	return ws.buf, nil
}

// ProviderPayload returns bytes suitable for the speech provider: the
// original payload when it already is 16-bit mono PCM, otherwise the
// downmixed clip re-encoded at its own sample rate.
func ProviderPayload(original []byte, clip Clip) ([]byte, error) {
	if clip.nativePCM16 {
		return original, nil
	}
	return EncodeWAV(clip.Samples, clip.SampleRate)
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// memWriteSeeker is the in-memory io.WriteSeeker the wav encoder needs to
// patch chunk sizes on Close.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	m.pos = int(next)
	return next, nil
}
