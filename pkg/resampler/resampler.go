// Package resampler converts a streaming planar input sampled at one rate
// into interleaved stereo output at another rate, with deterministic frame
// counts. It is used both offline, while loading assets, and online, while
// recording, and wraps an FFT-based fixed-input-size conversion the same
// way the reference engine wraps a third-party decoder/synth behind a
// small streaming type (see pkg/vm/audio's MIDIStream/WAVStream pattern).
package resampler

import (
	"math"

	dsp "github.com/tphakala/go-audio-resampler"
)

// blockSize is the resampler's natural input block size, in frames.
const blockSize = 1024

// Resampler streams interleaved stereo frames from sampleRateIn to
// sampleRateOut. Construction fixes the ratio and the output delay the
// underlying converter reports; Process/Finish apply that delay so the
// first emitted sample aligns with the first input sample modulo the
// resampling ratio.
type Resampler struct {
	channels int
	ratio    float64

	conv  *dsp.Converter
	delay int // output frames to skip before the aligned signal begins

	inBuf  []float32 // pending input, not yet a whole block
	out    []float32 // accumulated output, post-alignment
	drop   int       // output samples already skipped (delay compensation)
	inLen  uint64    // total input frames seen, for finish()'s padding math
	trimS  int       // trim_start frames requested
	trimE  int       // trim_end frames requested
	closed bool
}

// New builds a Resampler converting channels-channel audio from sampleRateIn
// to sampleRateOut.
func New(sampleRateIn, sampleRateOut, channels int) *Resampler {
	conv := dsp.NewConverter(sampleRateIn, sampleRateOut, channels, blockSize)
	return &Resampler{
		channels: channels,
		ratio:    float64(sampleRateOut) / float64(sampleRateIn),
		conv:     conv,
		delay:    conv.OutputDelay(),
	}
}

// Reserve hints the expected number of additional input frames, so Process
// never reallocates past the capacity this reserves.
func (r *Resampler) Reserve(frames int) {
	need := int(float64(frames)*r.ratio+1) * r.channels
	if cap(r.out)-len(r.out) < need {
		grown := make([]float32, len(r.out), len(r.out)+need)
		copy(grown, r.out)
		r.out = grown
	}
}

// TrimStart adjusts alignment by dropping frames from the start of the
// output; applied when Finish builds the result.
func (r *Resampler) TrimStart(frames int) {
	r.trimS += frames
}

// TrimEnd adjusts alignment by dropping frames from the end of the output;
// applied when Finish truncates.
func (r *Resampler) TrimEnd(frames int) {
	r.trimE += frames
}

// Process accepts interleaved stereo input, chunks it into the converter's
// natural block size, and appends resampled interleaved frames to the
// internal output buffer.
func (r *Resampler) Process(samples []float32) {
	r.inBuf = append(r.inBuf, samples...)
	r.inLen += uint64(len(samples) / r.channels)

	blockLen := blockSize * r.channels
	for len(r.inBuf) >= blockLen {
		r.emit(r.conv.Convert(r.inBuf[:blockLen]))
		r.inBuf = r.inBuf[blockLen:]
	}
}

func (r *Resampler) emit(frames []float32) {
	skip := r.delay*r.channels - r.drop
	if skip > 0 {
		if skip >= len(frames) {
			r.drop += len(frames)
			return
		}
		frames = frames[skip:]
		r.drop = r.delay * r.channels
	}
	r.out = append(r.out, frames...)
}

// Finish drains the internal input buffer, padding with zeros to a whole
// input block, and truncates the output to
// ceil(totalInFrames*ratio)*channels samples after trim_start/trim_end have
// been applied. Finish may be called at most once.
func (r *Resampler) Finish() []float32 {
	if r.closed {
		return nil
	}
	r.closed = true

	if len(r.inBuf) > 0 {
		padded := make([]float32, blockSize*r.channels)
		copy(padded, r.inBuf)
		r.emit(r.conv.Convert(padded))
		r.inBuf = nil
	}

	if r.trimS > 0 {
		cut := r.trimS * r.channels
		if cut > len(r.out) {
			cut = len(r.out)
		}
		r.out = r.out[cut:]
	}

	want := int(math.Ceil(float64(r.inLen)*r.ratio)) * r.channels
	if r.trimE > 0 {
		want -= r.trimE * r.channels
	}
	if want < 0 {
		want = 0
	}
	if want > len(r.out) {
		want = len(r.out)
	}
	return r.out[:want]
}
