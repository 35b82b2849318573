// Package transport holds the shared, read-mostly playback record that the
// musical time model, the clip model, and the audio context all convert
// against. It is deliberately dependency-free so every other component in
// the engine core can import it without creating a cycle.
package transport

import "sync/atomic"

// Transport is safe for single-writer/many-reader access. While the engine
// is playing, the audio thread is the sole writer of Sample; every other
// field is set up front or mutated rarely from the control thread.
type Transport struct {
	// SampleRate is the engine's operating sample rate in Hz. Positive.
	SampleRate uint32

	// BPM is the current tempo, typically 30-600.
	BPM uint32

	// Numerator is the current meter's top number, 1-255.
	Numerator uint8

	// sample is the playhead position in interleaved stereo samples.
	sample atomic.Uint64

	// playing indicates whether the transport is advancing.
	playing atomic.Bool

	// metronome indicates whether the click track should sound.
	metronome atomic.Bool
}

// New builds a stopped Transport at the given sample rate, tempo, and meter.
func New(sampleRate, bpm uint32, numerator uint8) *Transport {
	return &Transport{
		SampleRate: sampleRate,
		BPM:        bpm,
		Numerator:  numerator,
	}
}

// Sample returns the current playhead position.
func (t *Transport) Sample() uint64 {
	return t.sample.Load()
}

// SetSample sets the playhead position directly, e.g. on a playhead jump.
func (t *Transport) SetSample(s uint64) {
	t.sample.Store(s)
}

// AdvanceSample moves the playhead forward by delta interleaved samples.
// Called once per block by the audio thread while playing.
func (t *Transport) AdvanceSample(delta uint64) {
	t.sample.Add(delta)
}

// Playing reports whether the transport is currently advancing.
func (t *Transport) Playing() bool {
	return t.playing.Load()
}

// SetPlaying sets the playing flag.
func (t *Transport) SetPlaying(playing bool) {
	t.playing.Store(playing)
}

// Metronome reports whether the click track is enabled.
func (t *Transport) Metronome() bool {
	return t.metronome.Load()
}

// SetMetronome toggles the click track.
func (t *Transport) SetMetronome(on bool) {
	t.metronome.Store(on)
}
