package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/smallnest/ringbuffer"

	"github.com/zurustar/son-et/pkg/clip"
	"github.com/zurustar/son-et/pkg/resampler"
)

// recorderStagingBytes sizes the byte ring buffer staging input frames
// between the device's input callback and the control thread's drain
// loop: 4 seconds of interleaved stereo float32 at a generous 192kHz.
const recorderStagingBytes = 4 * 192000 * 2 * 4

// Recorder captures device input, resamples it to the engine's rate, and
// on Finish produces an immutable Sample ready to place as a clip. The
// byte staging ring decouples the input device's callback cadence from
// the control thread's drain cadence the way the reference engine's
// rtrb ring decouples producer and consumer; see the Audio Context's
// control<->audio channel for the same pattern applied to messages.
type Recorder struct {
	staging    *ringbuffer.RingBuffer
	resamp     *resampler.Resampler
	startSample uint64
	frameBuf   []byte
}

// NewRecorder begins a recording: deviceSR is the input device's sample
// rate, engineSR the engine's, startSample the transport position at the
// moment recording began.
func NewRecorder(deviceSR, engineSR int, startSample uint64) *Recorder {
	return &Recorder{
		staging:     ringbuffer.New(recorderStagingBytes),
		resamp:      resampler.New(deviceSR, engineSR, 2),
		startSample: startSample,
	}
}

// PushInput stages interleaved stereo input frames from the device
// callback. Called on the audio (or dedicated input) thread; never
// blocks, since the ring is sized generously and a full ring simply
// drops the newest frames rather than stalling the caller.
func (r *Recorder) PushInput(frames []float32) {
	buf := make([]byte, len(frames)*4)
	for i, f := range frames {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	r.staging.Write(buf) //nolint:errcheck // a full ring intentionally drops frames
}

// Drain moves every currently-staged frame from the ring into the
// resampler. Called by the control thread between Recorder lifetime
// events; safe to call repeatedly with no pending input.
func (r *Recorder) Drain() {
	avail := r.staging.Length()
	if avail == 0 {
		return
	}
	if cap(r.frameBuf) < avail {
		r.frameBuf = make([]byte, avail)
	}
	buf := r.frameBuf[:avail]
	n, _ := r.staging.Read(buf)
	if n == 0 {
		return
	}
	frames := make([]float32, n/4)
	for i := range frames {
		frames[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	r.resamp.Process(frames)
}

// Finish drains any remaining staged input, finalizes the resampler, and
// builds an immutable Sample from the result.
func (r *Recorder) Finish(name string) (*clip.Sample, error) {
	r.Drain()
	pcm := r.resamp.Finish()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("engine: recording produced no audio")
	}
	return clip.NewSample("", name, pcm)
}

// StartSample reports the transport position recording began at.
func (r *Recorder) StartSample() uint64 { return r.startSample }
