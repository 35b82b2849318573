// Package musicaltime implements the engine's canonical fixed-point time
// representation: beat*2^16 + tick, convertible to and from samples under a
// transport.Transport. Sixteen tick bits divide evenly into the common
// note subdivisions (down to 1/128 notes and their dotted/triplet
// variants) so snapping never accumulates rounding error, and 64 bits are
// comfortably enough for hundreds of hours of material at realistic tempos.
package musicaltime

import "github.com/zurustar/son-et/pkg/transport"

// TicksPerBeat is the number of ticks in one beat.
const TicksPerBeat = 1 << 16

// MusicalTime is beat*TicksPerBeat + tick, packed into a single uint64.
// The natural integer ordering on the packed value is the time ordering.
type MusicalTime uint64

// Zero is the start of the arrangement timeline.
const Zero MusicalTime = 0

// New builds a MusicalTime from a beat and a tick count. Ticks beyond
// TicksPerBeat-1 carry into the beat, which is how constructors enforce the
// tick < TicksPerBeat invariant without ever failing.
func New(beat, tick uint64) MusicalTime {
	beat += tick / TicksPerBeat
	tick %= TicksPerBeat
	return MusicalTime(beat*TicksPerBeat + tick)
}

// Beat returns the whole-beat component.
func (m MusicalTime) Beat() uint64 {
	return uint64(m) / TicksPerBeat
}

// Tick returns the sub-beat tick component, always < TicksPerBeat.
func (m MusicalTime) Tick() uint64 {
	return uint64(m) % TicksPerBeat
}

// Add returns m + other. MusicalTime has no natural upper bound in this
// engine's range, so Add never saturates.
func (m MusicalTime) Add(other MusicalTime) MusicalTime {
	return m + other
}

// SaturatingSub returns m - other, clamped to Zero instead of underflowing.
func (m MusicalTime) SaturatingSub(other MusicalTime) MusicalTime {
	if other > m {
		return Zero
	}
	return m - other
}

// AbsDiff returns the absolute difference between m and other.
func (m MusicalTime) AbsDiff(other MusicalTime) MusicalTime {
	if m > other {
		return m - other
	}
	return other - m
}

// Less reports whether m occurs strictly before other.
func (m MusicalTime) Less(other MusicalTime) bool {
	return m < other
}

// Floor rounds m down to the nearest multiple of modulus. A zero modulus
// leaves m unchanged.
func (m MusicalTime) Floor(modulus MusicalTime) MusicalTime {
	if modulus == 0 {
		return m
	}
	return m - m%modulus
}

// Ceil rounds m up to the nearest multiple of modulus.
func (m MusicalTime) Ceil(modulus MusicalTime) MusicalTime {
	if modulus == 0 {
		return m
	}
	rem := m % modulus
	if rem == 0 {
		return m
	}
	return m + (modulus - rem)
}

// Round rounds m to the nearest multiple of modulus, ties rounding up.
func (m MusicalTime) Round(modulus MusicalTime) MusicalTime {
	if modulus == 0 {
		return m
	}
	rem := m % modulus
	if uint64(rem)*2 < uint64(modulus) {
		return m - rem
	}
	return m + (modulus - rem)
}

// FromSamples converts an interleaved-stereo sample count to MusicalTime
// under t, computing (samples * bpm * 2^15) / (sampleRate * 60) in integer
// arithmetic. samples must be even (stereo interleaving); callers that only
// have a frame count should double it first.
func FromSamples(samples uint64, t *transport.Transport) MusicalTime {
	num := samples * uint64(t.BPM) * (TicksPerBeat / 2)
	den := uint64(t.SampleRate) * 60
	return MusicalTime(num / den)
}

// ToSamples converts m to an interleaved-stereo sample count under t,
// rounding up to the next even number so the result always addresses a
// whole stereo frame.
func (m MusicalTime) ToSamples(t *transport.Transport) uint64 {
	num := uint64(m) * uint64(t.SampleRate) * 60
	den := uint64(t.BPM) * (TicksPerBeat / 2)
	samples := num / den
	if num%den != 0 {
		samples++
	}
	if samples%2 != 0 {
		samples++
	}
	return samples
}

// FromSamplesF is the floating-point variant of FromSamples, used by the UI
// and the resampler where sub-sample interpolation matters.
func FromSamplesF(samples float64, t *transport.Transport) MusicalTime {
	ratio := float64(t.BPM) * (TicksPerBeat / 2) / (float64(t.SampleRate) * 60)
	return MusicalTime(samples * ratio)
}

// ToSamplesF is the floating-point variant of ToSamples.
func (m MusicalTime) ToSamplesF(t *transport.Transport) float64 {
	ratio := float64(t.SampleRate) * 60 / (float64(t.BPM) * (TicksPerBeat / 2))
	return float64(m) * ratio
}

// SnapStep derives a snap increment from a zoom-like scalar. Below scale
// 16 the step is a pure power-of-two tick subdivision (at most half a
// beat); from scale 16 it is one whole bar (Numerator beats), and above
// scale 16+barExtra it doubles per scale step, so that coarse snapping
// always lands on a bar boundary.
func SnapStep(scale float32, t *transport.Transport) MusicalTime {
	const (
		beatBits = 16 // TicksPerBeat == 1<<16
		barExtra = 4  // scales above beatBits for which the step stays at one bar
	)
	scaleBits := int(scale)
	if scaleBits < beatBits {
		if scaleBits < 0 {
			scaleBits = 0
		}
		return MusicalTime(1) << uint(scaleBits)
	}
	barShift := scaleBits - beatBits - barExtra
	if barShift < 0 {
		barShift = 0
	}
	return MusicalTime(t.Numerator) << uint(beatBits+barShift)
}

// SnapFloor rounds m down to the nearest SnapStep(scale, t) boundary.
func SnapFloor(m MusicalTime, scale float32, t *transport.Transport) MusicalTime {
	return m.Floor(SnapStep(scale, t))
}

// SnapCeil rounds m up to the nearest SnapStep(scale, t) boundary.
func SnapCeil(m MusicalTime, scale float32, t *transport.Transport) MusicalTime {
	return m.Ceil(SnapStep(scale, t))
}

// SnapRound rounds m to the nearest SnapStep(scale, t) boundary.
func SnapRound(m MusicalTime, scale float32, t *transport.Transport) MusicalTime {
	return m.Round(SnapStep(scale, t))
}
