package clip

import (
	"fmt"
	"sync/atomic"

	"github.com/zurustar/son-et/pkg/event"
	"github.com/zurustar/son-et/pkg/musicaltime"
	"github.com/zurustar/son-et/pkg/nodeid"
	"github.com/zurustar/son-et/pkg/transport"
)

// ClipPosition places a clip on the arrangement timeline: NotePosition is
// where it sits, Offset is where playback begins inside the source.
type ClipPosition struct {
	NotePosition
	Offset musicaltime.MusicalTime
}

// Kind tags which variant a Clip holds.
type Kind uint8

const (
	KindAudio Kind = iota
	KindMidi
)

// Clip is a placed reference to a Sample or a MidiPattern. It is cheaply
// clonable; its position (and, for MIDI clips, its pattern) are held
// behind atomic pointers so that drag/trim/pattern edits from the control
// thread become visible to the audio thread atomically, with acquire
// ordering on every read.
type Clip struct {
	Kind Kind
	ID   nodeid.ID

	sample  *Sample // immutable, nil for MIDI clips
	pattern atomic.Pointer[MidiPattern]

	position atomic.Pointer[ClipPosition]
}

// NewClipPosition validates start < end and offset <= end-start before
// returning a ClipPosition.
func NewClipPosition(start, end, offset musicaltime.MusicalTime) (ClipPosition, error) {
	np, err := NewNotePosition(start, end)
	if err != nil {
		return ClipPosition{}, err
	}
	if offset > np.Len() {
		return ClipPosition{}, fmt.Errorf("clip: offset %v exceeds clip length %v", offset, np.Len())
	}
	return ClipPosition{NotePosition: np, Offset: offset}, nil
}

// NewAudioClip places sample on the timeline at pos. pos.Offset plus the
// clip's length must not exceed the sample's length.
func NewAudioClip(sample *Sample, pos ClipPosition, tr *transport.Transport) (*Clip, error) {
	sourceLen := uint64(sample.Frames()) * 2
	if pos.Offset.ToSamples(tr)+pos.Len().ToSamples(tr) > sourceLen {
		return nil, fmt.Errorf("clip: offset+length exceeds source sample length")
	}
	c := &Clip{Kind: KindAudio, ID: nodeid.New(), sample: sample}
	c.position.Store(&pos)
	return c, nil
}

// NewMidiClip places pattern on the timeline at pos.
func NewMidiClip(pattern *MidiPattern, pos ClipPosition) *Clip {
	c := &Clip{Kind: KindMidi, ID: nodeid.New()}
	c.pattern.Store(pattern)
	c.position.Store(&pos)
	return c
}

// Position returns the clip's current placement.
func (c *Clip) Position() ClipPosition {
	return *c.position.Load()
}

// Sample returns the clip's audio asset, or nil for a MIDI clip.
func (c *Clip) Sample() *Sample {
	return c.sample
}

// Pattern returns the clip's current MIDI pattern snapshot, or nil for an
// audio clip.
func (c *Clip) Pattern() *MidiPattern {
	return c.pattern.Load()
}

// SetPattern atomically swaps in a new pattern snapshot (copy-on-write).
func (c *Clip) SetPattern(p *MidiPattern) {
	c.pattern.Store(p)
}

// MoveTo shifts both start and end by the delta to t, leaving the
// in-source offset unchanged.
func (c *Clip) MoveTo(t musicaltime.MusicalTime) {
	old := c.Position()
	delta := t.SaturatingSub(old.Start)
	neg := t < old.Start
	next := old
	if neg {
		d := old.Start.SaturatingSub(t)
		next.Start = old.Start.SaturatingSub(d)
		next.End = old.End.SaturatingSub(d)
	} else {
		next.Start = old.Start.Add(delta)
		next.End = old.End.Add(delta)
	}
	c.position.Store(&next)
}

// TrimStartTo moves the clip's start to t, clamped to [start-offset,
// end), shifting offset by the same delta so the underlying audio/MIDI
// content does not slide in place.
func (c *Clip) TrimStartTo(t musicaltime.MusicalTime) {
	old := c.Position()

	lowerBound := old.Start.SaturatingSub(old.Offset)
	if t < lowerBound {
		t = lowerBound
	}
	if t >= old.End {
		t = old.End.SaturatingSub(1)
	}

	next := old
	if t < old.Start {
		d := old.Start.SaturatingSub(t)
		next.Start = old.Start.SaturatingSub(d)
		next.Offset = old.Offset.SaturatingSub(d)
	} else {
		d := t.SaturatingSub(old.Start)
		next.Start = old.Start.Add(d)
		next.Offset = old.Offset.Add(d)
	}
	c.position.Store(&next)
}

// TrimEndTo moves the clip's end to t, clamped to (start, start +
// sourceLength - offset] for an audio clip (so offset plus the clip's
// length never exceeds the source); unconstrained above for a MIDI clip.
func (c *Clip) TrimEndTo(t musicaltime.MusicalTime, sourceLength musicaltime.MusicalTime, bounded bool) {
	old := c.Position()
	if t <= old.Start {
		t = old.Start.Add(1)
	}
	if bounded {
		upper := sourceLength.SaturatingSub(old.Offset).Add(old.Start)
		if t > upper {
			t = upper
		}
	}
	next := old
	next.End = t
	c.position.Store(&next)
}

// MixInto additively mixes this clip's audio into buf (pre-zeroed by the
// caller) over the intersection of [blockStartSample, blockStartSample+
// len(buf)/2) with the clip's placed range. buf is interleaved stereo.
func (c *Clip) MixInto(blockStartSample uint64, buf []float32, tr *transport.Transport) error {
	if c.Kind != KindAudio {
		return fmt.Errorf("clip: MixInto called on a non-audio clip")
	}
	pos := c.Position()
	sample := c.sample

	clipStart := pos.Start.ToSamples(tr)
	clipEnd := pos.End.ToSamples(tr)
	sourceOffset := pos.Offset.ToSamples(tr)

	blockFrames := uint64(len(buf) / 2)
	blockEnd := blockStartSample + blockFrames*2

	lo := max64(blockStartSample, clipStart)
	hi := min64(blockEnd, clipEnd)
	if lo >= hi {
		return nil
	}

	for s := lo; s < hi; s += 2 {
		srcIdx := sourceOffset + (s - clipStart)
		if int(srcIdx+1) >= len(sample.PCM) {
			break
		}
		dstIdx := s - blockStartSample
		if int(dstIdx+1) >= len(buf) {
			break
		}
		buf[dstIdx] += sample.PCM[srcIdx]
		buf[dstIdx+1] += sample.PCM[srcIdx+1]
	}
	return nil
}

// EmitMIDI appends NoteOn/NoteOff events for notes in this clip's pattern
// that start or end within the block [blockStartSample,
// blockStartSample+blockFrames*2). sounding tracks per-key note-on state
// across blocks so a playhead jump can synthesize NoteOffs before the new
// position's NoteOns (see Track.HandlePlayheadJump).
func (c *Clip) EmitMIDI(blockStartSample uint64, blockFrames uint32, tr *transport.Transport, sounding map[uint8]bool, out *[]event.Event) error {
	if c.Kind != KindMidi {
		return fmt.Errorf("clip: EmitMIDI called on a non-midi clip")
	}
	pos := c.Position()
	pattern := c.pattern.Load()

	clipStart := pos.Start.ToSamples(tr)
	clipOffset := pos.Offset.ToSamples(tr)
	blockEnd := blockStartSample + uint64(blockFrames)*2

	for _, n := range pattern.Notes {
		noteStart := clipStart + n.Position.Start.ToSamples(tr) - clipOffset
		noteEnd := clipStart + n.Position.End.ToSamples(tr) - clipOffset

		if noteStart >= blockStartSample && noteStart < blockEnd {
			t := uint32((noteStart - blockStartSample) / 2)
			*out = append(*out, event.NoteOn(t, n.Key, n.Velocity))
			sounding[n.Key] = true
		}
		if noteEnd >= blockStartSample && noteEnd < blockEnd {
			t := uint32((noteEnd - blockStartSample) / 2)
			*out = append(*out, event.NoteOff(t, n.Key, 0))
			delete(sounding, n.Key)
		}
	}
	return nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
