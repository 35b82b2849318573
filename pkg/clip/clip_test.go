package clip

import (
	"math"
	"testing"

	"github.com/zurustar/son-et/pkg/event"
	"github.com/zurustar/son-et/pkg/musicaltime"
	"github.com/zurustar/son-et/pkg/transport"
)

func sineSample(t *testing.T, tr *transport.Transport, seconds float64) *Sample {
	t.Helper()
	frames := int(float64(tr.SampleRate) * seconds)
	pcm := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(2 * math.Pi * 1000 * float64(i) / float64(tr.SampleRate)))
		pcm[i*2] = v
		pcm[i*2+1] = v
	}
	s, err := NewSample("sine.wav", "sine", pcm)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	return s
}

// TestTwoClipsOverlapAdditively mirrors the "two clips, one track" scenario:
// mixing two identical 1s sine clips, the second starting 0.5s in, should
// double the amplitude on the overlap and match the single sine elsewhere.
func TestTwoClipsOverlapAdditively(t *testing.T) {
	tr := transport.New(44100, 120, 4)
	sample := sineSample(t, tr, 1.0)

	posA, err := NewClipPosition(musicaltime.Zero, musicaltime.FromSamples(uint64(tr.SampleRate)*2, tr), musicaltime.Zero)
	if err != nil {
		t.Fatalf("NewClipPosition A: %v", err)
	}
	clipA, err := NewAudioClip(sample, posA, tr)
	if err != nil {
		t.Fatalf("NewAudioClip A: %v", err)
	}

	halfSecSamples := uint64(float64(tr.SampleRate)*0.5) * 2
	startB := musicaltime.FromSamples(halfSecSamples, tr)
	endB := musicaltime.FromSamples(halfSecSamples+uint64(tr.SampleRate)*2, tr)
	posB, err := NewClipPosition(startB, endB, musicaltime.Zero)
	if err != nil {
		t.Fatalf("NewClipPosition B: %v", err)
	}
	clipB, err := NewAudioClip(sample, posB, tr)
	if err != nil {
		t.Fatalf("NewAudioClip B: %v", err)
	}

	blockFrames := uint64(tr.SampleRate) * 2 // one second of interleaved stereo: SampleRate frames, two samples each
	buf := make([]float32, blockFrames)
	if err := clipA.MixInto(0, buf, tr); err != nil {
		t.Fatalf("MixInto A: %v", err)
	}
	if err := clipB.MixInto(0, buf, tr); err != nil {
		t.Fatalf("MixInto B: %v", err)
	}

	// At frame 0 (before overlap), signal should equal the single sine.
	if math.Abs(float64(buf[0])-float64(sample.PCM[0])) > 1e-4 {
		t.Fatalf("expected single sine at frame 0, got %v want %v", buf[0], sample.PCM[0])
	}

	// At the overlap (0.5-1s in, i.e. the first half-second of clip B),
	// signal should be roughly double clip A's contribution alone.
	overlapFrame := uint64(float64(tr.SampleRate) * 0.6)
	overlapIdx := overlapFrame * 2
	expected := 2 * sample.PCM[int(overlapFrame)*2]
	if math.Abs(float64(buf[overlapIdx])-float64(expected)) > 1e-3 {
		t.Fatalf("expected doubled sine at overlap, got %v want %v", buf[overlapIdx], expected)
	}
}

func TestMoveToShiftsStartAndEndPreservesOffset(t *testing.T) {
	tr := transport.New(44100, 120, 4)
	pos, _ := NewClipPosition(musicaltime.New(4, 0), musicaltime.New(8, 0), musicaltime.New(1, 0))
	sample := &Sample{PCM: make([]float32, 10_000_000)}
	c, err := NewAudioClip(sample, pos, tr)
	if err != nil {
		t.Fatalf("NewAudioClip: %v", err)
	}

	c.MoveTo(musicaltime.New(10, 0))
	got := c.Position()
	if got.Start != musicaltime.New(10, 0) || got.End != musicaltime.New(14, 0) {
		t.Fatalf("got %+v, want start=10 end=14", got)
	}
	if got.Offset != musicaltime.New(1, 0) {
		t.Fatalf("MoveTo must not change offset, got %v", got.Offset)
	}
}

func TestTrimStartToShiftsOffset(t *testing.T) {
	tr := transport.New(44100, 120, 4)
	pos, _ := NewClipPosition(musicaltime.New(4, 0), musicaltime.New(8, 0), musicaltime.New(1, 0))
	sample := &Sample{PCM: make([]float32, 10_000_000)}
	c, err := NewAudioClip(sample, pos, tr)
	if err != nil {
		t.Fatalf("NewAudioClip: %v", err)
	}

	c.TrimStartTo(musicaltime.New(5, 0))
	got := c.Position()
	if got.Start != musicaltime.New(5, 0) {
		t.Fatalf("got start %v, want beat 5", got.Start)
	}
	if got.Offset != musicaltime.New(2, 0) {
		t.Fatalf("got offset %v, want beat 2 (shifted by the same delta)", got.Offset)
	}
	if got.End != musicaltime.New(8, 0) {
		t.Fatalf("TrimStartTo must not move end, got %v", got.End)
	}
}

func TestEmitMIDISustainedNoteCrossesBlockBoundary(t *testing.T) {
	tr := transport.New(44100, 120, 4)
	note := MidiNote{Key: 60, Velocity: 1.0, Position: NotePosition{
		Start: musicaltime.Zero,
		End:   musicaltime.New(2, 0),
	}}
	pattern := NewMidiPattern([]MidiNote{note})
	pos, _ := NewClipPosition(musicaltime.Zero, musicaltime.New(4, 0), musicaltime.Zero)
	c := NewMidiClip(pattern, pos)

	sounding := make(map[uint8]bool)
	var events []event.Event

	blockLen := uint32(512)
	if err := c.EmitMIDI(0, blockLen, tr, sounding, &events); err != nil {
		t.Fatalf("EmitMIDI: %v", err)
	}
	if len(events) != 1 || events[0].Kind != event.KindNoteOn {
		t.Fatalf("expected one NoteOn in first block, got %+v", events)
	}
	if !sounding[60] {
		t.Fatalf("note 60 should be marked sounding after NoteOn")
	}
}
