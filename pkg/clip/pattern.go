package clip

import (
	"fmt"

	"github.com/zurustar/son-et/pkg/musicaltime"
)

// NotePosition is a half-open span on the arrangement timeline. start must
// be strictly before end.
type NotePosition struct {
	Start musicaltime.MusicalTime
	End   musicaltime.MusicalTime
}

// NewNotePosition validates start < end before returning a NotePosition.
func NewNotePosition(start, end musicaltime.MusicalTime) (NotePosition, error) {
	if !start.Less(end) {
		return NotePosition{}, fmt.Errorf("clip: note position start %v must be before end %v", start, end)
	}
	return NotePosition{Start: start, End: end}, nil
}

// Len returns End - Start.
func (p NotePosition) Len() musicaltime.MusicalTime {
	return p.End.SaturatingSub(p.Start)
}

// MidiNote is one note event in a MidiPattern.
type MidiNote struct {
	Key      uint8 // 0..=127
	Velocity float32
	Position NotePosition
}

// MidiPattern is an ordered, immutable set of MidiNote values. Edits
// replace the pattern wholesale via WithNote/WithoutNote so the
// audio thread, which may be holding a reference to an older MidiPattern
// mid-block, never observes a torn edit.
type MidiPattern struct {
	Notes []MidiNote
}

// NewMidiPattern builds a MidiPattern from notes, which it takes ownership
// of (callers should not mutate the slice afterward).
func NewMidiPattern(notes []MidiNote) *MidiPattern {
	return &MidiPattern{Notes: notes}
}

// WithNote returns a new MidiPattern with note appended, leaving the
// receiver untouched.
func (p *MidiPattern) WithNote(note MidiNote) *MidiPattern {
	notes := make([]MidiNote, len(p.Notes), len(p.Notes)+1)
	copy(notes, p.Notes)
	notes = append(notes, note)
	return &MidiPattern{Notes: notes}
}

// WithoutNote returns a new MidiPattern with the note at index i removed,
// leaving the receiver untouched.
func (p *MidiPattern) WithoutNote(i int) *MidiPattern {
	notes := make([]MidiNote, 0, len(p.Notes)-1)
	notes = append(notes, p.Notes[:i]...)
	notes = append(notes, p.Notes[i+1:]...)
	return &MidiPattern{Notes: notes}
}

// NotesIntersecting returns the notes whose Position overlaps [start, end).
func (p *MidiPattern) NotesIntersecting(start, end musicaltime.MusicalTime) []MidiNote {
	var out []MidiNote
	for _, n := range p.Notes {
		if n.Position.Start < end && n.Position.End > start {
			out = append(out, n)
		}
	}
	return out
}
