// Package event defines the engine's event sum type: the note and
// parameter-change events that flow between clips, the mixer's plugin
// chain, and the plugin bridge. The audio thread dispatches on Kind
// directly instead of through an interface, keeping branch prediction and
// inlining tractable in the hot path.
package event

// Kind tags which variant an Event holds.
type Kind uint8

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindNoteChoke
	KindNoteEnd
	KindParamValue
)

// Event is a closed sum type over the five event kinds the engine core
// needs. Time is the sample offset within the current block. Unused
// fields for a given Kind are simply zero.
type Event struct {
	Kind Kind

	Time uint32 // sample offset within the current block

	Key      uint8   // 0..=127, for note events
	Velocity float32 // 0.0..=1.0, for NoteOn/NoteOff

	ParamID uint32  // for ParamValue
	Value   float64 // for ParamValue
	Cookie  uint64  // opaque plugin-supplied token, for ParamValue
}

// NoteOn builds a NoteOn event.
func NoteOn(t uint32, key uint8, velocity float32) Event {
	return Event{Kind: KindNoteOn, Time: t, Key: key, Velocity: velocity}
}

// NoteOff builds a NoteOff event.
func NoteOff(t uint32, key uint8, velocity float32) Event {
	return Event{Kind: KindNoteOff, Time: t, Key: key, Velocity: velocity}
}

// NoteChoke builds a NoteChoke event (immediate silence, no release tail).
func NoteChoke(t uint32, key uint8) Event {
	return Event{Kind: KindNoteChoke, Time: t, Key: key}
}

// NoteEnd builds a NoteEnd event (a plugin reporting a voice has finished
// on its own, e.g. a one-shot sample finishing).
func NoteEnd(t uint32, key uint8) Event {
	return Event{Kind: KindNoteEnd, Time: t, Key: key}
}

// ParamValue builds a ParamValue event.
func ParamValue(t uint32, paramID uint32, value float64, cookie uint64) Event {
	return Event{Kind: KindParamValue, Time: t, ParamID: paramID, Value: value, Cookie: cookie}
}

// WithTime returns a copy of e with its Time field replaced.
func (e Event) WithTime(t uint32) Event {
	e.Time = t
	return e
}
