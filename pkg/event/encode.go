package event

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// maxMIDICCParam is one past the highest param id expressible as a MIDI CC
// number; anything at or above this is only representable in the richer
// CLAP-style event form.
const maxMIDICCParam = 0x78

// ToMIDI encodes e for the given MIDI channel ("port" in the engine's
// terms), mirroring the byte layout the reference engine's MIDIBridge
// forwards to its synthesizer. ParamValue events at or above maxMIDICCParam
// have no MIDI representation and return an error instead of a message.
func (e Event) ToMIDI(channel uint8) (midi.Message, error) {
	switch e.Kind {
	case KindNoteOn:
		return midi.NoteOn(channel, e.Key, velocityToMIDI(e.Velocity)), nil
	case KindNoteOff:
		return midi.NoteOff(channel, e.Key), nil
	case KindNoteChoke:
		// A choke has no sustain/release tail: encode as a plain NoteOff
		// (release velocity 0), the same way the reference engine's
		// MIDIBridge has no separate message for it.
		return midi.NoteOff(channel, e.Key), nil
	case KindNoteEnd:
		return nil, fmt.Errorf("event: NoteEnd has no MIDI encoding")
	case KindParamValue:
		if e.ParamID >= maxMIDICCParam {
			return nil, fmt.Errorf("event: param id %d has no MIDI CC encoding", e.ParamID)
		}
		return midi.ControlChange(channel, uint8(e.ParamID), valueToMIDI(e.Value)), nil
	default:
		return nil, fmt.Errorf("event: unknown kind %d", e.Kind)
	}
}

func velocityToMIDI(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v * 127)
}

func valueToMIDI(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v * 127)
}

// CLAPEvent is a port-qualified, richer wire form for events that MIDI
// cannot express (high param ids, fractional velocities, note-end/choke
// as first-class messages). It mirrors the field layout CLAP-hosting code
// in the ecosystem decodes MIDI into before handing it to a plugin.
type CLAPEvent struct {
	Port    uint16
	Time    uint32
	Kind    Kind
	Key     uint8
	ParamID uint32
	Value   float64
	Cookie  uint64
}

// ToCLAP encodes e for the given port in the richer CLAP-style event form.
func (e Event) ToCLAP(port uint16) CLAPEvent {
	value := float64(e.Velocity)
	if e.Kind == KindParamValue {
		value = e.Value
	}
	return CLAPEvent{Port: port, Time: e.Time, Kind: e.Kind, Key: e.Key, ParamID: e.ParamID, Value: value, Cookie: e.Cookie}
}

// TryFromUnknown decodes an incoming event of either wire form back into
// the engine's Event type.
func TryFromUnknown(v any) (Event, error) {
	switch enc := v.(type) {
	case midi.Message:
		return fromMIDI(enc)
	case CLAPEvent:
		return fromCLAP(enc), nil
	default:
		return Event{}, fmt.Errorf("event: unsupported encoding %T", v)
	}
}

func fromMIDI(msg midi.Message) (Event, error) {
	var channel, key, velocity uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		return NoteOn(0, key, float32(velocity)/127), nil
	case msg.GetNoteOff(&channel, &key, &velocity):
		return NoteOff(0, key, float32(velocity)/127), nil
	}
	var controller, value uint8
	if msg.GetControlChange(&channel, &controller, &value) {
		return ParamValue(0, uint32(controller), float64(value)/127, 0), nil
	}
	return Event{}, fmt.Errorf("event: unrecognized MIDI message")
}

func fromCLAP(c CLAPEvent) Event {
	e := Event{Kind: c.Kind, Time: c.Time, Key: c.Key}
	switch c.Kind {
	case KindParamValue:
		e.Value = c.Value
		e.ParamID = c.ParamID
		e.Cookie = c.Cookie
	default:
		e.Velocity = float32(c.Value)
	}
	return e
}
