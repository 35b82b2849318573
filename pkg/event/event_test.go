package event

import "testing"

func TestWithTimePreservesOtherFields(t *testing.T) {
	e := NoteOn(10, 60, 0.8)
	e2 := e.WithTime(20)
	if e2.Time != 20 || e2.Key != e.Key || e2.Velocity != e.Velocity || e2.Kind != e.Kind {
		t.Fatalf("WithTime changed unrelated fields: %+v -> %+v", e, e2)
	}
}

func TestToMIDIRoundTripsNoteOn(t *testing.T) {
	e := NoteOn(0, 64, 1.0)
	msg, err := e.ToMIDI(0)
	if err != nil {
		t.Fatalf("ToMIDI: %v", err)
	}
	back, err := TryFromUnknown(msg)
	if err != nil {
		t.Fatalf("TryFromUnknown: %v", err)
	}
	if back.Kind != KindNoteOn || back.Key != 64 {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestToMIDIRejectsHighParamIDs(t *testing.T) {
	e := ParamValue(0, maxMIDICCParam, 0.5, 0)
	if _, err := e.ToMIDI(0); err == nil {
		t.Fatalf("expected error encoding param id %d as MIDI CC", maxMIDICCParam)
	}
}

func TestToMIDIAcceptsLowParamIDs(t *testing.T) {
	e := ParamValue(0, maxMIDICCParam-1, 0.5, 0)
	if _, err := e.ToMIDI(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCLAPRoundTrip(t *testing.T) {
	e := ParamValue(5, 200, 0.25, 7)
	clap := e.ToCLAP(1)
	back, err := TryFromUnknown(clap)
	if err != nil {
		t.Fatalf("TryFromUnknown: %v", err)
	}
	if back.Kind != KindParamValue || back.ParamID != 200 || back.Value != 0.25 || back.Cookie != 7 {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
