package musicaltime

import (
	"testing"

	"github.com/zurustar/son-et/pkg/transport"
)

func TestNewNormalizesOverflowTicks(t *testing.T) {
	m := New(1, TicksPerBeat+10)
	if m.Beat() != 2 || m.Tick() != 10 {
		t.Fatalf("got beat=%d tick=%d, want beat=2 tick=10", m.Beat(), m.Tick())
	}
}

func TestOrderingIsIntegerOrdering(t *testing.T) {
	a := New(1, 0)
	b := New(1, 1)
	if !a.Less(b) {
		t.Fatalf("expected %v < %v", a, b)
	}
}

func TestSaturatingSubNeverUnderflows(t *testing.T) {
	a := New(0, 10)
	b := New(5, 0)
	if got := a.SaturatingSub(b); got != Zero {
		t.Fatalf("got %v, want Zero", got)
	}
}

func TestAbsDiffIsSymmetric(t *testing.T) {
	a := New(1, 0)
	b := New(3, 0)
	if a.AbsDiff(b) != b.AbsDiff(a) {
		t.Fatalf("AbsDiff should be symmetric")
	}
}

func TestFloorCeilRoundBracketM(t *testing.T) {
	modulus := MusicalTime(100)
	m := MusicalTime(250)
	if m.Floor(modulus) > m || m.Ceil(modulus) < m {
		t.Fatalf("floor/ceil must bracket m")
	}
	if diff := m.Ceil(modulus) - m.Floor(modulus); diff != 0 && diff != modulus {
		t.Fatalf("ceil-floor must be 0 or modulus, got %d", diff)
	}
}

func TestSamplesRoundTripWithinOneTick(t *testing.T) {
	tr := transport.New(44100, 120, 4)
	m := New(10, 12345)
	samples := m.ToSamples(tr)
	back := FromSamples(samples, tr)
	if m > back && m-back >= 1 {
		t.Fatalf("round trip error too large: m=%v back=%v", m, back)
	}
}

func TestToSamplesAlwaysEven(t *testing.T) {
	tr := transport.New(48000, 137, 3)
	for beat := uint64(0); beat < 20; beat++ {
		m := New(beat, 1)
		if s := m.ToSamples(tr); s%2 != 0 {
			t.Fatalf("ToSamples(%v) = %d, want even", m, s)
		}
	}
}

func TestSnapFloorCeilBracketAndStep(t *testing.T) {
	tr := transport.New(44100, 120, 4)
	for _, scale := range []float32{0, 8, 16, 20, 24} {
		step := SnapStep(scale, tr)
		m := MusicalTime(123456)
		lo := SnapFloor(m, scale, tr)
		hi := SnapCeil(m, scale, tr)
		if lo > m || hi < m {
			t.Fatalf("scale=%v: snap floor/ceil must bracket m", scale)
		}
		if diff := hi - lo; diff != 0 && diff != step {
			t.Fatalf("scale=%v: snap ceil-floor must be 0 or step(%v), got %v", scale, step, diff)
		}
	}
}
