package mixer

import (
	"math"
	"testing"

	"github.com/zurustar/son-et/pkg/event"
	"github.com/zurustar/son-et/pkg/nodeid"
	"github.com/zurustar/son-et/pkg/plugin"
)

// gainProcessor scales every sample by a fixed factor and reports a fixed
// delay, so tests can verify the chain's dry/wet blend and latency-ring
// wiring without a real plugin binary.
type gainProcessor struct {
	id    plugin.ID
	gain  float32
	delay int
}

func (g *gainProcessor) Process(audio []float32, events *[]event.Event, mix float32) error {
	for i := range audio {
		audio[i] *= g.gain
	}
	*events = (*events)[:0]
	return nil
}
func (g *gainProcessor) Flush(events *[]event.Event) error { *events = (*events)[:0]; return nil }
func (g *gainProcessor) Delay() int                        { return g.delay }
func (g *gainProcessor) Reset()                             {}
func (g *gainProcessor) ID() plugin.ID                      { return g.id }
func (g *gainProcessor) Save() ([]byte, error)              { return nil, nil }
func (g *gainProcessor) Load(blob []byte) error             { return nil }

func TestNodeChainBlendsDryAndWetByPluginMix(t *testing.T) {
	n := NewNode(nodeid.New())
	p := plugin.NewPlugin(&gainProcessor{id: 1, gain: 0})
	p.Mix = 0.5 // half dry, half silence -> half of the original signal
	n.Plugins = []*plugin.Plugin{p}

	audio := []float32{1, 1}
	var events []event.Event
	var updates []Update
	if err := n.Process(audio, &events, &updates); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !approxEqual(audio[0], 0.5) || !approxEqual(audio[1], 0.5) {
		t.Fatalf("expected half-mix of dry and silent wet to be 0.5, got %v", audio)
	}
}

const epsilon = 1e-4

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < epsilon
}

func TestBalanceZeroIsIdentityUpToUnitGain(t *testing.T) {
	audio := []float32{0.5, -0.25}
	applyPan(audio, Balance(0), 1, false)
	if !approxEqual(audio[0], 0.5) || !approxEqual(audio[1], -0.25) {
		t.Fatalf("Balance(0) at unity volume should be the identity, got %v", audio)
	}
}

func TestStereoIdentityPreservesChannels(t *testing.T) {
	audio := []float32{0.5, -0.25, 1, -1}
	applyPan(audio, Stereo(-1, 1), 1, false)
	want := []float32{0.5, -0.25, 1, -1}
	for i := range audio {
		if !approxEqual(audio[i], want[i]) {
			t.Fatalf("Stereo(-1,1) at unity volume should be the identity, got %v want %v", audio, want)
		}
	}
}

func TestInvertedPolarityNegatesOutput(t *testing.T) {
	plain := []float32{0.5, -0.25}
	inverted := []float32{0.5, -0.25}
	applyPan(plain, Balance(0), 1, false)
	applyPan(inverted, Balance(0), 1, true)
	for i := range plain {
		if !approxEqual(inverted[i], -plain[i]) {
			t.Fatalf("inverted polarity should negate every sample: plain=%v inverted=%v", plain, inverted)
		}
	}
}

func TestNodeDisabledZeroesAudioAndDrainsEvents(t *testing.T) {
	n := NewNode(nodeid.New())
	n.Flags = 0 // clear Enabled

	audio := []float32{1, 1, 1, 1}
	events := []event.Event{event.NoteOn(0, 60, 1)}
	var updates []Update

	if err := n.Process(audio, &events, &updates); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	for _, s := range audio {
		if s != 0 {
			t.Fatalf("disabled node must zero audio, got %v", audio)
		}
	}
	if len(events) != 0 {
		t.Fatalf("disabled node must drain events, got %v", events)
	}
}

func TestNodeBypassedStillAppliesPan(t *testing.T) {
	n := NewNode(nodeid.New())
	n.Flags = Enabled | Bypassed
	n.Pan = Balance(-1) // hard left

	audio := []float32{1, 1}
	var events []event.Event
	var updates []Update

	if err := n.Process(audio, &events, &updates); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if audio[1] != 0 {
		t.Fatalf("hard-left balance pan should silence the right channel even when bypassed, got %v", audio)
	}
	if audio[0] == 0 {
		t.Fatalf("hard-left balance pan should preserve the left channel, got %v", audio)
	}
}

func TestNodeEmitsPeakUpdate(t *testing.T) {
	n := NewNode(nodeid.New())
	audio := []float32{0.5, -0.75}
	var events []event.Event
	var updates []Update

	if err := n.Process(audio, &events, &updates); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(updates) != 1 || updates[0].Kind != UpdatePeak {
		t.Fatalf("expected exactly one peak update, got %v", updates)
	}
	if !approxEqual(updates[0].Peak[1], 0.75) {
		t.Fatalf("expected right-channel peak 0.75, got %v", updates[0].Peak)
	}
}
