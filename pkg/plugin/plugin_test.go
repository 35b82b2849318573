package plugin

import (
	"testing"

	"github.com/zurustar/son-et/pkg/event"
)

// passthroughProcessor is a minimal Processor used to exercise the mix and
// latency machinery without a real plugin binary.
type passthroughProcessor struct {
	id    ID
	delay int
}

func (p *passthroughProcessor) Process(audio []float32, events *[]event.Event, mix float32) error {
	*events = (*events)[:0]
	return nil
}
func (p *passthroughProcessor) Flush(events *[]event.Event) error { *events = (*events)[:0]; return nil }
func (p *passthroughProcessor) Delay() int                        { return p.delay }
func (p *passthroughProcessor) Reset()                            {}
func (p *passthroughProcessor) ID() ID                            { return p.id }
func (p *passthroughProcessor) Save() ([]byte, error)             { return nil, nil }
func (p *passthroughProcessor) Load(blob []byte) error            { return nil }

func TestNewPluginDefaultsUnityMixEnabled(t *testing.T) {
	p := NewPlugin(&passthroughProcessor{id: 1})
	if p.Mix != 1 || !p.Enabled {
		t.Fatalf("got mix=%v enabled=%v, want mix=1 enabled=true", p.Mix, p.Enabled)
	}
}

func TestLatencyRingDelaysByExactSampleCount(t *testing.T) {
	const latencyFrames = 4
	r := NewLatencyRing(latencyFrames)

	impulse := make([]float32, 64)
	impulse[0], impulse[1] = 1, 1 // an impulse in the first stereo frame

	out := make([]float32, 64)
	r.Delay(impulse, out)

	for i := 0; i < latencyFrames*2; i++ {
		if out[i] != 0 {
			t.Fatalf("expected silence before the delay, got out[%d]=%v", i, out[i])
		}
	}
	if out[latencyFrames*2] != 1 || out[latencyFrames*2+1] != 1 {
		t.Fatalf("expected the impulse at the delayed position, got %v %v",
			out[latencyFrames*2], out[latencyFrames*2+1])
	}
}

func TestLatencyRingZeroLatencyIsIdentity(t *testing.T) {
	r := NewLatencyRing(0)
	in := []float32{1, 2, 3, 4}
	out := make([]float32, 4)
	r.Delay(in, out)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("zero-latency ring must be identity, got %v want %v", out, in)
		}
	}
}
