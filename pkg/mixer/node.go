// Package mixer implements the per-node signal chain every track and bus
// runs on the audio thread: a fixed-order plugin chain, a volume/pan
// stage, and peak metering, plus the Track type that reads clips into a
// node's input buffer.
package mixer

import (
	"github.com/zurustar/son-et/pkg/clip"
	"github.com/zurustar/son-et/pkg/event"
	"github.com/zurustar/son-et/pkg/nodeid"
	"github.com/zurustar/son-et/pkg/plugin"
	"github.com/zurustar/son-et/pkg/transport"
)

// Flags are a bitset of per-node toggles.
type Flags uint8

const (
	// Enabled gates the whole node: when clear, Process zeroes audio and
	// drops events without touching the plugin chain.
	Enabled Flags = 1 << iota
	// Bypassed skips the plugin chain (each plugin still gets Flush, so
	// its internal clock keeps moving) but still applies volume/pan.
	Bypassed
	// Inverted negates the node's pan gain coefficients.
	Inverted
)

// UpdateKind tags an Update's payload.
type UpdateKind uint8

const (
	// UpdatePeak reports a post-fader peak level for metering.
	UpdatePeak UpdateKind = iota
	// UpdateParam reports a plugin parameter value the plugin itself
	// changed (e.g. an internal LFO, a MIDI-learned knob).
	UpdateParam
)

// Update is one control-thread-bound notification produced while
// processing a node, coalesced per block.
type Update struct {
	Kind     UpdateKind
	NodeID   nodeid.ID
	PluginID plugin.ID
	Peak     [2]float32
	ParamID  uint32
	Value    float64
}

// Node is one mixer chain: an ordered plugin list, a volume/pan stage,
// and the flags that gate them.
type Node struct {
	ID      nodeid.ID
	Plugins []*plugin.Plugin
	Volume  float32
	Pan     PanMode
	Flags   Flags

	rings map[plugin.ID]*plugin.LatencyRing
	dry   []float32 // scratch, reused across blocks
}

// NewNode builds a node at unity volume, centered balance pan, enabled.
func NewNode(id nodeid.ID) *Node {
	return &Node{
		ID:     id,
		Volume: 1,
		Pan:    Balance(0),
		Flags:  Enabled,
		rings:  make(map[plugin.ID]*plugin.LatencyRing),
	}
}

func (n *Node) has(f Flags) bool { return n.Flags&f != 0 }

// Delay returns the node's total reported latency: the sum of every
// active plugin's Delay(). A disabled plugin, or any plugin of a bypassed
// node, contributes nothing since its signal path is not delaying wet
// audio this block.
func (n *Node) Delay() int {
	if n.has(Bypassed) {
		return 0
	}
	total := 0
	for _, p := range n.Plugins {
		if p.Enabled {
			total += p.Processor.Delay()
		}
	}
	return total
}

// Expensive reports whether this node's chain is worth skipping when its
// output would be discarded unheard (e.g. a muted, unsent bus): true if
// any plugin is enabled.
func (n *Node) Expensive() bool {
	for _, p := range n.Plugins {
		if p.Enabled {
			return true
		}
	}
	return false
}

func (n *Node) ring(id plugin.ID, latency int) *plugin.LatencyRing {
	r, ok := n.rings[id]
	if !ok {
		r = plugin.NewLatencyRing(latency)
		n.rings[id] = r
	}
	return r
}

// Process runs audio (interleaved stereo) and events through the node's
// plugin chain in order, then applies volume/pan, appending any
// control-thread updates (peak, plugin-reported param changes) to
// *updates. events is reused scratch: on return it is always empty (a
// node's chain fully drains events it is given).
func (n *Node) Process(audio []float32, events *[]event.Event, updates *[]Update) error {
	if !n.has(Enabled) {
		for i := range audio {
			audio[i] = 0
		}
		*events = (*events)[:0]
		return nil
	}

	if !n.has(Bypassed) {
		if cap(n.dry) < len(audio) {
			n.dry = make([]float32, len(audio))
		}
		dry := n.dry[:len(audio)]

		for _, p := range n.Plugins {
			if !p.Enabled {
				if err := p.Processor.Flush(events); err != nil {
					return err
				}
				continue
			}
			ring := n.ring(p.Processor.ID(), p.Processor.Delay())
			copy(dry, audio)
			ring.Delay(dry, dry)

			if err := p.Processor.Process(audio, events, 1); err != nil {
				return err
			}
			mix := p.Mix
			for i := range audio {
				audio[i] = dry[i]*(1-mix) + audio[i]*mix
			}
			extractParamUpdates(n.ID, p.Processor.ID(), events, updates)
		}
	} else {
		for _, p := range n.Plugins {
			if err := p.Processor.Flush(events); err != nil {
				return err
			}
		}
	}
	*events = (*events)[:0]

	applyPan(audio, n.Pan, n.Volume, n.has(Inverted))

	*updates = append(*updates, Update{Kind: UpdatePeak, NodeID: n.ID, Peak: peak(audio)})
	return nil
}

func extractParamUpdates(nodeID nodeid.ID, pluginID plugin.ID, events *[]event.Event, updates *[]Update) {
	kept := (*events)[:0]
	for _, e := range *events {
		if e.Kind == event.KindParamValue {
			*updates = append(*updates, Update{
				Kind: UpdateParam, NodeID: nodeID, PluginID: pluginID,
				ParamID: e.ParamID, Value: e.Value,
			})
			continue
		}
		kept = append(kept, e)
	}
	*events = kept
}

func peak(audio []float32) [2]float32 {
	var l, r float32
	for i := 0; i+1 < len(audio); i += 2 {
		if v := abs32(audio[i]); v > l {
			l = v
		}
		if v := abs32(audio[i+1]); v > r {
			r = v
		}
	}
	return [2]float32{l, r}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// Track is an ordered collection of non-overlapping-by-construction (but
// not enforced) clips feeding a mixer Node. Each block it zeroes its
// input buffer, mixes in every clip intersecting the block, emits MIDI
// events from pattern clips, then runs the result through its Node.
type Track struct {
	Node  *Node
	Clips []*clip.Clip

	sounding map[uint8]bool // key -> currently-on, for MIDI clips on this track
}

// NewTrack builds an empty track rooted at a fresh node.
func NewTrack(id nodeid.ID) *Track {
	return &Track{Node: NewNode(id), sounding: make(map[uint8]bool)}
}

// Process renders the interleaved-sample range [blockStartSample,
// blockStartSample+frames*2) into audio (len(audio) == frames*2), draining MIDI events from
// intersecting pattern clips into events before running the node's
// chain.
func (t *Track) Process(tr *transport.Transport, blockStartSample uint64, frames uint32, audio []float32, events *[]event.Event, updates *[]Update) error {
	for i := range audio {
		audio[i] = 0
	}
	*events = (*events)[:0]

	for _, c := range t.Clips {
		switch c.Kind {
		case clip.KindAudio:
			if err := c.MixInto(blockStartSample, audio, tr); err != nil {
				return err
			}
		case clip.KindMidi:
			if err := c.EmitMIDI(blockStartSample, frames, tr, t.sounding, events); err != nil {
				return err
			}
		}
	}

	return t.Node.Process(audio, events, updates)
}

// HandlePlayheadJump synthesizes NoteOff events for every key this track
// believes is sounding, to be appended before the next block's Process
// call. Called by the engine when the transport's sample position jumps
// discontinuously (seek, loop wrap), so held notes do not sustain forever.
func (t *Track) HandlePlayheadJump(out *[]event.Event) {
	for key := range t.sounding {
		*out = append(*out, event.NoteOff(0, key, 0))
		delete(t.sounding, key)
	}
}
