// Package plugin defines the real-time contract between the engine's
// audio thread and a loaded plugin instance, plus the latency-compensation
// ring buffer and wet/dry mix the mixer node applies around each plugin
// in its chain.
package plugin

import "github.com/zurustar/son-et/pkg/event"

// ID is a stable identifier used to route parameter updates to a plugin
// instance, independent of its position in any node's chain.
type ID uint64

// Processor is the set of operations the engine performs on a loaded
// plugin instance, entirely on the audio thread. Implementations must be
// real-time safe: no allocation, no blocking, no unbounded locks.
type Processor interface {
	// Process consumes input events whose Time lies in [0, len(audio)/2),
	// renders into audio in place, and appends any output events (param
	// changes, note-end, note-choke) to events.
	Process(audio []float32, events *[]event.Event, mix float32) error

	// Flush consumes events without producing audio. Used while the
	// plugin is disabled or its node is bypassed.
	Flush(events *[]event.Event) error

	// Delay returns the plugin's current reported latency in samples.
	Delay() int

	// Reset clears internal state. Called when the transport jumps or
	// stops.
	Reset()

	// ID returns the plugin's stable identifier.
	ID() ID

	// Save returns an opaque state blob. Control-thread only.
	Save() ([]byte, error)

	// Load restores state from a blob previously returned by Save.
	// Control-thread only.
	Load(blob []byte) error
}

// Plugin is the engine's view of one entry in a mixer node's chain: a
// processor plus the per-plugin wet/dry mix and enable flag.
type Plugin struct {
	Processor Processor
	Mix       float32 // 0..1
	Enabled   bool
}

// NewPlugin wraps proc at unity wet mix, enabled.
func NewPlugin(proc Processor) *Plugin {
	return &Plugin{Processor: proc, Mix: 1, Enabled: true}
}
