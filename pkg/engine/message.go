package engine

import (
	"github.com/zurustar/son-et/pkg/clip"
	"github.com/zurustar/son-et/pkg/graph"
	"github.com/zurustar/son-et/pkg/mixer"
	"github.com/zurustar/son-et/pkg/nodeid"
	"github.com/zurustar/son-et/pkg/plugin"
)

// MessageKind tags which control->audio operation a Message carries.
type MessageKind uint8

const (
	MsgInsert MessageKind = iota
	MsgRemove
	MsgConnect
	MsgDisconnect
	MsgNodeAction
	MsgRequestAudioGraph
	MsgAudioGraph
	MsgReset
)

// Message is the engine's control->audio sum type, dispatched on Kind the
// same way Event is dispatched in the plugin bridge: one struct, unused
// fields zero for a given Kind, no interface indirection on the audio
// thread's hot path.
type Message struct {
	Kind MessageKind

	NodeID nodeid.ID  // Insert, Remove, NodeAction
	Node   graph.Node // Insert

	From, To nodeid.ID      // Connect, Disconnect
	Reply    chan<- error   // Connect: synchronous accept/reject

	Action NodeAction // NodeAction

	GraphReply    chan<- *graph.Graph // RequestAudioGraph: oneshot handoff
	ReturnedGraph *graph.Graph        // AudioGraph: control hands the graph back after export
}

// NodeActionKind tags which field of a NodeAction applies.
type NodeActionKind uint8

const (
	ActionSetVolume NodeActionKind = iota
	ActionSetPan
	ActionSetFlags
	ActionInsertPlugin
	ActionRemovePlugin
	ActionReorderPlugin
	ActionSetPluginMix
	ActionSetPluginEnabled
	ActionAppendClip
)

// NodeAction is a control-thread-issued mutation of one mixer node's
// chain or fader, applied on the audio thread between blocks.
type NodeAction struct {
	Kind NodeActionKind

	Volume float32
	Pan    mixer.PanMode
	Flags  mixer.Flags

	Plugin      *plugin.Plugin
	PluginIndex int // ActionRemovePlugin/SetPluginMix/SetPluginEnabled; ActionReorderPlugin's source index
	ToIndex     int // ActionReorderPlugin's destination index
	Mix         float32
	Enabled     bool

	Clip *clip.Clip
}
