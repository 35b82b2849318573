// Package engine is the audio context: it owns the processing graph, the
// transport, and the control<->audio message channels, and exposes the
// device-callback entry point an OS audio backend drives. Every method
// reachable from DeviceCallback runs on the audio thread and must not
// allocate past warm-up or block; every other exported method is the
// control thread's API into the engine.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/zurustar/son-et/pkg/clip"
	"github.com/zurustar/son-et/pkg/event"
	"github.com/zurustar/son-et/pkg/graph"
	"github.com/zurustar/son-et/pkg/mixer"
	"github.com/zurustar/son-et/pkg/musicaltime"
	"github.com/zurustar/son-et/pkg/nodeid"
	"github.com/zurustar/son-et/pkg/plugin"
	"github.com/zurustar/son-et/pkg/transport"
)

// PlaybackState is the engine's coarse transport state.
type PlaybackState uint8

const (
	Stopped PlaybackState = iota
	Playing
	Recording
)

// controlQueueDepth bounds the control->audio channel. The audio thread
// drains it with a non-blocking loop each block; the control thread send
// is likewise non-blocking, so a full queue surfaces as a synchronous
// error rather than stalling either thread.
const controlQueueDepth = 256

// updateQueueDepth bounds the audio->control channel of per-block update
// batches.
const updateQueueDepth = 64

// nodeAdapter wraps either a mixer.Track (a leaf, owning clips) or a bare
// mixer.Node (a bus or the master, mixing only what the graph feeds it)
// so both satisfy graph.Node uniformly.
type nodeAdapter struct {
	track *mixer.Track // non-nil for a track
	node  *mixer.Node  // the node itself: track.Node when track != nil

	ctx    *Context
	events []event.Event
}

func (a *nodeAdapter) Process(blockStartSample uint64, buf []float32) error {
	a.events = a.events[:0]
	if a.track != nil {
		frames := uint32(len(buf) / 2)
		return a.track.Process(a.ctx.transport, blockStartSample, frames, buf, &a.events, &a.ctx.pendingUpdates)
	}
	return a.node.Process(buf, &a.events, &a.ctx.pendingUpdates)
}

// Context is the audio context: C6 in the engine's component breakdown.
type Context struct {
	transport *transport.Transport
	graph     *graph.Graph

	control chan Message
	updates chan []mixer.Update

	adapters map[nodeid.ID]*nodeAdapter

	state              PlaybackState
	wasPlaying         bool
	blockStart         uint64
	expectedBlockStart uint64
	exporting          bool
	pendingGraph       *graph.Graph

	pendingUpdates []mixer.Update
	recorder       *Recorder

	log *slog.Logger
}

// NewContext builds an audio context around a fresh graph whose sole
// initial node is masterID, an empty bus.
func NewContext(tr *transport.Transport, masterID nodeid.ID, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	c := &Context{
		transport: tr,
		control:   make(chan Message, controlQueueDepth),
		updates:   make(chan []mixer.Update, updateQueueDepth),
		adapters:  make(map[nodeid.ID]*nodeAdapter),
		log:       log,
	}
	masterNode := mixer.NewNode(masterID)
	masterAdapter := &nodeAdapter{node: masterNode, ctx: c}
	c.adapters[masterID] = masterAdapter
	c.graph = graph.New(masterID, masterAdapter)
	return c
}

// Updates returns the channel of per-block update batches the control
// thread should drain.
func (c *Context) Updates() <-chan []mixer.Update { return c.updates }

// Transport exposes the shared transport record.
func (c *Context) Transport() *transport.Transport { return c.transport }

// State reports the engine's current playback state.
func (c *Context) State() PlaybackState {
	if c.state == Recording {
		return Recording
	}
	if c.transport.Playing() {
		return Playing
	}
	return Stopped
}

// send enqueues msg on the control channel, failing synchronously rather
// than blocking if the queue is full.
func (c *Context) send(msg Message) error {
	select {
	case c.control <- msg:
		return nil
	default:
		return fmt.Errorf("engine: control queue full, dropping message kind %d", msg.Kind)
	}
}

// InsertTrack asks the audio thread to add a new track node.
func (c *Context) InsertTrack(id nodeid.ID) error {
	return c.send(Message{Kind: MsgInsert, NodeID: id, Node: newTrackAdapter(id, c)})
}

// InsertBus asks the audio thread to add a new plugin-chain-only bus node.
func (c *Context) InsertBus(id nodeid.ID) error {
	return c.send(Message{Kind: MsgInsert, NodeID: id, Node: newBusAdapter(id, c)})
}

func newTrackAdapter(id nodeid.ID, c *Context) *nodeAdapter {
	t := mixer.NewTrack(id)
	return &nodeAdapter{track: t, node: t.Node, ctx: c}
}

func newBusAdapter(id nodeid.ID, c *Context) *nodeAdapter {
	return &nodeAdapter{node: mixer.NewNode(id), ctx: c}
}

// Remove asks the audio thread to remove a node (refused for the master).
func (c *Context) Remove(id nodeid.ID) error {
	return c.send(Message{Kind: MsgRemove, NodeID: id})
}

// Connect asks the audio thread to add an edge, blocking the calling
// (control) goroutine until it replies with accept/reject.
func (c *Context) Connect(from, to nodeid.ID) error {
	reply := make(chan error, 1)
	if err := c.send(Message{Kind: MsgConnect, From: from, To: to, Reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// Disconnect asks the audio thread to remove an edge.
func (c *Context) Disconnect(from, to nodeid.ID) error {
	return c.send(Message{Kind: MsgDisconnect, From: from, To: to})
}

// Apply asks the audio thread to perform a NodeAction against id.
func (c *Context) Apply(id nodeid.ID, action NodeAction) error {
	return c.send(Message{Kind: MsgNodeAction, NodeID: id, Action: action})
}

// Stop transitions to Stopped: zeroes the playhead and resets every
// plugin, in addition to the AllOff the device callback already emits on
// any playing-to-stopped edge.
func (c *Context) Stop() error {
	c.transport.SetPlaying(false)
	return c.send(Message{Kind: MsgReset})
}

// Play transitions Stopped -> Playing, retaining the current playhead.
func (c *Context) Play() {
	c.transport.SetPlaying(true)
}

// TogglePlay flips between Stopped and Playing.
func (c *Context) TogglePlay() {
	c.transport.SetPlaying(!c.transport.Playing())
}

// applyMessage performs one control message's effect on the audio
// thread's owned state.
func (c *Context) applyMessage(msg Message) {
	switch msg.Kind {
	case MsgInsert:
		c.adapters[msg.NodeID] = msg.Node.(*nodeAdapter)
		c.graph.Insert(msg.NodeID, msg.Node)

	case MsgRemove:
		if err := c.graph.Remove(msg.NodeID); err != nil {
			c.log.Warn("engine: remove refused", "node", msg.NodeID, "err", err)
			return
		}
		delete(c.adapters, msg.NodeID)

	case MsgConnect:
		err := c.graph.Connect(msg.From, msg.To)
		if msg.Reply != nil {
			msg.Reply <- err
		}

	case MsgDisconnect:
		c.graph.Disconnect(msg.From, msg.To)

	case MsgNodeAction:
		a, ok := c.adapters[msg.NodeID]
		if !ok {
			c.log.Warn("engine: node action on unknown node", "node", msg.NodeID)
			return
		}
		applyNodeAction(a, msg.Action)

	case MsgRequestAudioGraph:
		c.exporting = true
		g := c.graph
		c.graph = nil
		if msg.GraphReply != nil {
			msg.GraphReply <- g
		}

	case MsgAudioGraph:
		c.graph = msg.ReturnedGraph
		c.exporting = false

	case MsgReset:
		c.transport.SetSample(0)
		c.resetAllPlugins()
	}
}

func applyNodeAction(a *nodeAdapter, act NodeAction) {
	n := a.node
	switch act.Kind {
	case ActionSetVolume:
		n.Volume = act.Volume
	case ActionSetPan:
		n.Pan = act.Pan
	case ActionSetFlags:
		n.Flags = act.Flags
	case ActionInsertPlugin:
		n.Plugins = append(n.Plugins, act.Plugin)
	case ActionRemovePlugin:
		if act.PluginIndex >= 0 && act.PluginIndex < len(n.Plugins) {
			n.Plugins = append(n.Plugins[:act.PluginIndex], n.Plugins[act.PluginIndex+1:]...)
		}
	case ActionReorderPlugin:
		if act.PluginIndex >= 0 && act.PluginIndex < len(n.Plugins) &&
			act.ToIndex >= 0 && act.ToIndex < len(n.Plugins) && act.PluginIndex != act.ToIndex {
			p := n.Plugins[act.PluginIndex]
			n.Plugins = append(n.Plugins[:act.PluginIndex], n.Plugins[act.PluginIndex+1:]...)
			n.Plugins = append(n.Plugins[:act.ToIndex], append([]*plugin.Plugin{p}, n.Plugins[act.ToIndex:]...)...)
		}
	case ActionSetPluginMix:
		if act.PluginIndex >= 0 && act.PluginIndex < len(n.Plugins) {
			n.Plugins[act.PluginIndex].Mix = act.Mix
		}
	case ActionSetPluginEnabled:
		if act.PluginIndex >= 0 && act.PluginIndex < len(n.Plugins) {
			n.Plugins[act.PluginIndex].Enabled = act.Enabled
		}
	case ActionAppendClip:
		if a.track != nil && act.Clip != nil {
			a.track.Clips = append(a.track.Clips, act.Clip)
		}
	}
}

func (c *Context) resetAllPlugins() {
	for _, a := range c.adapters {
		for _, p := range a.node.Plugins {
			p.Processor.Reset()
		}
	}
}

// flushAllOff synthesizes NoteOff events for every track's currently
// sounding notes and flushes them through that track's plugin chain,
// without rendering audio. Called both on a playing-to-stopped edge
// (covering TogglePlay and a device underrun uniformly) and on a
// discontinuous playhead jump observed mid-playback (seek, loop wrap),
// so held notes from the position being left never sustain forever.
func (c *Context) flushAllOff() {
	for _, a := range c.adapters {
		if a.track == nil {
			continue
		}
		var offs []event.Event
		a.track.HandlePlayheadJump(&offs)
		if len(offs) == 0 {
			continue
		}
		for _, p := range a.node.Plugins {
			cpy := append([]event.Event(nil), offs...)
			if err := p.Processor.Flush(&cpy); err != nil {
				c.log.Warn("engine: plugin flush failed during all-off", "err", err)
			}
		}
	}
}

// DeviceCallback is the OS audio backend's entry point: buf is
// interleaved stereo output of len(buf)/2 frames. It drains pending
// control messages, advances the transport if playing, fills buf from
// the graph, and flushes coalesced updates.
func (c *Context) DeviceCallback(buf []float32) error {
	c.drainControl()

	if c.exporting || c.graph == nil {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}

	playing := c.transport.Playing()
	if playing {
		newBlockStart := c.transport.Sample()
		if c.wasPlaying && newBlockStart != c.expectedBlockStart {
			// The playhead jumped discontinuously since the last block
			// (seek, loop wrap): flush NoteOffs for whatever was
			// sounding at the old position before rendering the new one.
			c.flushAllOff()
		}
		c.blockStart = newBlockStart
	}

	c.pendingUpdates = c.pendingUpdates[:0]
	if err := c.graph.FillBuf(c.blockStart, buf); err != nil {
		return fmt.Errorf("engine: fill_buf: %w", err)
	}

	if playing {
		c.transport.AdvanceSample(uint64(len(buf)))
		c.expectedBlockStart = c.blockStart + uint64(len(buf))
	}
	if c.wasPlaying && !playing {
		c.flushAllOff()
	}
	c.wasPlaying = playing

	c.flushUpdates()
	return nil
}

// drainControl applies every pending control message without blocking,
// bounded so a pathological backlog cannot stall the callback.
func (c *Context) drainControl() {
	const maxPerBlock = 64
	for i := 0; i < maxPerBlock; i++ {
		select {
		case msg := <-c.control:
			c.applyMessage(msg)
		default:
			return
		}
	}
}

// flushUpdates coalesces pendingUpdates to one UpdateParam per
// (plugin,param) pair, keeps every UpdatePeak, and sends the batch
// without blocking.
func (c *Context) flushUpdates() {
	if len(c.pendingUpdates) == 0 {
		return
	}
	coalesced := coalesceUpdates(c.pendingUpdates)
	select {
	case c.updates <- coalesced:
	default:
		c.log.Warn("engine: update queue full, dropping a block's updates")
	}
}

func coalesceUpdates(in []mixer.Update) []mixer.Update {
	out := make([]mixer.Update, 0, len(in))
	lastParam := make(map[[2]uint64]int) // (pluginID, paramID) -> index in out
	for _, u := range in {
		if u.Kind != mixer.UpdateParam {
			out = append(out, u)
			continue
		}
		key := [2]uint64{uint64(u.PluginID), uint64(u.ParamID)}
		if idx, ok := lastParam[key]; ok {
			out[idx] = u
			continue
		}
		lastParam[key] = len(out)
		out = append(out, u)
	}
	return out
}

// RequestAudioGraph pauses scheduling and hands the graph to the caller
// for export, per the cooperative export handoff.
func (c *Context) RequestAudioGraph() (*graph.Graph, error) {
	reply := make(chan *graph.Graph, 1)
	if err := c.send(Message{Kind: MsgRequestAudioGraph, GraphReply: reply}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// ReturnAudioGraph hands an exported graph back to the audio thread,
// resuming scheduling.
func (c *Context) ReturnAudioGraph(g *graph.Graph) error {
	return c.send(Message{Kind: MsgAudioGraph, ReturnedGraph: g})
}

// BeginRecording transitions Stopped -> Recording: allocates a resampler
// from deviceSR to the engine's rate and starts staging input at the
// transport's current playhead.
func (c *Context) BeginRecording(deviceSR int) {
	c.state = Recording
	c.recorder = NewRecorder(deviceSR, int(c.transport.SampleRate), c.transport.Sample())
}

// PushRecordingInput feeds input frames to the active recorder. A no-op
// if no recording is in progress.
func (c *Context) PushRecordingInput(frames []float32) {
	if c.recorder != nil {
		c.recorder.PushInput(frames)
	}
}

// FinishRecording transitions Recording -> Stopped: finalizes the
// resampler, persists the result as a new Sample, and places it as a
// clip on track at the position recording began.
func (c *Context) FinishRecording(track nodeid.ID, name string) (*clip.Sample, error) {
	if c.recorder == nil {
		return nil, fmt.Errorf("engine: no recording in progress")
	}
	sample, err := c.recorder.Finish(name)
	if err != nil {
		c.state = Stopped
		c.recorder = nil
		return nil, err
	}
	start := c.recorder.StartSample()
	c.recorder = nil
	c.state = Stopped
	if err := c.PlaceRecordedClip(track, sample, start); err != nil {
		return sample, err
	}
	return sample, nil
}

// PlaceRecordedClip asks the audio thread to insert a completed
// recording as an audio clip on track at startSample, per the
// Stopped<-Recording transition. The clip is constructed here, on the
// control thread, but appended to the track's clip list only via a
// NodeAction, since that list is audio-thread-owned state.
func (c *Context) PlaceRecordedClip(track nodeid.ID, sample *clip.Sample, startSample uint64) error {
	start := musicaltime.FromSamples(startSample, c.transport)
	end := musicaltime.FromSamples(startSample+uint64(sample.Frames())*2, c.transport)
	pos, err := clip.NewClipPosition(start, end, 0)
	if err != nil {
		return err
	}
	placed, err := clip.NewAudioClip(sample, pos, c.transport)
	if err != nil {
		return err
	}
	return c.Apply(track, NodeAction{Kind: ActionAppendClip, Clip: placed})
}
