package plugin

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/son-et/pkg/event"
)

const (
	midiCommandNoteOff      = 0x80
	midiCommandNoteOn       = 0x90
	midiCommandControlChng  = 0xB0
	midiChannel             = 0
	soundFontProcessorDelay = 0 // the software synth reports no added latency
)

// SoundFontProcessor is the engine's built-in instrument plugin: it
// renders MIDI clip events through a SoundFont using go-meltysynth,
// exactly the way the reference engine's MIDIBridge forwards gomidi
// messages into a meltysynth.Synthesizer, but driven through the
// Processor contract instead of a dedicated player goroutine.
type SoundFontProcessor struct {
	id   ID
	synth *meltysynth.Synthesizer
	font  *meltysynth.SoundFont

	mu sync.Mutex

	left, right []float32 // scratch planar buffers, reused across blocks
}

// NewSoundFontProcessor parses sf2Data and builds a synthesizer rendering
// at sampleRate.
func NewSoundFontProcessor(id ID, sf2Data []byte, sampleRate int) (*SoundFontProcessor, error) {
	font, err := meltysynth.NewSoundFont(bytes.NewReader(sf2Data))
	if err != nil {
		return nil, fmt.Errorf("plugin: failed to parse SoundFont: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	synth, err := meltysynth.NewSynthesizer(font, settings)
	if err != nil {
		return nil, fmt.Errorf("plugin: failed to create synthesizer: %w", err)
	}
	return &SoundFontProcessor{id: id, synth: synth, font: font}, nil
}

// ID implements Processor.
func (p *SoundFontProcessor) ID() ID { return p.id }

// Delay implements Processor.
func (p *SoundFontProcessor) Delay() int { return soundFontProcessorDelay }

// Reset implements Processor.
func (p *SoundFontProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.Reset()
}

// Flush implements Processor: feed note events to the synth without
// rendering audio, so voices start/stop on schedule even while the node
// is bypassed.
func (p *SoundFontProcessor) Flush(events *[]event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range *events {
		p.applyEvent(e)
	}
	*events = (*events)[:0]
	return nil
}

// Process implements Processor: apply pending note events in slice order,
// all at the start of the block (their Time fields are not used), render
// frames into audio (interleaved stereo), and leave events empty
// since the SoundFont synth does not emit any of its own.
func (p *SoundFontProcessor) Process(audio []float32, events *[]event.Event, mix float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frames := len(audio) / 2
	if cap(p.left) < frames {
		p.left = make([]float32, frames)
		p.right = make([]float32, frames)
	}
	left, right := p.left[:frames], p.right[:frames]

	for _, e := range *events {
		p.applyEvent(e)
	}
	*events = (*events)[:0]

	p.synth.Render(left, right)

	for i := 0; i < frames; i++ {
		dry := [2]float32{audio[i*2], audio[i*2+1]}
		wet := [2]float32{left[i], right[i]}
		audio[i*2] = dry[0]*(1-mix) + wet[0]*mix
		audio[i*2+1] = dry[1]*(1-mix) + wet[1]*mix
	}
	return nil
}

func (p *SoundFontProcessor) applyEvent(e event.Event) {
	switch e.Kind {
	case event.KindNoteOn:
		p.synth.ProcessMidiMessage(midiChannel, midiCommandNoteOn, int32(e.Key), int32(e.Velocity*127))
	case event.KindNoteOff, event.KindNoteChoke:
		p.synth.ProcessMidiMessage(midiChannel, midiCommandNoteOff, int32(e.Key), 0)
	case event.KindParamValue:
		if e.ParamID < 0x78 {
			p.synth.ProcessMidiMessage(midiChannel, midiCommandControlChng, int32(e.ParamID), int32(e.Value*127))
		}
	}
}

// Save implements Processor. The SoundFont synth has no persisted
// parameter state beyond the font itself, which the host reloads by path;
// the blob here is reserved for future use and is always empty.
func (p *SoundFontProcessor) Save() ([]byte, error) {
	return nil, nil
}

// Load implements Processor.
func (p *SoundFontProcessor) Load(blob []byte) error {
	return nil
}
