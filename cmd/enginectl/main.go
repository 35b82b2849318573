// Command enginectl hosts the audio context against a real sound device
// (or, with -export, renders directly to a WAV file with no device at
// all) and exercises the control API: insert a track and a bus, wire
// them to master, then either run the device loop or export.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/zurustar/son-et/pkg/engine"
	"github.com/zurustar/son-et/pkg/logger"
	"github.com/zurustar/son-et/pkg/nodeid"
	"github.com/zurustar/son-et/pkg/transport"
)

// connectUntilReady drives DeviceCallback ticks until a Connect call
// (running in its own goroutine, since it blocks on the audio thread's
// reply) resolves or a timeout elapses.
func connectUntilReady(ctx *engine.Context, from, to nodeid.ID) error {
	errc := make(chan error, 1)
	go func() { errc <- ctx.Connect(from, to) }()

	buf := make([]float32, 2)
	deadline := time.After(5 * time.Second)
	for {
		if err := ctx.DeviceCallback(buf); err != nil {
			return err
		}
		select {
		case err := <-errc:
			return err
		case <-deadline:
			return fmt.Errorf("enginectl: connect %s -> %s timed out", from, to)
		default:
		}
	}
}

func main() {
	var (
		logLevel   = flag.String("log-level", "info", "debug, info, warn, or error")
		sampleRate = flag.Uint("rate", 48000, "engine sample rate in Hz")
		bpm        = flag.Uint("bpm", 120, "initial tempo")
		numerator  = flag.Uint("numerator", 4, "initial meter top number")
		deviceName = flag.String("device", "", "backend device name, empty for default")
		exportPath = flag.String("export", "", "render to this WAV path instead of opening a device")
		exportSecs = flag.Float64("export-seconds", 4, "length of the -export render")
	)
	flag.Parse()

	if err := logger.InitLogger(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "enginectl: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	tr := transport.New(uint32(*sampleRate), uint32(*bpm), uint8(*numerator))
	master := nodeid.New()
	ctx := engine.NewContext(tr, master, log)

	trackID := nodeid.New()
	if err := ctx.InsertTrack(trackID); err != nil {
		log.Error("insert track", "err", err)
		os.Exit(1)
	}
	busID := nodeid.New()
	if err := ctx.InsertBus(busID); err != nil {
		log.Error("insert bus", "err", err)
		os.Exit(1)
	}

	// There is no audio thread running yet, so every control message
	// (InsertTrack/InsertBus/Connect) needs a DeviceCallback tick to be
	// drained. connectUntilReady polls DeviceCallback alongside the
	// blocking Connect call, the same pattern the engine's own tests use
	// to drive applyMessage with no separate audio-thread goroutine.
	if err := connectUntilReady(ctx, trackID, busID); err != nil {
		log.Error("connect track to bus", "err", err)
		os.Exit(1)
	}
	if err := connectUntilReady(ctx, busID, master); err != nil {
		log.Error("connect bus to master", "err", err)
		os.Exit(1)
	}

	if *exportPath != "" {
		runExport(ctx, *exportPath, *exportSecs, uint32(*sampleRate), log)
		return
	}

	runDevice(ctx, *deviceName, uint32(*sampleRate), log)
}

func runExport(ctx *engine.Context, path string, seconds float64, sampleRate uint32, log interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}) {
	// No device drives DeviceCallback here, so tick it in the background
	// until the audio side has applied the graph handoff.
	handedOff := make(chan struct{})
	go func() {
		buf := make([]float32, 2)
		for {
			select {
			case <-handedOff:
				return
			default:
			}
			_ = ctx.DeviceCallback(buf)
		}
	}()
	g, err := ctx.RequestAudioGraph()
	close(handedOff)
	if err != nil {
		log.Error("request audio graph", "err", err)
		os.Exit(1)
	}
	f, err := os.Create(path)
	if err != nil {
		log.Error("create export file", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	frames := uint64(seconds * float64(sampleRate))
	if err := writeWAVHeader(f, frames, sampleRate); err != nil {
		log.Error("write wav header", "err", err)
		os.Exit(1)
	}
	if err := engine.Export(g, frames, f); err != nil {
		log.Error("export", "err", err)
		os.Exit(1)
	}
	if err := ctx.ReturnAudioGraph(g); err != nil {
		log.Error("return audio graph", "err", err)
		os.Exit(1)
	}
	log.Info("exported", "path", path, "frames", frames)
}

// writeWAVHeader writes a canonical 16-bit stereo PCM WAV header sized
// for frames interleaved-stereo samples that will follow.
func writeWAVHeader(f *os.File, frames uint64, sampleRate uint32) error {
	const channels = 2
	const bitsPerSample = 16
	dataBytes := frames * channels * (bitsPerSample / 8)
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := uint16(channels * (bitsPerSample / 8))

	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	putU32(buf[4:8], uint32(36+dataBytes))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	putU32(buf[16:20], 16)
	putU16(buf[20:22], 1) // PCM
	putU16(buf[22:24], channels)
	putU32(buf[24:28], sampleRate)
	putU32(buf[28:32], byteRate)
	putU16(buf[32:34], blockAlign)
	putU16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	putU32(buf[40:44], uint32(dataBytes))
	_, err := f.Write(buf)
	return err
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// runDevice opens a duplex audio device via malgo and drives
// ctx.DeviceCallback from its data callback until interrupted. Capture
// input is forwarded to the context's recorder when one is active, and
// output is rendered directly into pOutput as interleaved stereo
// float32.
func runDevice(ctx *engine.Context, deviceName string, sampleRate uint32, log interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Error("init audio context", "err", err)
		os.Exit(1)
	}
	defer mctx.Free()

	cfg := malgo.DefaultDeviceConfig(malgo.Duplex)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 2
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 2
	cfg.SampleRate = sampleRate
	cfg.PeriodSizeInMilliseconds = 10

	if deviceName != "" {
		var id malgo.DeviceID
		copy(id[:], deviceName)
		cfg.Playback.DeviceID = unsafe.Pointer(&id) //nolint:gosec // malgo's documented device-selection path
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			if len(pInput) > 0 {
				ctx.PushRecordingInput(bytesToFloat32(pInput))
			}
			out := bytesToFloat32(pOutput)
			if err := ctx.DeviceCallback(out); err != nil {
				log.Error("device callback", "err", err)
				return
			}
			float32ToBytes(out, pOutput)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		log.Error("init audio device", "err", err)
		os.Exit(1)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Error("start audio device", "err", err)
		os.Exit(1)
	}
	defer device.Stop()

	ctx.Play()
	log.Info("engine running, ctrl-c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func float32ToBytes(in []float32, out []byte) {
	for i, f := range in {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
}
