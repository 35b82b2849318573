package engine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// exportChunkFrames is the suggested chunk size for the export path's
// iterative fill_buf calls.
const exportChunkFrames = 64

// Export renders [0, totalFrames) of the handed-off graph to w as
// interleaved stereo 16-bit PCM, per the cooperative export handoff: the
// caller must have already obtained g via RequestAudioGraph and must
// return it via ReturnAudioGraph when Export returns, regardless of
// error.
func Export(g interface {
	FillBuf(blockStartSample uint64, buf []float32) error
}, totalFrames uint64, w io.Writer) error {
	bw := bufio.NewWriter(w)
	chunk := make([]float32, exportChunkFrames*2)
	pcm := make([]byte, exportChunkFrames*2*2)

	var written uint64
	for written < totalFrames {
		frames := uint64(exportChunkFrames)
		if remaining := totalFrames - written; remaining < frames {
			frames = remaining
		}
		buf := chunk[:frames*2]
		if err := g.FillBuf(written*2, buf); err != nil {
			return fmt.Errorf("engine: export: %w", err)
		}
		n := encodePCM16(buf, pcm)
		if _, err := bw.Write(pcm[:n]); err != nil {
			return fmt.Errorf("engine: export: write: %w", err)
		}
		written += frames
	}
	return bw.Flush()
}

// encodePCM16 converts interleaved float32 samples in [-1,1] to
// little-endian interleaved int16 PCM, returning the byte count written.
func encodePCM16(samples []float32, out []byte) int {
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		v := int16(math.Round(float64(f) * 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return len(samples) * 2
}
