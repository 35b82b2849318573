// Package clip implements the audio-clip and MIDI-clip model: immutable
// samples and shared MIDI patterns placed on the arrangement timeline via
// a ClipPosition, plus the block-mixing and editing operations a track
// performs against them.
package clip

import (
	"crypto/sha256"
	"fmt"
	"math"
)

// lodZoomLevels are the zoom powers-of-two at which a Sample's waveform
// summary is pre-computed. The RT engine never reads these; they are
// owned here only because the Sample they summarize is immutable and
// shared with the (out-of-scope) waveform widget.
var lodZoomLevels = [...]int{6, 8, 10, 12, 14, 16}

// LODLevel is a min/max waveform summary at one zoom power-of-two. Each
// entry in Mins/Maxes covers 1<<zoomBits interleaved-stereo frames.
type LODLevel struct {
	ZoomBits int
	Mins     []float32
	Maxes    []float32
}

// Sample is an immutable audio asset: interleaved stereo float PCM at the
// engine's sample rate, plus identifying metadata and pre-computed LOD
// summaries. Once constructed a Sample is never mutated; it is shared by
// value of its pointer between every clip and the asset cache that
// referencing it.
type Sample struct {
	Path string
	Name string
	Hash [32]byte

	// PCM is interleaved stereo float32 at the engine sample rate.
	PCM []float32

	LODs []LODLevel
}

// Frames returns the number of stereo frames in the sample.
func (s *Sample) Frames() int {
	return len(s.PCM) / 2
}

// NewSample builds a Sample from already-resampled, already-stereo
// interleaved PCM (see the resampler and the asset decode contract for how
// a decoder's raw output gets here). The content hash and LOD summaries
// are computed once, here, so every later reader sees a fully immutable
// value.
func NewSample(path, name string, pcm []float32) (*Sample, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("clip: sample PCM length %d is not interleaved stereo", len(pcm))
	}
	s := &Sample{
		Path: path,
		Name: name,
		PCM:  pcm,
		Hash: hashPCM(pcm),
		LODs: buildLODs(pcm),
	}
	return s, nil
}

func hashPCM(pcm []float32) [32]byte {
	h := sha256.New()
	buf := make([]byte, 4)
	for _, f := range pcm {
		bits := math.Float32bits(f)
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		h.Write(buf)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func buildLODs(pcm []float32) []LODLevel {
	frames := len(pcm) / 2
	if frames == 0 {
		return nil
	}
	lods := make([]LODLevel, 0, len(lodZoomLevels))
	for _, zoomBits := range lodZoomLevels {
		span := 1 << uint(zoomBits)
		if span > frames {
			break
		}
		buckets := (frames + span - 1) / span
		mins := make([]float32, buckets)
		maxes := make([]float32, buckets)
		for b := 0; b < buckets; b++ {
			lo := b * span
			hi := lo + span
			if hi > frames {
				hi = frames
			}
			min, max := float32(1), float32(-1)
			for f := lo; f < hi; f++ {
				l, r := pcm[f*2], pcm[f*2+1]
				if l < min {
					min = l
				}
				if r < min {
					min = r
				}
				if l > max {
					max = l
				}
				if r > max {
					max = r
				}
			}
			mins[b], maxes[b] = min, max
		}
		lods = append(lods, LODLevel{ZoomBits: zoomBits, Mins: mins, Maxes: maxes})
	}
	return lods
}
