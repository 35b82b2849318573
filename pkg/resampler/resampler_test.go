package resampler

import "testing"

func TestSecondFinishReturnsNil(t *testing.T) {
	r := New(44100, 44100, 2)
	r.Process(make([]float32, 2048))
	first := r.Finish()
	second := r.Finish()
	if second != nil {
		t.Fatalf("second Finish() call should return nil, got %d frames", len(second))
	}
	if len(first) == 0 {
		t.Fatalf("expected non-empty output from first Finish()")
	}
}

func TestUnityRatioPreservesFrameCount(t *testing.T) {
	r := New(44100, 44100, 2)
	const frames = 4096
	r.Process(make([]float32, frames*2))
	out := r.Finish()
	if len(out) != frames*2 {
		t.Fatalf("got %d samples, want %d at unity ratio", len(out), frames*2)
	}
}
