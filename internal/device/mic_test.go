package device

import (
	"sync"
	"testing"
	"time"

	"github.com/k00jax/omi/pkg/audio"
)

func TestMicSource_IngestChunksIntoCanonicalFrames(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var frames []audio.Frame
	src := NewMicSource(func(f audio.Frame) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	})

	// Two and a half canonical frames worth of PCM.
	src.ingest(make([]byte, audio.FrameBytes*2+audio.FrameBytes/2))

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 2 {
		t.Fatalf("frames emitted = %d, want 2", len(frames))
	}
	for i, f := range frames {
		if !f.Canonical() {
			t.Errorf("frame %d is not canonical: %d bytes at %d Hz", i, len(f.Data), f.SampleRate)
		}
	}
	if frames[0].Timestamp != 0 {
		t.Errorf("first frame timestamp = %v, want 0", frames[0].Timestamp)
	}
	if frames[1].Timestamp != audio.FrameDuration {
		t.Errorf("second frame timestamp = %v, want %v", frames[1].Timestamp, audio.FrameDuration)
	}
}

func TestMicSource_IngestCarriesRemainderForward(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var frames []audio.Frame
	src := NewMicSource(func(f audio.Frame) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	})

	// Deliver a frame in two halves; only the second call completes it.
	src.ingest(make([]byte, audio.FrameBytes/2))

	mu.Lock()
	if len(frames) != 0 {
		mu.Unlock()
		t.Fatalf("frames emitted after half a frame = %d, want 0", len(frames))
	}
	mu.Unlock()

	src.ingest(make([]byte, audio.FrameBytes/2))

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 1 {
		t.Fatalf("frames emitted = %d, want 1", len(frames))
	}
	if got := frames[0].Timestamp; got != 0 {
		t.Errorf("timestamp = %v, want 0", got)
	}
	if got := time.Duration(frames[0].Samples()) * time.Second / audio.SampleRate; got != audio.FrameDuration {
		t.Errorf("frame duration = %v, want %v", got, audio.FrameDuration)
	}
}
