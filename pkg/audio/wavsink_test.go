package audio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/k00jax/omi/pkg/audio"
)

func TestWAVSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.wav")
	sink, err := audio.NewWAVSink(path)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	want := []int16{0, 1000, -1000, 32767, -32768, 42}
	frames := []audio.Frame{
		{Data: audio.Int16sToBytes(want[:3]), SampleRate: audio.SampleRate, Channels: audio.Channels},
		{}, // empty frames are ignored
		{Data: audio.Int16sToBytes(want[3:]), SampleRate: audio.SampleRate, Channels: audio.Channels},
	}
	for i, f := range frames {
		if err := sink.Write(f); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	// A write after Close must be a no-op, not an error.
	if err := sink.Write(frames[0]); err != nil {
		t.Fatalf("write after close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen dump: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if dec.SampleRate != audio.SampleRate {
		t.Errorf("sample rate: got %d, want %d", dec.SampleRate, audio.SampleRate)
	}
	if dec.NumChans != audio.Channels {
		t.Errorf("channels: got %d, want %d", dec.NumChans, audio.Channels)
	}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i, w := range want {
		if int16(buf.Data[i]) != w {
			t.Errorf("sample %d: got %d, want %d", i, buf.Data[i], w)
		}
	}
}

func TestWAVSink_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.wav")
	sink, err := audio.NewWAVSink(path)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
