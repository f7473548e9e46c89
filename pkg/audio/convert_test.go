package audio_test

import (
	"testing"

	"github.com/k00jax/omi/pkg/audio"
)

func TestInt16sToBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 32767, -32768}
	got := audio.BytesToInt16s(audio.Int16sToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	stereo := audio.Int16sToBytes([]int16{100, 200, -100, -200})
	mono := audio.StereoToMono(stereo)
	got := audio.BytesToInt16s(mono)
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_Clamping(t *testing.T) {
	// Two max-positive samples should clamp to 32767 (not overflow).
	stereo := audio.Int16sToBytes([]int16{32767, 32767})
	mono := audio.StereoToMono(stereo)
	got := audio.BytesToInt16s(mono)
	want := []int16{32767}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	if got[0] != want[0] {
		t.Errorf("got %d, want %d", got[0], want[0])
	}
}

func TestResampleMono16_SameRate(t *testing.T) {
	pcm := audio.Int16sToBytes([]int16{100, 200, 300})
	out := audio.ResampleMono16(pcm, 16000, 16000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	// 2 samples at 16kHz → 6 samples at 48kHz (3x)
	pcm := audio.Int16sToBytes([]int16{1000, 2000})
	out := audio.ResampleMono16(pcm, 16000, 48000)
	got := audio.BytesToInt16s(out)
	if len(got) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(got))
	}
	// First output sample should equal first source sample.
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
	// Last output sample should be close to last source sample.
	last := got[len(got)-1]
	if last < 1800 || last > 2200 {
		t.Errorf("last sample: got %d, want close to 2000", last)
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	// 6 samples at 48kHz → 2 samples at 16kHz (1/3x)
	pcm := audio.Int16sToBytes([]int16{100, 200, 300, 400, 500, 600})
	out := audio.ResampleMono16(pcm, 48000, 16000)
	got := audio.BytesToInt16s(out)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
}

func TestResampleMono16_ZeroRate(t *testing.T) {
	pcm := audio.Int16sToBytes([]int16{100, 200})
	// Zero srcRate should return input unchanged.
	out := audio.ResampleMono16(pcm, 0, 16000)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero srcRate, got len %d", len(out))
	}
	// Zero dstRate should return input unchanged.
	out = audio.ResampleMono16(pcm, 16000, 0)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero dstRate, got len %d", len(out))
	}
	// Negative rates should return input unchanged.
	out = audio.ResampleMono16(pcm, -1, 16000)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for negative srcRate, got len %d", len(out))
	}
}

func TestResampleStereo16(t *testing.T) {
	// 2 stereo frames at 16kHz → 6 stereo frames (12 samples) at 48kHz
	pcm := audio.Int16sToBytes([]int16{100, 200, 300, 400})
	out := audio.ResampleStereo16(pcm, 16000, 48000)
	got := audio.BytesToInt16s(out)
	if len(got) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(got))
	}
}

func TestResampleStereo16_ZeroRate(t *testing.T) {
	pcm := audio.Int16sToBytes([]int16{100, 200, 300, 400})
	out := audio.ResampleStereo16(pcm, 0, 16000)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero srcRate, got len %d", len(out))
	}
	out = audio.ResampleStereo16(pcm, 16000, 0)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero dstRate, got len %d", len(out))
	}
}

func TestFormatConverter_NoOp(t *testing.T) {
	conv := audio.FormatConverter{Target: audio.Canonical}
	frame := audio.Frame{
		Data:       audio.Int16sToBytes([]int16{100, 200}),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
	result := conv.Convert(frame)
	// Same slice, pointer equality check.
	if &result.Data[0] != &frame.Data[0] {
		t.Error("expected same slice (zero allocation) for matching format")
	}
}

func TestFormatConverter_StereoDownmix(t *testing.T) {
	conv := audio.FormatConverter{Target: audio.Canonical}
	frame := audio.Frame{
		Data:       audio.Int16sToBytes([]int16{100, 200, 300, 500}),
		SampleRate: audio.SampleRate,
		Channels:   2,
	}
	result := conv.Convert(frame)
	got := audio.BytesToInt16s(result.Data)
	want := []int16{150, 400}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if result.SampleRate != audio.SampleRate || result.Channels != 1 {
		t.Errorf("unexpected format: %dHz %dch", result.SampleRate, result.Channels)
	}
}

func TestFormatConverter_FullConversion(t *testing.T) {
	// 48000 Hz stereo (typical mic capture) → 16000 Hz mono canonical.
	conv := audio.FormatConverter{Target: audio.Canonical}
	frame := audio.Frame{
		Data:       audio.Int16sToBytes([]int16{1000, 1000, 2000, 2000, 3000, 3000}),
		SampleRate: 48000,
		Channels:   2,
	}
	result := conv.Convert(frame)
	if result.SampleRate != audio.SampleRate {
		t.Errorf("expected %dHz, got %d", audio.SampleRate, result.SampleRate)
	}
	if result.Channels != 1 {
		t.Errorf("expected mono, got %d channels", result.Channels)
	}
	// 3 stereo frames at 48kHz resample to 1 stereo frame at 16kHz, then
	// downmix to 1 mono sample. L == R throughout, so the average is exact.
	got := audio.BytesToInt16s(result.Data)
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
	if got[0] != 1000 {
		t.Errorf("got %d, want 1000", got[0])
	}
}

func TestFormatConverter_OddByteCount(t *testing.T) {
	conv := audio.FormatConverter{Target: audio.Canonical}
	frame := audio.Frame{
		Data:       []byte{1, 2, 3}, // 3 bytes: odd, invalid for int16 PCM
		SampleRate: 48000,
		Channels:   2,
	}
	result := conv.Convert(frame)
	if len(result.Data) != 0 {
		t.Errorf("expected empty data for odd byte count, got %d bytes", len(result.Data))
	}
	// Dropped frame should carry target format, not source format.
	if result.SampleRate != audio.SampleRate {
		t.Errorf("expected target sample rate %d, got %d", audio.SampleRate, result.SampleRate)
	}
	if result.Channels != audio.Channels {
		t.Errorf("expected target channels %d, got %d", audio.Channels, result.Channels)
	}
}

func TestFormatConverter_OddByteCount_MatchingFormat(t *testing.T) {
	// Odd byte count should be caught even when formats match.
	conv := audio.FormatConverter{Target: audio.Canonical}
	frame := audio.Frame{
		Data:       []byte{1, 2, 3}, // odd byte count
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
	result := conv.Convert(frame)
	if len(result.Data) != 0 {
		t.Errorf("expected empty data for odd byte count even when formats match, got %d bytes", len(result.Data))
	}
}
