// Package audio defines the PCM frame type and transport primitives shared by
// the capture, decode, and transcription stages of the pipeline.
//
// The pipeline is built around a single canonical format: little-endian
// 16-bit mono PCM at 16 kHz in 20 ms frames (320 samples, 640 bytes). Frames
// in other sizes are legal but must be recognisable as non-canonical, because
// the downstream speech recognisers are duration-sensitive.
package audio

import "time"

// Canonical stream format constants.
const (
	// SampleRate is the pipeline-wide PCM sample rate in Hz.
	SampleRate = 16000

	// Channels is the pipeline-wide channel count (mono).
	Channels = 1

	// FrameDuration is the canonical frame length.
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of samples in a canonical frame.
	FrameSamples = SampleRate / 1000 * 20 // 320

	// FrameBytes is the byte length of a canonical frame (16-bit samples).
	FrameBytes = FrameSamples * 2 // 640
)

// Frame is a single unit of PCM audio flowing through the pipeline.
type Frame struct {
	// Data holds little-endian int16 PCM samples.
	Data []byte

	// SampleRate in Hz. The decode stages always emit [SampleRate].
	SampleRate int

	// Channels is 1 for mono. Capture sources may briefly produce stereo
	// before conversion.
	Channels int

	// Timestamp marks when the frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of samples per channel in the frame.
func (f Frame) Samples() int {
	if f.Channels > 1 {
		return len(f.Data) / 2 / f.Channels
	}
	return len(f.Data) / 2
}

// Empty reports whether the frame carries no audio. Empty frames signal
// "no payload", not an error, and are dropped before the queue.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// Canonical reports whether the frame matches the canonical pipeline format
// exactly: 16 kHz mono, 320 samples. Oversized legacy frames (for example the
// 960-sample compatibility setting) report false.
func (f Frame) Canonical() bool {
	return f.SampleRate == SampleRate && f.Channels == Channels && len(f.Data) == FrameBytes
}
