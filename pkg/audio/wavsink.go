package audio

import (
	"fmt"
	"os"
	"sync"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink tees PCM frames into a RIFF WAV file for offline inspection.
// The main use is listening to what the fallback synthesizer actually
// produces when the native codec is unavailable.
//
// Safe for concurrent use. Empty frames are ignored.
type WAVSink struct {
	mu     sync.Mutex
	f      *os.File
	enc    *wav.Encoder
	closed bool
}

// NewWAVSink creates (or truncates) a 16-bit mono WAV file at path using the
// canonical pipeline sample rate.
func NewWAVSink(path string) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create wav dump: %w", err)
	}
	enc := wav.NewEncoder(f, SampleRate, 16, Channels, 1)
	return &WAVSink{f: f, enc: enc}, nil
}

// Write appends the frame's samples to the file. Writes after Close are
// silently ignored so the pipeline can keep running while shutting down.
func (s *WAVSink) Write(frame Frame) error {
	if frame.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	samples := BytesToInt16s(frame.Data)
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("audio: wav dump write: %w", err)
	}
	return nil
}

// Close finalises the WAV header and closes the file.
func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return fmt.Errorf("audio: finalise wav dump: %w", err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("audio: close wav dump: %w", err)
	}
	return nil
}
