// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a real-time transcription service (e.g. Deepgram) or
// a local engine (whisper.cpp) and exposes a uniform streaming interface: a
// Session accepts raw PCM audio and emits Transcript values on a single
// ordered channel. Consumers that need the partial/final distinction read
// Transcript.IsFinal; delivery order is the provider's emission order either
// way.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// StreamConfig describes the audio format and recognition hints for a new
// session. All fields must be compatible with what the underlying provider
// supports; see each provider's documentation for valid ranges.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. The pipeline's canonical
	// rate is 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// STT providers).
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g. "en-US").
	// An empty string selects the provider default.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition
	// probability for uncommon words, notably the wake word and its spoken
	// variants. Providers without keyword support ignore the list.
	Keywords []KeywordBoost
}

// Session represents an open streaming transcription session.
//
// Callers must call Close when the session is no longer needed. Failing to
// do so may leak goroutines and network connections inside the provider
// implementation. All methods must be safe for concurrent use.
type Session interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. The chunk must match the SampleRate, Channels, and
	// bit depth agreed in StreamConfig. SendAudio after Close or after the
	// stream has failed returns an error.
	SendAudio(ctx context.Context, pcm []byte) error

	// Transcripts returns a read-only channel emitting recognition results
	// in provider order. The channel is closed when the stream ends, whether
	// by Close or by transport failure; consult Err afterwards to tell the
	// two apart.
	Transcripts() <-chan Transcript

	// Err reports the terminal stream error after Transcripts has closed.
	// It returns nil while the stream is live and nil after a local Close.
	Err() error

	// Close terminates the session, flushes pending audio, and releases all
	// associated resources. After Close returns the Transcripts channel is
	// closed. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use; multiple sessions may be
// open simultaneously.
type Provider interface {
	// StartStream opens a new streaming transcription session with the
	// given audio format and recognition configuration. The returned
	// Session is ready to accept audio immediately.
	//
	// Returns an error if the provider cannot establish the session
	// (authentication failure, unsupported configuration, or ctx already
	// cancelled). The caller owns the Session and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (Session, error)
}
