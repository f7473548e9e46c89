// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig and to script connect failures. Use Session to feed
// controlled Transcript values and inspect which audio chunks were
// delivered.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.Emit(stt.Transcript{Text: "hey omi", IsFinal: true})
//	sess.End(nil)
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/k00jax/omi/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// StartStreamFunc, if non-nil, is invoked for every StartStream call
	// after recording it. Use it to script per-call behaviour such as
	// "fail twice, then succeed".
	StartStreamFunc func(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error)

	// Session is the Session returned by StartStream when StartStreamFunc
	// is nil. If both are nil, StartStream returns a new default Session.
	Session stt.Session

	// StartStreamErr, if non-nil, is returned as the error from StartStream
	// when StartStreamFunc is nil.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns the scripted result.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	p.mu.Lock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	fn := p.StartStreamFunc
	sess := p.Session
	err := p.StartStreamErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	return NewSession(), nil
}

// CallCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// PCM is a copy of the audio bytes that were passed to SendAudio.
	PCM []byte
}

// Session is a mock implementation of stt.Session. Feed transcripts to the
// consumer with Emit, then finish the stream with End.
type Session struct {
	mu sync.Mutex

	transcripts chan stt.Transcript
	ended       bool
	err         error

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession creates a Session with a buffered transcript channel.
func NewSession() *Session {
	return &Session{transcripts: make(chan stt.Transcript, 16)}
}

// Emit delivers a transcript to the consumer. Panics if called after End,
// which is a bug in the test.
func (s *Session) Emit(t stt.Transcript) {
	s.transcripts <- t
}

// End closes the transcript channel, optionally recording a terminal error
// to simulate a transport failure. Safe to call once.
func (s *Session) End(err error) {
	s.mu.Lock()
	if !s.ended {
		s.ended = true
		s.err = err
		close(s.transcripts)
	}
	s.mu.Unlock()
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{PCM: cp})
	return s.SendAudioErr
}

// Transcripts returns the channel fed by Emit and closed by End.
func (s *Session) Transcripts() <-chan stt.Transcript {
	return s.transcripts
}

// Err returns the error recorded by End.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close records the call, ends the stream if still open, and returns
// CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	closeErr := s.CloseErr
	alreadyEnded := s.ended
	if !alreadyEnded {
		s.ended = true
		close(s.transcripts)
	}
	s.mu.Unlock()
	return closeErr
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements stt.Session at compile time.
var _ stt.Session = (*Session)(nil)

// ErrScripted is a convenience error for scripting failures in tests.
var ErrScripted = errors.New("mock: scripted failure")
