// Package transcribe keeps one streaming transcription session alive for the
// lifetime of the pipeline.
//
// A [Streamer] owns the consumer end of the frame queue and the caller side
// of an [stt.Session]. While streaming it concurrently sends queued PCM
// frames to the provider and delivers recognized transcripts to a handler,
// one at a time, in arrival order. Any transport failure tears the session
// down and the Streamer reconnects after a fixed delay, forever; only
// context cancellation stops it.
//
// The provider may itself be a failover wrapper
// (internal/resilience.STTFailover), in which case each connect attempt can
// be served by a fallback backend without the Streamer noticing.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/k00jax/omi/pkg/audio"
	"github.com/k00jax/omi/pkg/provider/stt"
)

// defaultRetryDelay is the fixed wait between a lost session and the next
// connect attempt.
const defaultRetryDelay = 5 * time.Second

// errStreamEnded marks a transcript channel that closed without a terminal
// error, e.g. the service hanging up cleanly. The session is still gone, so
// the reconnect path treats it like any other stream failure.
var errStreamEnded = errors.New("transcribe: stream ended by service")

// State is the observable connection state of a [Streamer].
type State int32

const (
	// StateDisconnected means no session is open. This is the initial state
	// and the state during the retry wait.
	StateDisconnected State = iota
	// StateConnecting means a connect attempt is in flight.
	StateConnecting
	// StateStreaming means a session is open and audio is flowing.
	StateStreaming
)

// String returns a short stable name for logging and health reports.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Handler consumes one recognized transcript. The Streamer invokes it
// sequentially, never concurrently, in the provider's emission order; the
// Text field is already trimmed and non-empty. A returned error is logged
// and delivery continues with the next transcript.
type Handler func(ctx context.Context, t stt.Transcript) error

// Option is a functional option for [New].
type Option func(*Streamer)

// WithRetryDelay sets the wait between a lost session and the next connect
// attempt. Defaults to 5 seconds.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Streamer) { s.retryDelay = d }
}

// WithStatus registers a sink for human-readable connection transition
// messages. Nil disables status reporting.
func WithStatus(fn func(string)) Option {
	return func(s *Streamer) { s.status = fn }
}

// Streamer pumps the frame queue into a transcription provider and
// transcripts out to a handler, reconnecting on every failure.
type Streamer struct {
	provider stt.Provider
	queue    *audio.FrameQueue
	cfg      stt.StreamConfig
	handler  Handler

	retryDelay time.Duration
	status     func(string)

	state atomic.Int32
}

// New creates a Streamer. handler must be non-nil; cfg is passed verbatim to
// every connect attempt.
func New(provider stt.Provider, queue *audio.FrameQueue, cfg stt.StreamConfig, handler Handler, opts ...Option) *Streamer {
	s := &Streamer{
		provider:   provider,
		queue:      queue,
		cfg:        cfg,
		handler:    handler,
		retryDelay: defaultRetryDelay,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current connection state.
func (s *Streamer) State() State {
	return State(s.state.Load())
}

// Run drives the connect/stream/reconnect loop until ctx is cancelled.
// It always returns ctx's error; transport and provider failures are
// absorbed by the retry loop and never terminate it.
func (s *Streamer) Run(ctx context.Context) error {
	for {
		s.setState(StateConnecting)
		s.notify("connecting to transcription service")

		sess, err := s.provider.StartStream(ctx, s.cfg)
		if err != nil {
			s.setState(StateDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("transcribe: connect failed", "error", err)
			s.notify("transcription lost, retrying")
			if err := s.wait(ctx); err != nil {
				return err
			}
			continue
		}

		s.setState(StateStreaming)
		s.notify("transcription connected")
		slog.Info("transcribe: session open",
			"sample_rate", s.cfg.SampleRate, "channels", s.cfg.Channels)

		err = s.stream(ctx, sess)
		_ = sess.Close()
		s.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("transcribe: stream ended, reconnecting", "error", err)
		s.notify("transcription lost, retrying")
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
}

// stream runs one session until it fails: a sender pumping the frame queue,
// a receiver delivering transcripts, and a closer that tears the session
// down as soon as either side stops, so the other cannot block forever.
func (s *Streamer) stream(ctx context.Context, sess stt.Session) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			frame, err := s.queue.Pop(gctx)
			if err != nil {
				return err
			}
			if err := sess.SendAudio(gctx, frame.Data); err != nil {
				return fmt.Errorf("transcribe: send audio: %w", err)
			}
		}
	})

	g.Go(func() error {
		for t := range sess.Transcripts() {
			t.Text = strings.TrimSpace(t.Text)
			if t.Text == "" {
				continue
			}
			if err := s.handler(gctx, t); err != nil {
				slog.Error("transcribe: transcript handler failed",
					"text", t.Text, "error", err)
			}
		}
		if err := sess.Err(); err != nil {
			return fmt.Errorf("transcribe: stream closed: %w", err)
		}
		return errStreamEnded
	})

	g.Go(func() error {
		<-gctx.Done()
		return sess.Close()
	})

	return g.Wait()
}

// wait blocks for the retry delay or until ctx is cancelled.
func (s *Streamer) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.retryDelay):
		return nil
	}
}

func (s *Streamer) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Streamer) notify(msg string) {
	if s.status != nil {
		s.status(msg)
	}
}
