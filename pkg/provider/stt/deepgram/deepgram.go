// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/k00jax/omi/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova"
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000

	// encoding announces headerless little-endian 16-bit PCM frames.
	encoding = "linear16"
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g. "nova", "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g. "en-US").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithEndpoint overrides the streaming endpoint URL. Used by tests to point
// the provider at a local WebSocket server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	sampleRate int
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   deepgramEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram.
// It respects cfg.SampleRate, cfg.Language, and cfg.Keywords.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:        conn,
		transcripts: make(chan stt.Transcript, 64),
		audio:       make(chan []byte, 256),
		done:        make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch == 0 {
		ch = 1
	}

	q := u.Query()
	q.Set("punctuate", "true")
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", encoding)
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("channels", strconv.Itoa(ch))

	for _, kw := range cfg.Keywords {
		// Deepgram keyword format: word:boost (e.g. "omi:5")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// serverMessage is the JSON structure Deepgram sends on the socket: either a
// recognition result or an error report. Any other shape decodes to the zero
// value and is ignored.
type serverMessage struct {
	Error   string `json:"error"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements stt.Session.
type session struct {
	conn        *websocket.Conn
	transcripts chan stt.Transcript
	audio       chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	errMu sync.Mutex
	err   error
}

var _ stt.Session = (*session)(nil)

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
func (s *session) SendAudio(ctx context.Context, pcm []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- pcm:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	case <-ctx.Done():
		return fmt.Errorf("deepgram: send audio: %w", ctx.Err())
	}
}

// Transcripts returns the channel of recognition results.
func (s *session) Transcripts() <-chan stt.Transcript { return s.transcripts }

// Err reports the terminal stream error once Transcripts has closed. A local
// Close leaves it nil.
func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// setErr records the first transport failure. Failures observed while a
// local Close is in flight are expected teardown noise and not recorded.
func (s *session) setErr(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Close terminates the session cleanly.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		// Ask Deepgram to flush pending audio before the socket drops.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Deepgram.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				s.setErr(fmt.Errorf("deepgram: write audio: %w", err))
				return
			}
		case <-s.done:
			// Drain the audio channel before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Deepgram and forwards recognition
// results to the transcripts channel.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.transcripts)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			s.setErr(fmt.Errorf("deepgram: read: %w", err))
			return
		}

		t, ok := parseServerMessage(msg)
		if !ok {
			continue
		}

		select {
		case s.transcripts <- t:
		case <-s.done:
		}
	}
}

// parseServerMessage parses a raw Deepgram WebSocket message into a
// Transcript. Returns (zero, false) for messages that carry no recognition
// result: server error reports and malformed payloads are logged and
// skipped, metadata and keepalives are skipped silently.
func parseServerMessage(data []byte) (stt.Transcript, bool) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("deepgram: malformed server message, skipping", "error", err)
		return stt.Transcript{}, false
	}
	if msg.Error != "" {
		slog.Warn("deepgram: server reported error", "error", msg.Error)
		return stt.Transcript{}, false
	}
	if len(msg.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}

	alt := msg.Channel.Alternatives[0]
	return stt.Transcript{
		Text:       alt.Transcript,
		IsFinal:    msg.IsFinal,
		Confidence: alt.Confidence,
		ReceivedAt: time.Now(),
	}, true
}
