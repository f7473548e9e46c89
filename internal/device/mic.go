package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/k00jax/omi/pkg/audio"
)

// MicSource captures canonical PCM from the default microphone and delivers
// it in 20 ms frames. It bypasses the packet codec entirely, which makes it
// useful for exercising the transcription and matching stages without a
// paired wearable.
type MicSource struct {
	handler FrameHandler
	status  StatusFunc

	mu      sync.Mutex
	pending []byte        // carry-over bytes smaller than one frame
	elapsed time.Duration // stream position of the next emitted frame
}

var _ Source = (*MicSource)(nil)

// MicOption configures a [MicSource].
type MicOption func(*MicSource)

// WithMicStatus registers a status callback for capture state updates.
func WithMicStatus(fn StatusFunc) MicOption {
	return func(s *MicSource) { s.status = fn }
}

// NewMicSource creates a microphone source delivering frames to handler.
func NewMicSource(handler FrameHandler, opts ...MicOption) *MicSource {
	s := &MicSource{
		handler: handler,
		status:  func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run captures from the default microphone until ctx is cancelled. The
// device is configured for the canonical stream format directly (16 kHz
// mono s16le), so no conversion happens on the capture path.
func (s *MicSource) Run(ctx context.Context) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("mic: init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = audio.Channels
	deviceCfg.SampleRate = audio.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, _ uint32) {
			s.ingest(pSample)
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, deviceCfg, callbacks)
	if err != nil {
		return fmt.Errorf("mic: init capture device: %w", err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("mic: start capture device: %w", err)
	}
	s.status("capturing")

	<-ctx.Done()
	s.status("stopped")
	return ctx.Err()
}

// ingest appends captured bytes and emits every complete canonical frame.
func (s *MicSource) ingest(pcm []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, pcm...)

	var frames []audio.Frame
	for len(s.pending) >= audio.FrameBytes {
		data := make([]byte, audio.FrameBytes)
		copy(data, s.pending[:audio.FrameBytes])
		s.pending = s.pending[audio.FrameBytes:]

		frames = append(frames, audio.Frame{
			Data:       data,
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
			Timestamp:  s.elapsed,
		})
		s.elapsed += audio.FrameDuration
	}
	s.mu.Unlock()

	for _, f := range frames {
		s.handler(f)
	}
}
