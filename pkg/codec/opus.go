package codec

import (
	"fmt"
	"log/slog"
	"sync"

	"layeh.com/gopus"

	"github.com/k00jax/omi/pkg/audio"
)

// opusDecoder wraps a gopus Opus decoder configured for the wearable's
// 16 kHz mono stream. A single decoder instance maintains Opus state across
// consecutive packets, so it must only see one stream.
type opusDecoder struct {
	dec          *gopus.Decoder
	frameSamples int
	warnedDecode sync.Once
}

var _ Decoder = (*opusDecoder)(nil)

// newOpusDecoder creates a native decoder, or an error when the underlying
// Opus library cannot be initialised on this host.
func newOpusDecoder(frameSamples int) (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("codec: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec, frameSamples: frameSamples}, nil
}

func (d *opusDecoder) Mode() Mode { return ModeNative }

// Decode strips the packet header and decodes the Opus payload into
// little-endian PCM. Undecodable payloads yield the empty frame; the first
// failure is logged, later ones are counted silently by the caller's metrics.
func (d *opusDecoder) Decode(packet []byte) audio.Frame {
	p, ok := payload(packet)
	if !ok {
		return emptyFrame()
	}

	pcm, err := d.dec.Decode(p, d.frameSamples, false)
	if err != nil {
		d.warnedDecode.Do(func() {
			slog.Warn("codec: opus decode failed, emitting empty frame", "error", err, "payloadBytes", len(p))
		})
		return emptyFrame()
	}

	return audio.Frame{
		Data:       audio.Int16sToBytes(pcm),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
}
