// Package codec turns raw wearable packets into PCM frames.
//
// Every packet carries a fixed 3-byte transport header (sequence and index
// bookkeeping written by the device firmware) followed by the audio payload.
// The payload is Opus when the native decoder is available; hosts without a
// usable Opus build fall back to a deterministic synthesizer so the rest of
// the pipeline keeps moving with plausible audio instead of silence.
//
// The decode mode is probed once at construction and never changes for the
// lifetime of the decoder. Decode itself never fails: malformed input
// degrades to an empty frame, which callers drop.
package codec

import (
	"log/slog"

	"github.com/k00jax/omi/pkg/audio"
)

// headerSize is the fixed packet header length stripped before decoding.
const headerSize = 3

// Mode identifies which decode path a Decoder was constructed with.
type Mode int

const (
	// ModeNative decodes Opus payloads with the system Opus library.
	ModeNative Mode = iota
	// ModeFallback synthesizes deterministic PCM from the payload bytes.
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeNative:
		return "native"
	case ModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Config controls decoder construction.
type Config struct {
	// ForceFallback skips the native Opus probe entirely. Used by tests and
	// on hosts known to lack a working Opus build.
	ForceFallback bool

	// FrameSamples is the number of PCM samples produced per packet.
	// Zero selects the canonical [audio.FrameSamples] (320, 20 ms). The
	// legacy firmware value 960 is accepted for compatibility.
	FrameSamples int
}

// Decoder converts one raw packet into one PCM frame.
//
// Decode strips the transport header and decodes the remaining payload.
// Packets of header size or less produce an empty frame in every mode: such
// packets carry no audio and are not an error. Decode never blocks and never
// reports failure to the caller.
type Decoder interface {
	Decode(packet []byte) audio.Frame
	Mode() Mode
}

// New builds a Decoder for the configured mode. The native Opus decoder is
// attempted first; if construction fails (or cfg.ForceFallback is set) the
// fallback synthesizer is selected permanently. New itself cannot fail.
func New(cfg Config) Decoder {
	samples := cfg.FrameSamples
	if samples <= 0 {
		samples = audio.FrameSamples
	}

	if !cfg.ForceFallback {
		dec, err := newOpusDecoder(samples)
		if err == nil {
			slog.Info("codec: native opus decoder ready",
				"sampleRate", audio.SampleRate,
				"frameSamples", samples,
			)
			return dec
		}
		slog.Warn("codec: native opus unavailable, using fallback synthesizer", "error", err)
	} else {
		slog.Info("codec: fallback synthesizer selected by config")
	}

	return newFallbackDecoder(samples)
}

// payload strips the transport header. The second return is false when the
// packet is too short to carry any audio.
func payload(packet []byte) ([]byte, bool) {
	if len(packet) <= headerSize {
		return nil, false
	}
	return packet[headerSize:], true
}

// emptyFrame is the "no audio" result shared by both modes.
func emptyFrame() audio.Frame {
	return audio.Frame{SampleRate: audio.SampleRate, Channels: audio.Channels}
}
