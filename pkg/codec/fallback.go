package codec

import (
	"math"
	"math/rand/v2"

	"github.com/k00jax/omi/pkg/audio"
)

// fallbackDecoder synthesizes PCM from packet payload bytes when no native
// Opus decoder is available. The same payload always synthesizes the same
// samples, so recorded packet captures replay identically.
type fallbackDecoder struct {
	frameSamples int
}

var _ Decoder = (*fallbackDecoder)(nil)

func newFallbackDecoder(frameSamples int) *fallbackDecoder {
	return &fallbackDecoder{frameSamples: frameSamples}
}

func (d *fallbackDecoder) Mode() Mode { return ModeFallback }

func (d *fallbackDecoder) Decode(packet []byte) audio.Frame {
	p, ok := payload(packet)
	if !ok {
		return emptyFrame()
	}
	return audio.Frame{
		Data:       Synthesize(p, d.frameSamples),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
}

// Synthesize produces frameSamples little-endian int16 samples from the
// payload. Each sample averages a pair of adjacent payload bytes (wrapping),
// centers the result around zero, and shapes it with a triangular envelope
// that repeats every 100 samples, which keeps long runs of identical packets
// audible rather than constant. Empty payloads produce low-level random
// noise bounded to ±25 so silence-from-synthesis stays distinguishable from
// a dropped packet.
func Synthesize(payload []byte, frameSamples int) []byte {
	out := make([]byte, frameSamples*2)

	if len(payload) == 0 {
		for i := range frameSamples {
			v := int16(rand.IntN(51) - 25)
			out[i*2] = byte(v)
			out[i*2+1] = byte(v >> 8)
		}
		return out
	}

	for i := range frameSamples {
		b1 := float64(payload[i%len(payload)])
		b2 := float64(payload[(i+1)%len(payload)])
		base := ((b1+b2)/2 - 128) * 100
		envelope := math.Abs(float64((i*17)%100)-50) / 50

		v := int32(base * envelope)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}

		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
