// Package device provides audio capture sources for the pipeline: the BLE
// wearable (compressed packets over GATT notifications) and the local
// microphone (canonical PCM, for development without a paired device).
package device

import (
	"context"

	"github.com/k00jax/omi/pkg/audio"
)

// PacketHandler receives a raw audio packet exactly as it arrived from the
// wearable, header included. Handlers must not retain the slice past the
// call; sources may reuse the buffer.
type PacketHandler func(packet []byte)

// FrameHandler receives decoded PCM frames from sources that bypass the
// packet codec, such as the local microphone.
type FrameHandler func(frame audio.Frame)

// StatusFunc receives human-readable connection state updates.
type StatusFunc func(status string)

// Source is a running audio capture source. Run blocks until ctx is
// cancelled or the source fails unrecoverably.
type Source interface {
	Run(ctx context.Context) error
}
