package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	defaultScanTimeout    = 10 * time.Second
	defaultBackoffMax     = 30 * time.Second
	defaultBackoffInitial = time.Second
)

// BLEConfig configures a [BLESource].
type BLEConfig struct {
	// Address of the wearable. When empty the source scans for the audio
	// service and picks a device, optionally filtered by Name.
	Address string

	// Name filters scan results by advertised local name. Matching is
	// case-insensitive on a prefix basis, so "Omi" matches "Omi DevKit 2".
	Name string

	// ScanTimeout bounds a single discovery scan. Default 10 seconds.
	ScanTimeout time.Duration
}

// BLESource streams audio packets from the wearable. It owns the full
// connection lifecycle: discovery, characteristic subscription, disconnect
// detection, and reconnection with capped exponential backoff. Packets are
// delivered to the handler on the adapter's notification goroutine.
type BLESource struct {
	adapter Adapter
	cfg     BLEConfig
	handler PacketHandler

	status     StatusFunc
	backoffMax time.Duration
}

var _ Source = (*BLESource)(nil)

// BLEOption configures a [BLESource].
type BLEOption func(*BLESource)

// WithStatus registers a status callback for connection state updates.
func WithStatus(fn StatusFunc) BLEOption {
	return func(s *BLESource) { s.status = fn }
}

// WithBackoffMax caps the reconnect backoff. Default 30 seconds.
func WithBackoffMax(d time.Duration) BLEOption {
	return func(s *BLESource) {
		if d > 0 {
			s.backoffMax = d
		}
	}
}

// NewBLESource creates a BLE audio source delivering packets to handler.
func NewBLESource(adapter Adapter, cfg BLEConfig, handler PacketHandler, opts ...BLEOption) *BLESource {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = defaultScanTimeout
	}
	s := &BLESource{
		adapter:    adapter,
		cfg:        cfg,
		handler:    handler,
		status:     func(string) {},
		backoffMax: defaultBackoffMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run connects to the wearable and streams packets until ctx is cancelled.
// Connection failures and disconnects are retried indefinitely; only adapter
// enablement failure is fatal, since without a powered adapter no retry can
// succeed.
func (s *BLESource) Run(ctx context.Context) error {
	if err := s.adapter.Enable(); err != nil {
		return err
	}

	address := s.cfg.Address
	backoff := defaultBackoffInitial

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if address == "" {
			found, err := s.locate(ctx)
			if err != nil {
				slog.Warn("ble: device discovery failed", "error", err)
				s.status("scanning")
				if err := sleepCtx(ctx, backoff); err != nil {
					return err
				}
				backoff = nextBackoff(backoff, s.backoffMax)
				continue
			}
			address = found.Address
			slog.Info("ble: device discovered", "name", found.Name, "address", found.Address, "rssi", found.RSSI)
		}

		dropped, err := s.session(ctx, address)
		if err != nil {
			slog.Warn("ble: connection attempt failed", "address", address, "error", err)
			s.status("reconnecting")
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.backoffMax)
			continue
		}

		s.status("connected")
		slog.Info("ble: connected", "address", address)
		backoff = defaultBackoffInitial

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-dropped:
			s.status("disconnected")
			slog.Warn("ble: disconnected", "address", address)
		}
	}
}

// session connects to address, subscribes to the audio characteristic, and
// returns a channel that closes when the connection drops.
func (s *BLESource) session(ctx context.Context, address string) (<-chan struct{}, error) {
	conn, err := s.adapter.Connect(ctx, address)
	if err != nil {
		return nil, err
	}

	char, err := conn.DiscoverCharacteristic(ServiceUUID, AudioCharUUID)
	if err != nil {
		conn.Disconnect()
		return nil, err
	}

	dropped := make(chan struct{})
	var once sync.Once
	conn.OnDisconnect(func() {
		once.Do(func() { close(dropped) })
	})

	if err := char.Subscribe(s.handler); err != nil {
		conn.Disconnect()
		return nil, fmt.Errorf("ble: subscribe audio characteristic: %w", err)
	}

	// Tear the connection down when the pipeline stops.
	go func() {
		select {
		case <-ctx.Done():
			conn.Disconnect()
		case <-dropped:
		}
	}()

	return dropped, nil
}

// locate scans for the audio service and returns the first matching device.
func (s *BLESource) locate(ctx context.Context) (Peripheral, error) {
	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()

	found, err := s.adapter.Scan(scanCtx, ServiceUUID)
	if err != nil {
		return Peripheral{}, err
	}
	for _, p := range found {
		if s.cfg.Name == "" || strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(s.cfg.Name)) {
			return p, nil
		}
	}
	return Peripheral{}, fmt.Errorf("ble: no matching device found (%d seen)", len(found))
}

// nextBackoff doubles the delay up to max.
func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
