package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// mockCharacteristic delivers simulated notifications to the subscriber.
type mockCharacteristic struct {
	mu       sync.Mutex
	callback func([]byte)
}

func (c *mockCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

// SimulateNotification sends a notification to the subscriber.
func (c *mockCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// mockConnection simulates a BLE connection.
type mockConnection struct {
	mu           sync.Mutex
	audioChar    *mockCharacteristic
	disconnectCb func()
	disconnected bool
}

func newMockConnection() *mockConnection {
	return &mockConnection{audioChar: &mockCharacteristic{}}
}

func (c *mockConnection) DiscoverCharacteristic(_, charUUID string) (Characteristic, error) {
	if charUUID == AudioCharUUID {
		return c.audioChar, nil
	}
	return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
}

func (c *mockConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *mockConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback.
func (c *mockConnection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// mockAdapter simulates the BLE hardware adapter.
type mockAdapter struct {
	mu          sync.Mutex
	peripherals []Peripheral
	connection  *mockConnection
	connects    int

	// ConnectErr, when non-nil, fails every Connect call.
	ConnectErr error
}

func newMockAdapter(peripherals ...Peripheral) *mockAdapter {
	return &mockAdapter{peripherals: peripherals}
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(_ context.Context, _ string) ([]Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.peripherals) == 0 {
		return nil, errors.New("mock: no peripherals in range")
	}
	return a.peripherals, nil
}

func (a *mockAdapter) Connect(_ context.Context, _ string) (Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	if a.ConnectErr != nil {
		return nil, a.ConnectErr
	}
	a.connection = newMockConnection()
	return a.connection, nil
}

// latestConnection returns the most recently created connection.
func (a *mockAdapter) latestConnection() *mockConnection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connection
}

// connectCount returns how many Connect calls were made.
func (a *mockAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}
