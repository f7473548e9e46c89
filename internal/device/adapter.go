package device

import "context"

// Omi wearable GATT UUIDs.
const (
	// ServiceUUID identifies the wearable's audio service.
	ServiceUUID = "19b10000-e8f2-537e-4f6c-d104768a1214"

	// AudioCharUUID is the characteristic that notifies audio packets.
	AudioCharUUID = "19b10001-e8f2-537e-4f6c-d104768a1214"
)

// Peripheral describes a discovered BLE device.
type Peripheral struct {
	Name    string
	Address string
	RSSI    int
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Subscribe registers a callback for notifications on this
	// characteristic.
	Subscribe(callback func(data []byte)) error
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers peripherals advertising the given service UUID until
	// ctx is cancelled.
	Scan(ctx context.Context, serviceUUID string) ([]Peripheral, error)
	// Connect establishes a connection to the peripheral at the given
	// address.
	Connect(ctx context.Context, address string) (Connection, error)
}
