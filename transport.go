package dht20

import (
	"context"
	"fmt"
)

// ErrBusNotInitialized is returned by driver entry points invoked before a
// bus has been successfully opened (or after opening failed).
var ErrBusNotInitialized = fmt.Errorf("I2C bus not initialized")

// BusTransport is the bus access capability the driver consumes. It is
// supplied by the host (or by one of the transports in i2c/ and adapter/);
// the driver never opens hardware itself beyond asking for "bus number N".
//
// Both primitives address a single device register in one transaction:
// WriteBlock sends the register byte followed by data, ReadBlock selects the
// register and reads length bytes back.
type BusTransport interface {
	WriteBlock(ctx context.Context, address byte, register byte, data []byte) error
	ReadBlock(ctx context.Context, address byte, register byte, length byte) ([]byte, error)
	// Close releases the underlying bus. It is idempotent and must tolerate
	// being called on an already-closed transport.
	Close() error
}
