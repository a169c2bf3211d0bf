package i2c

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ianwhalen/dht20"
)

var _ dht20.BusTransport = &GenericBus{}

// GenericBus is a Linux i2cdev-backed transport. Block primitives are
// expressed as single Tx transactions with the register byte leading the
// payload.
type GenericBus struct {
	mx  sync.Mutex
	bus i2c.BusCloser
}

// Open initializes the host and opens the numbered i2cdev bus.
func Open(busNumber int) (*GenericBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	bus, err := i2creg.Open(strconv.Itoa(busNumber))
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %d: %w", busNumber, err)
	}
	return &GenericBus{bus: bus}, nil
}

func (b *GenericBus) WriteBlock(ctx context.Context, address byte, register byte, data []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return dht20.ErrBusNotInitialized
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, register)
	buf = append(buf, data...)
	if err := b.bus.Tx(uint16(address), buf, nil); err != nil {
		return fmt.Errorf("could not write block to %#x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) ReadBlock(ctx context.Context, address byte, register byte, length byte) ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return nil, dht20.ErrBusNotInitialized
	}
	out := make([]byte, length)
	if err := b.bus.Tx(uint16(address), []byte{register}, out); err != nil {
		return nil, fmt.Errorf("could not read block from %#x: %w", address, err)
	}
	return out, nil
}

// Close releases the bus. Safe to call more than once.
func (b *GenericBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	return err
}
