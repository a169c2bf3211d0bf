package i2c

import (
	"context"
	"fmt"
	"sync"

	gi2c "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/ianwhalen/dht20"
)

var _ dht20.BusTransport = &GobotBus{}

// GobotBus adapts a gobot i2c connector (board adaptor) to the BusTransport
// capability. Gobot connections are bound to a device address, so one
// connection is kept per address seen.
type GobotBus struct {
	mx      sync.Mutex
	adaptor gi2c.Connector
	bus     int
	conns   map[byte]gi2c.Connection
	closed  bool
}

// OpenGobot wraps an already-connected gobot adaptor. The adaptor's
// Connect/Finalize lifecycle stays with the caller; Close only releases the
// per-device connections created here.
func OpenGobot(adaptor gi2c.Connector, busNumber int) *GobotBus {
	return &GobotBus{adaptor: adaptor, bus: busNumber, conns: map[byte]gi2c.Connection{}}
}

func (b *GobotBus) WriteBlock(ctx context.Context, address byte, register byte, data []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	if err = conn.WriteBlockData(register, data); err != nil {
		return fmt.Errorf("could not write block to %#x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) ReadBlock(ctx context.Context, address byte, register byte, length byte) ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if err = conn.ReadBlockData(register, out); err != nil {
		return nil, fmt.Errorf("could not read block from %#x: %w", address, err)
	}
	return out, nil
}

// Close releases all device connections. Safe to call more than once.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var firstErr error
	for addr, conn := range b.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("could not close connection to %#x: %w", addr, err)
		}
	}
	b.conns = nil
	return firstErr
}

func (b *GobotBus) connection(address byte) (gi2c.Connection, error) {
	if b.closed {
		return nil, dht20.ErrBusNotInitialized
	}
	if conn, ok := b.conns[address]; ok {
		return conn, nil
	}
	conn, err := b.adaptor.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return nil, fmt.Errorf("could not connect to device %#x on bus %d: %w", address, b.bus, err)
	}
	b.conns[address] = conn
	return conn, nil
}
