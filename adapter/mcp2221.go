package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/ianwhalen/dht20"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

var ErrAdapterBusy = errors.New("I2C engine is busy (command not completed)")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

var _ dht20.BusTransport = &MCP2221{}

// MCP2221 drives a Microchip MCP2221/MCP2221A USB-to-I2C bridge over USB-HID
// and exposes it as a BusTransport. Useful for development machines without
// a native /dev/i2c-* bus. Requests and responses are fixed 64-byte HID
// reports; the device is opened per exchange.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	closed       bool
}

type Status struct {
	I2CDataBufferCounter   int
	I2CSpeedDivider        int
	I2CTimeout             int
	CurrentAddress         string
	LastWriteRequestedSize uint16
	LastWriteSentSize      uint16
	ReadPending            int
}

func NewMCP2221() *MCP2221 {
	return &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 50 * time.Millisecond,
	}
}

// Init verifies the bridge is reachable over USB.
func (d *MCP2221) Init() error {
	if len(hid.Enumerate(VendorID, ProductID)) == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// WriteBlock sends the register byte followed by data in one I2C write
// transaction (HID command 0x90).
func (d *MCP2221) WriteBlock(ctx context.Context, address byte, register byte, data []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return dht20.ErrBusNotInitialized
	}
	return d.writeBlock(ctx, address, register, data)
}

func (d *MCP2221) writeBlock(ctx context.Context, address byte, register byte, data []byte) error {
	d.resetBuffers()
	d.request[0] = 0x90
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(data)+1))
	d.request[3] = address << 1
	d.request[4] = register
	copy(d.request[5:], data)
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		return ErrAdapterBusy
	}
	return nil
}

// ReadBlock selects the register with a plain write, then issues an I2C read
// (HID command 0x91) and fetches the data from the engine (0x40).
func (d *MCP2221) ReadBlock(ctx context.Context, address byte, register byte, length byte) ([]byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return nil, dht20.ErrBusNotInitialized
	}
	if err := d.writeBlock(ctx, address, register, nil); err != nil {
		return nil, err
	}
	d.resetBuffers()
	d.request[0] = 0x91
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(length))
	d.request[3] = address<<1 + 1
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("bus read from %#x failed: %w", address, err)
	}
	d.request[0] = 0x40
	resetBuffer(d.response)
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return nil, fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 || d.response[3] != length {
		return nil, fmt.Errorf("invalid data size byte; expected %d, got %d", length, d.response[3])
	}
	out := make([]byte, length)
	copy(out, d.response[4:])
	return out, nil
}

// Close cancels any pending transfer and marks the adapter unusable. Safe to
// call more than once; there is no persistent USB handle to release.
func (d *MCP2221) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	// best effort bus release
	if _, err := d.releaseBus(context.Background()); err != nil {
		slog.Debug("mcp2221 bus release failed", "error", err)
	}
	return nil
}

// GetStatus queries the I2C engine state (HID command 0x10).
func (d *MCP2221) GetStatus(ctx context.Context) (*Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return nil, dht20.ErrBusNotInitialized
	}
	d.resetBuffers()
	d.request[0] = 0x10
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) releaseBus(ctx context.Context) (*Status, error) {
	d.resetBuffers()
	d.request[0] = 0x10
	d.request[2] = 0x10
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("cancel request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *Status {
	/*
		9,10:  requested I2C transfer length (16-bit LE)
		11,12: already transferred bytes (16-bit LE)
		13:    internal I2C data buffer counter
		14:    current I2C communication speed divider
		15:    current I2C timeout value
		16,17: I2C address being used (16-bit LE)
		25:    pending read count
	*/
	status := &Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) send(ctx context.Context) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return ErrDeviceNotFound
	}
	if len(devs) > 1 {
		return fmt.Errorf("ambiguous device identification")
	}
	dev, err := devs[0].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		_ = dev.Close()
	}()
	slog.Debug("sending message to adapter", "request", hex.EncodeToString(d.request))
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	time.Sleep(d.responseWait)
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	slog.Debug("read message from adapter", "response", hex.EncodeToString(d.response))
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
