package environment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ianwhalen/dht20"
)

// DHT-20 I2C address (7-bit), fixed by the device
const dht20Address = 0x38

// Command map (per datasheet)
const (
	dht20CmdStatus  byte = 0x71
	dht20CmdMeasure byte = 0xAC
	dht20CmdReset   byte = 0xBA
)

// Parameter bytes following the measure command on the wire
var dht20MeasureParams = []byte{0x33, 0x00}

// Status byte bit definitions:
// Bit 7: BUSY (1 = measurement in progress)
// Bit 3: CAL (1 = calibration/initialization done)
const statusBitInitialized = 0x08

// A measurement transaction always returns 7 bytes:
// status, humidity[19:12], humidity[11:4], humidity[3:0]|temp[19:16],
// temp[15:8], temp[7:0], CRC
const rawFrameLen = 7

const (
	// power-on stabilization before the init-status read
	dht20StabilizeDelay = 500 * time.Millisecond
	// conversion time between the measure command and the result read;
	// a fixed wait, the device is not polled
	dht20MeasureDelay = 100 * time.Millisecond
	dht20ResetDelay   = 20 * time.Millisecond
)

var ErrNotResponding = fmt.Errorf("dht20: sensor not responding")

// Reading is a single decoded measurement. Produced fresh from a bus
// transaction on every call; never cached.
type Reading struct {
	TemperatureCelsius float64
	HumidityPercent    float64
}

type DHT20Opts struct {
	StabilizeDelay time.Duration
	MeasureDelay   time.Duration
	Logger         *slog.Logger
}

type DHT20Opt func(*DHT20Opts)

// WithStabilizeDelay overrides the power-on stabilization wait. Intended for
// tests; the hardware needs the full default.
func WithStabilizeDelay(delay time.Duration) DHT20Opt {
	return func(o *DHT20Opts) {
		o.StabilizeDelay = delay
	}
}

// WithMeasureDelay overrides the conversion wait. Intended for tests.
func WithMeasureDelay(delay time.Duration) DHT20Opt {
	return func(o *DHT20Opts) {
		o.MeasureDelay = delay
	}
}

func WithLogger(logger *slog.Logger) DHT20Opt {
	return func(o *DHT20Opts) {
		o.Logger = logger
	}
}

// DHT20 represents an Aosong DHT-20 temperature/humidity sensor.
// Typical usage:
//
//	s := NewDHT20(trans)
//	r, err := s.GetReading(ctx)
//
// The driver issues one transaction at a time against the transport; callers
// invoking it concurrently must serialize access themselves.
type DHT20 struct {
	transport dht20.BusTransport
	config    DHT20Opts
}

func NewDHT20(trans dht20.BusTransport, opts ...DHT20Opt) *DHT20 {
	config := DHT20Opts{
		StabilizeDelay: dht20StabilizeDelay,
		MeasureDelay:   dht20MeasureDelay,
		Logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &DHT20{transport: trans, config: config}
}

// CheckPresence reads the initialization-status register and verifies the
// sensor answers at its fixed address. The status byte itself is a soft
// check: an unexpected value logs a warning but does not fail, as some
// sensors report it wrong and still measure fine. Only a transport error is
// fatal and surfaces as ErrNotResponding.
func (s *DHT20) CheckPresence(ctx context.Context) error {
	// allow the sensor to stabilize after power-on
	time.Sleep(s.config.StabilizeDelay)
	data, err := s.transport.ReadBlock(ctx, dht20Address, dht20CmdStatus, 1)
	if err != nil {
		return fmt.Errorf("%w at address 0x%02x: %w", ErrNotResponding, dht20Address, err)
	}
	if (data[0] | statusBitInitialized) == 0 {
		s.config.Logger.Warn("dht20 initialization status indicates error", "status", data[0])
	} else {
		s.config.Logger.Debug("dht20 initialization check passed", "status", data[0])
	}
	return nil
}

// GetReading performs a single measurement and returns the decoded
// temperature and humidity. Values outside the rated range (-40..80C,
// 0..100%RH) are logged but returned as decoded; the driver never clamps or
// discards a reading.
func (s *DHT20) GetReading(ctx context.Context) (Reading, error) {
	frame, err := s.readFrame(ctx)
	if err != nil {
		return Reading{}, err
	}
	r := Reading{
		TemperatureCelsius: decodeTemperature(frame),
		HumidityPercent:    decodeHumidity(frame),
	}
	if r.TemperatureCelsius < -40.0 || r.TemperatureCelsius > 80.0 {
		s.config.Logger.Warn("dht20 temperature outside rated range", "celsius", r.TemperatureCelsius)
	}
	if r.HumidityPercent < 0.0 || r.HumidityPercent > 100.0 {
		s.config.Logger.Warn("dht20 humidity outside rated range", "percent", r.HumidityPercent)
	}
	return r, nil
}

// GetRawData performs a measurement transaction and returns the raw 7-byte
// frame without decoding it.
func (s *DHT20) GetRawData(ctx context.Context) ([]byte, error) {
	return s.readFrame(ctx)
}

func (s *DHT20) readFrame(ctx context.Context) ([]byte, error) {
	err := s.transport.WriteBlock(ctx, dht20Address, dht20CmdMeasure, dht20MeasureParams)
	if err != nil {
		return nil, fmt.Errorf("dht20: could not write measure command: %w", err)
	}
	// conversion is physically in progress, the result cannot be fetched
	// earlier
	time.Sleep(s.config.MeasureDelay)
	// the chip returns the last conversion result regardless of the register
	// byte; the status register address is reused here
	frame, err := s.transport.ReadBlock(ctx, dht20Address, dht20CmdStatus, rawFrameLen)
	if err != nil {
		return nil, fmt.Errorf("dht20: could not read measurement frame: %w", err)
	}
	return frame, nil
}

// Reset issues the soft reset command and waits for the device to restart.
// Diagnostic operation, not part of the normal measurement path.
func (s *DHT20) Reset(ctx context.Context) error {
	err := s.transport.WriteBlock(ctx, dht20Address, dht20CmdReset, nil)
	if err != nil {
		return fmt.Errorf("dht20: could not write reset command: %w", err)
	}
	time.Sleep(dht20ResetDelay)
	return nil
}

// Conversion formulas from datasheet:
// T(C) = 200 * raw / 2^20 - 50
// RH(%) = 100 * raw / 2^20
// where raw is a 20-bit value spread over frame bytes 1..5.

func decodeTemperature(frame []byte) float64 {
	raw := uint32(frame[3]&0x0F)<<16 | uint32(frame[4])<<8 | uint32(frame[5])
	return 200.0*float64(raw)/(1<<20) - 50.0
}

func decodeHumidity(frame []byte) float64 {
	raw := uint32(frame[3]&0xF0)>>4 | uint32(frame[1])<<12 | uint32(frame[2])<<4
	return 100.0 * float64(raw) / (1 << 20)
}
