package component

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ianwhalen/dht20"
	"github.com/ianwhalen/dht20/environment"
	"github.com/ianwhalen/dht20/i2c"
)

// State describes the component lifecycle. The bus handle only exists in
// StateReady; reading while unconfigured or failed is rejected up front.
type State int

const (
	StateUnconfigured State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unconfigured"
	}
}

// OpenBus opens a transport for the given bus number. The host may inject
// its own bus access through WithOpenBus; the default opens a Linux i2cdev
// bus.
type OpenBus func(busNumber int) (dht20.BusTransport, error)

// Geometry describes a spatial extent. The DHT-20 has none; the type exists
// only so GetGeometries can conform to the host's sensor surface.
type Geometry struct {
	Label string
}

type Option func(*Sensor)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sensor) {
		s.log = logger
	}
}

func WithOpenBus(open OpenBus) Option {
	return func(s *Sensor) {
		s.openBus = open
	}
}

// WithProbeOptions forwards options to the underlying driver. Intended for
// tests that shorten the fixed sensor delays.
func WithProbeOptions(opts ...environment.DHT20Opt) Option {
	return func(s *Sensor) {
		s.probeOpts = opts
	}
}

// Sensor is the host-facing DHT-20 component. It owns at most one open bus
// transport at a time and serializes every bus transaction behind a mutex:
// the underlying protocol is a request/response exchange with fixed timing
// windows, so concurrent host calls queue rather than interleave.
type Sensor struct {
	mx        sync.Mutex
	log       *slog.Logger
	openBus   OpenBus
	probeOpts []environment.DHT20Opt

	state     State
	busNumber int
	transport dht20.BusTransport
	probe     *environment.DHT20
}

// New creates the component and applies the initial configuration. On
// failure the returned sensor is still usable: it sits in StateFailed until
// the host reconfigures it successfully.
func New(ctx context.Context, cfg Config, opts ...Option) (*Sensor, error) {
	s := &Sensor{
		log: slog.Default(),
		openBus: func(busNumber int) (dht20.BusTransport, error) {
			return i2c.Open(busNumber)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, s.Reconfigure(ctx, cfg)
}

// Reconfigure applies a new configuration. The previous transport, if any,
// is closed before a new one is opened, in that order, even when the new
// open fails. A validation error leaves the current state untouched. After
// the bus opens, the sensor presence check runs once; its failure closes the
// fresh transport again and leaves the component in StateFailed.
func (s *Sensor) Reconfigure(ctx context.Context, cfg Config) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.closeTransport()
	s.state = StateUnconfigured
	s.busNumber = cfg.Bus()
	trans, err := s.openBus(s.busNumber)
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("could not open i2c bus %d: %w", s.busNumber, err)
	}
	s.transport = trans
	s.probe = environment.NewDHT20(trans, append([]environment.DHT20Opt{environment.WithLogger(s.log)}, s.probeOpts...)...)
	if err = s.probe.CheckPresence(ctx); err != nil {
		s.closeTransport()
		s.state = StateFailed
		return err
	}
	s.state = StateReady
	s.log.Info("dht20 initialized", "bus", s.busNumber)
	return nil
}

// GetReadings performs a fresh measurement and returns it as a readings map.
// A failed measurement is a hard failure of the call; there is no fallback
// or cached value.
func (s *Sensor) GetReadings(ctx context.Context) (map[string]interface{}, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != StateReady {
		return nil, dht20.ErrBusNotInitialized
	}
	r, err := s.probe.GetReading(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"temperature_celsius": r.TemperatureCelsius,
		"humidity_percent":    r.HumidityPercent,
	}, nil
}

// DoCommand routes the diagnostic operations. Unlike the reading path, this
// layer never propagates a failure: every outcome, including an unknown
// command name, is delivered as a result map.
func (s *Sensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	name, _ := cmd["command"].(string)
	switch name {
	case "get_status":
		if s.state != StateReady {
			return map[string]interface{}{"status": "error", "error": dht20.ErrBusNotInitialized.Error()}, nil
		}
		if err := s.probe.CheckPresence(ctx); err != nil {
			return map[string]interface{}{"status": "error", "error": err.Error()}, nil
		}
		return map[string]interface{}{"status": "ok", "bus": s.busNumber}, nil
	case "get_raw_data":
		if s.state != StateReady {
			return map[string]interface{}{"error": dht20.ErrBusNotInitialized.Error()}, nil
		}
		raw, err := s.probe.GetRawData(ctx)
		if err != nil {
			return map[string]interface{}{"error": err.Error()}, nil
		}
		return map[string]interface{}{"raw_data": hex.EncodeToString(raw)}, nil
	default:
		return map[string]interface{}{"error": fmt.Sprintf("Unknown command: %s", name)}, nil
	}
}

// GetGeometries reports the sensor's spatial extent, which is empty.
func (s *Sensor) GetGeometries(ctx context.Context) ([]Geometry, error) {
	return []Geometry{}, nil
}

// Close releases the bus transport. Safe to call repeatedly and on a sensor
// that never opened one.
func (s *Sensor) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.closeTransport()
	s.state = StateUnconfigured
	return nil
}

// State returns the current lifecycle state.
func (s *Sensor) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

func (s *Sensor) closeTransport() {
	if s.transport == nil {
		return
	}
	if err := s.transport.Close(); err != nil {
		s.log.Warn("error closing i2c bus", "bus", s.busNumber, "error", err)
	}
	s.transport = nil
	s.probe = nil
}
