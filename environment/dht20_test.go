package environment

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBusTransport is a mock implementation of dht20.BusTransport using
// testify/mock. It records the order of bus transactions so tests can assert
// the write/wait/read sequence.
type MockBusTransport struct {
	mock.Mock
	transactions []string
}

func (m *MockBusTransport) WriteBlock(ctx context.Context, address byte, register byte, data []byte) error {
	m.transactions = append(m.transactions, fmt.Sprintf("write %#x %#x %s", address, register, hex.EncodeToString(data)))
	args := m.Called(ctx, address, register, data)
	return args.Error(0)
}

func (m *MockBusTransport) ReadBlock(ctx context.Context, address byte, register byte, length byte) ([]byte, error) {
	m.transactions = append(m.transactions, fmt.Sprintf("read %#x %#x %d", address, register, length))
	args := m.Called(ctx, address, register, length)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBusTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

// encodeFrame packs 20-bit raw humidity and temperature values into the
// 7-byte measurement frame layout.
func encodeFrame(humRaw, tempRaw uint32) []byte {
	return []byte{
		0x1C,
		byte(humRaw >> 12),
		byte(humRaw >> 4),
		byte(humRaw&0x0F)<<4 | byte(tempRaw>>16)&0x0F,
		byte(tempRaw >> 8),
		byte(tempRaw),
		0x00,
	}
}

func TestDHT20_DecodeTemperature(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float64
	}{
		{encodeFrame(0, 0x00000), -50.0},
		{encodeFrame(0, 0xFFFFF), 149.99980926513672},
		{encodeFrame(0, 0x80000), 50.0},
		{[]byte{0, 0, 0, 0x19, 0x99, 0x99, 0}, 69.99988555908203},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.InDelta(t, test.expected, decodeTemperature(test.given), 1e-9)
		})
	}
}

func TestDHT20_DecodeHumidity(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float64
	}{
		{encodeFrame(0x00000, 0), 0.0},
		{encodeFrame(0xFFFFF, 0), 99.99990463256836},
		{encodeFrame(0x80000, 0), 50.0},
		{[]byte{0, 0, 0, 0x19, 0x99, 0x99, 0}, 9.5367431640625e-05},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.InDelta(t, test.expected, decodeHumidity(test.given), 1e-9)
		})
	}
}

func TestDHT20_RawRoundTrip(t *testing.T) {
	for raw := uint32(0); raw < 1<<20; raw++ {
		frame := encodeFrame(raw, raw)
		tempRaw := uint32(math.Round((decodeTemperature(frame) + 50.0) * (1 << 20) / 200.0))
		if tempRaw != raw {
			t.Fatalf("temperature raw round trip failed: %d != %d", tempRaw, raw)
		}
		humRaw := uint32(math.Round(decodeHumidity(frame) * (1 << 20) / 100.0))
		if humRaw != raw {
			t.Fatalf("humidity raw round trip failed: %d != %d", humRaw, raw)
		}
	}
}

func TestDHT20_GetReading(t *testing.T) {
	trans := &MockBusTransport{}
	trans.On("WriteBlock", mock.Anything, byte(0x38), byte(0xAC), []byte{0x33, 0x00}).Return(nil)
	trans.On("ReadBlock", mock.Anything, byte(0x38), byte(0x71), byte(7)).
		Return([]byte{0, 0, 0, 0x19, 0x99, 0x99, 0}, nil)

	s := NewDHT20(trans, WithMeasureDelay(0))
	r, err := s.GetReading(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 69.99988555908203, r.TemperatureCelsius, 1e-9)
	assert.InDelta(t, 9.5367431640625e-05, r.HumidityPercent, 1e-9)

	// measure command must hit the bus before the frame read
	assert.Equal(t, []string{
		"write 0x38 0xac 3300",
		"read 0x38 0x71 7",
	}, trans.transactions)
	trans.AssertExpectations(t)
}

func TestDHT20_GetReading_WriteError(t *testing.T) {
	trans := &MockBusTransport{}
	trans.On("WriteBlock", mock.Anything, byte(0x38), byte(0xAC), []byte{0x33, 0x00}).
		Return(errors.New("bus write failed"))

	s := NewDHT20(trans, WithMeasureDelay(0))
	_, err := s.GetReading(context.Background())
	assert.ErrorContains(t, err, "could not write measure command")
	// no read may be attempted after a failed command write
	trans.AssertNotCalled(t, "ReadBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDHT20_GetReading_ReadError(t *testing.T) {
	trans := &MockBusTransport{}
	trans.On("WriteBlock", mock.Anything, byte(0x38), byte(0xAC), []byte{0x33, 0x00}).Return(nil)
	trans.On("ReadBlock", mock.Anything, byte(0x38), byte(0x71), byte(7)).
		Return(nil, errors.New("bus read failed"))

	s := NewDHT20(trans, WithMeasureDelay(0))
	_, err := s.GetReading(context.Background())
	assert.ErrorContains(t, err, "could not read measurement frame")
}

func TestDHT20_GetReading_OutOfRangeIsReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	trans := &MockBusTransport{}
	trans.On("WriteBlock", mock.Anything, byte(0x38), byte(0xAC), []byte{0x33, 0x00}).Return(nil)
	trans.On("ReadBlock", mock.Anything, byte(0x38), byte(0x71), byte(7)).
		Return(encodeFrame(0, 0xFFFFF), nil)

	s := NewDHT20(trans, WithMeasureDelay(0), WithLogger(logger))
	r, err := s.GetReading(context.Background())
	assert.NoError(t, err)
	// out-of-range values are logged but never clamped or discarded
	assert.InDelta(t, 149.99980926513672, r.TemperatureCelsius, 1e-9)
	assert.Contains(t, buf.String(), "temperature outside rated range")
}

func TestDHT20_GetRawData(t *testing.T) {
	frame := []byte{0x1C, 0x6E, 0x14, 0x85, 0xB9, 0x10, 0xAA}
	trans := &MockBusTransport{}
	trans.On("WriteBlock", mock.Anything, byte(0x38), byte(0xAC), []byte{0x33, 0x00}).Return(nil)
	trans.On("ReadBlock", mock.Anything, byte(0x38), byte(0x71), byte(7)).Return(frame, nil)

	s := NewDHT20(trans, WithMeasureDelay(0))
	raw, err := s.GetRawData(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, frame, raw)
	trans.AssertExpectations(t)
}

func TestDHT20_CheckPresence_SoftStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	trans := &MockBusTransport{}
	trans.On("ReadBlock", mock.Anything, byte(0x38), byte(0x71), byte(1)).
		Return([]byte{0x00}, nil)

	s := NewDHT20(trans, WithStabilizeDelay(0), WithLogger(logger))
	err := s.CheckPresence(context.Background())
	// the status byte is a soft check only: even 0x00 succeeds, and nothing
	// is reported above debug level
	assert.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestDHT20_CheckPresence_StatusOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	trans := &MockBusTransport{}
	trans.On("ReadBlock", mock.Anything, byte(0x38), byte(0x71), byte(1)).
		Return([]byte{0x18}, nil)

	s := NewDHT20(trans, WithStabilizeDelay(0), WithLogger(logger))
	err := s.CheckPresence(context.Background())
	assert.NoError(t, err)
	assert.NotContains(t, buf.String(), "indicates error")
}

func TestDHT20_CheckPresence_TransportError(t *testing.T) {
	trans := &MockBusTransport{}
	trans.On("ReadBlock", mock.Anything, byte(0x38), byte(0x71), byte(1)).
		Return(nil, errors.New("remote I/O error"))

	s := NewDHT20(trans, WithStabilizeDelay(0))
	err := s.CheckPresence(context.Background())
	assert.ErrorIs(t, err, ErrNotResponding)
	assert.ErrorContains(t, err, "remote I/O error")
}

func TestDHT20_Reset(t *testing.T) {
	trans := &MockBusTransport{}
	trans.On("WriteBlock", mock.Anything, byte(0x38), byte(0xBA), []byte(nil)).Return(nil)

	s := NewDHT20(trans)
	err := s.Reset(context.Background())
	assert.NoError(t, err)
	trans.AssertExpectations(t)
}
