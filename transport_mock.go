package dht20

import (
	"context"
)

// WriteBlockBehaviorFunc defines the behavior of a mock block write.
type WriteBlockBehaviorFunc func(ctx context.Context, address byte, register byte, data []byte) error

// ReadBlockBehaviorFunc defines the behavior of a mock block read.
type ReadBlockBehaviorFunc func(ctx context.Context, address byte, register byte, length byte) ([]byte, error)

// MockTransport is a mock implementation of BusTransport that uses behavior
// functions to produce results without requiring any hardware.
//
// Example usage:
//
//	trans := NewMockTransport(
//		func(ctx context.Context, addr, reg byte, data []byte) error { return nil },
//		func(ctx context.Context, addr, reg byte, length byte) ([]byte, error) {
//			return make([]byte, length), nil
//		},
//	)
type MockTransport struct {
	writeBehavior WriteBlockBehaviorFunc
	readBehavior  ReadBlockBehaviorFunc
	closeCalls    int
}

// NewMockTransport creates a new mock transport with the given behavior
// functions. A nil behavior makes the corresponding primitive a no-op
// returning zeroed data.
func NewMockTransport(write WriteBlockBehaviorFunc, read ReadBlockBehaviorFunc) *MockTransport {
	return &MockTransport{writeBehavior: write, readBehavior: read}
}

func (m *MockTransport) WriteBlock(ctx context.Context, address byte, register byte, data []byte) error {
	if m.writeBehavior == nil {
		return nil
	}
	return m.writeBehavior(ctx, address, register, data)
}

func (m *MockTransport) ReadBlock(ctx context.Context, address byte, register byte, length byte) ([]byte, error) {
	if m.readBehavior == nil {
		return make([]byte, length), nil
	}
	return m.readBehavior(ctx, address, register, length)
}

// Close counts invocations so tests can assert idempotency.
func (m *MockTransport) Close() error {
	m.closeCalls++
	return nil
}

// CloseCalls returns the number of times Close has been called.
func (m *MockTransport) CloseCalls() int {
	return m.closeCalls
}
