package interfaces

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDevice mocks the Device interface for tests.
type MockDevice struct {
	mock.Mock
}

// OpenConnect mocks the OpenConnect method
func (m *MockDevice) OpenConnect(ctx context.Context, req OpenRequest) (SessionHandle, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(SessionHandle), args.Error(1)
}

// GetKey mocks the GetKey method
func (m *MockDevice) GetKey(ctx context.Context, handle SessionHandle, id KeyID) (KeyID, []byte, error) {
	args := m.Called(ctx, handle, id)
	var key []byte
	if args.Get(1) != nil {
		key = args.Get(1).([]byte)
	}
	return args.Get(0).(KeyID), key, args.Error(2)
}

// Close mocks the Close method
func (m *MockDevice) Close(ctx context.Context, handle SessionHandle) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}
