package transport

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTransport records calls through testify and delivers whatever is
// written to FramesChan.
type MockTransport struct {
	mock.Mock
	FramesChan chan []byte
}

func NewMockTransport(buffer int) *MockTransport {
	return &MockTransport{FramesChan: make(chan []byte, buffer)}
}

func (m *MockTransport) Connect(ctx context.Context, endpoint string) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}
func (m *MockTransport) Disconnect() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockTransport) Send(msg []byte) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockTransport) Frames() <-chan []byte {
	return m.FramesChan
}
