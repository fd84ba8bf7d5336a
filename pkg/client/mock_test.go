package client

import (
	"net"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/flow-io/flow-socket-go/pkg/transport"
)

// mockHandle is a transport handle whose signals are driven by the test.
type mockHandle struct {
	mock.Mock
	id string

	mu      sync.Mutex
	handler transport.Handler
}

func newMockHandle(id string) *mockHandle {
	return &mockHandle{id: id}
}

func (h *mockHandle) ID() string                        { return h.id }
func (h *mockHandle) State() transport.ConnectionState { return transport.StateConnected }
func (h *mockHandle) LocalAddr() net.Addr              { return nil }
func (h *mockHandle) RemoteAddr() net.Addr             { return nil }

func (h *mockHandle) Write(p []byte) (int, error) {
	args := h.Called(p)
	return args.Int(0), args.Error(1)
}

func (h *mockHandle) Connect(host string, port int) error {
	args := h.Called(host, port)
	return args.Error(0)
}

func (h *mockHandle) Send(data any, done func(error)) error {
	args := h.Called(data, done)
	return args.Error(0)
}

func (h *mockHandle) End()     { h.Called() }
func (h *mockHandle) Destroy() { h.Called() }

func (h *mockHandle) signals() transport.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handler
}

// stubFactory hands out prepared mock handles.
type stubFactory struct {
	mock.Mock
}

func (f *stubFactory) NewHandle(handler transport.Handler) transport.Handle {
	args := f.Called(handler)
	h := args.Get(0).(*mockHandle)
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
	return h
}

// expectHandle makes the next NewHandle return a handle that accepts
// Connect to any address.
func (f *stubFactory) expectHandle(id string) *mockHandle {
	h := newMockHandle(id)
	h.On("Connect", mock.Anything, mock.Anything).Return(nil)
	f.On("NewHandle", mock.Anything).Return(h).Once()
	return h
}

var (
	_ transport.Handle  = (*mockHandle)(nil)
	_ transport.Factory = (*stubFactory)(nil)
)
