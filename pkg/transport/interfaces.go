package transport

import (
	"io"
	"net"
)

// Handle is a single-use connection to a remote TCP endpoint.
// Implemented by Conn.
type Handle interface {
	// Writer writes p and blocks until it has been flushed to the socket.
	// It lets callers pipe data into the handle with io.Copy.
	io.Writer

	// ID returns the unique connection identifier.
	ID() string

	// State returns the current handle state.
	State() ConnectionState

	// Connect starts connecting to host:port and returns immediately.
	// Completion is reported through Handler.OnConnect or Handler.OnError.
	Connect(host string, port int) error

	// Send queues data for writing. done, if non-nil, is called once the
	// data has been written to the socket or the write has failed.
	Send(data any, done func(error)) error

	// End flushes queued writes and closes the connection gracefully.
	// During the connecting phase it aborts the dial.
	End()

	// Destroy closes the connection immediately, dropping queued writes.
	Destroy()

	// LocalAddr returns the local network address, or nil if not connected.
	LocalAddr() net.Addr

	// RemoteAddr returns the remote network address, or nil if not connected.
	RemoteAddr() net.Addr
}

// Handler receives handle signals.
type Handler interface {
	// OnConnect is called when the TCP handshake succeeds.
	OnConnect()

	// OnData is called with each chunk of bytes received from the peer.
	OnData(data []byte)

	// OnError is called when the handle fails. OnClose follows.
	OnError(err error)

	// OnClose is called once the handle is fully closed.
	OnClose(hadError bool)
}

// Factory creates handles.
// Implemented by Dialer.
type Factory interface {
	// NewHandle creates an unconnected handle reporting to handler.
	NewHandle(handler Handler) Handle
}

// Compile-time interface satisfaction checks.
var (
	_ Handle  = (*Conn)(nil)
	_ Factory = (*Dialer)(nil)
)
