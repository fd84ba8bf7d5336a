package client

import "errors"

// Client errors. They are returned wrapped with the failing operation and
// should be matched with errors.Is.
var (
	// ErrInvalidArgumentType is returned when a setter or Write receives a
	// value of the wrong type.
	ErrInvalidArgumentType = errors.New("invalid argument type")

	// ErrInvalidHost is returned when a host is neither "localhost" nor an
	// IP address literal.
	ErrInvalidHost = errors.New("invalid host: must be an IP address or localhost")

	// ErrNoConnection is returned when an operation needs a connection and
	// the client has none.
	ErrNoConnection = errors.New("no connection")
)
