// Package client provides Client, a reusable single-connection TCP client.
//
// A Client owns its configuration (host, port, strict mode) and at most one
// transport handle at a time. Connect dials in the background and returns
// immediately; the outcome arrives as a connect or error event. Write
// queues data on the handle, optionally validating it first, and End closes
// the connection gracefully. After any close the client is idle again and
// may connect anew.
//
// # Events
//
// Lifecycle signals from the transport are re-emitted unchanged as client
// events (see package event):
//
//	connect  the TCP handshake succeeded
//	data     bytes arrived from the peer
//	error    the transport failed; Event.Err carries the cause verbatim
//	close    the handle closed; Event.HadError reports an error-caused close
//	warning  Connect was called while a connection already exists
//
// Listeners run on transport goroutines and may call back into the client.
//
// # Strict mode
//
// With strict mode on (the default), Write requires an active connection, a
// string payload and, if given, a func(error) completion callback. With
// strict mode off, Write forwards whatever it is given and any failure comes
// from the transport.
package client
