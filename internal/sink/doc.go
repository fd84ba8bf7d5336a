// Package sink implements a line sink: a plain TCP server that accepts flow
// client connections, records every byte it receives and reports complete
// lines to a callback.
//
// A session ends when the peer finishes sending (half-close or close); the
// sink then closes its side, which completes the client's graceful end.
// The sink backs the flow-sink command and the end-to-end tests of the
// client package.
package sink
