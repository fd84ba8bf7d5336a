// Package transport provides the raw TCP handle consumed by the flow client.
//
// A Handle owns exactly one TCP socket for its whole life:
//   - Connect starts an asynchronous dial and returns immediately
//   - Send queues a payload; a writer goroutine flushes queued payloads in
//     order and reports completion through the optional callback
//   - a reader goroutine forwards received bytes as they arrive
//   - End flushes queued writes, half-closes the socket and waits for the
//     peer to finish (bounded by Config.CloseTimeout)
//   - Destroy closes the socket immediately
//
// # Signals
//
// Lifecycle changes are reported to the Handler passed at construction.
// Signals from one handle are causally ordered:
//
//	OnConnect ─▶ OnData* ─▶ [OnError] ─▶ OnClose
//
// OnClose fires exactly once per handle, after the reader and writer have
// exited. OnError, when present, always precedes it and OnClose then reports
// hadError=true. Handler methods run on transport goroutines and must not
// block for long.
//
// # Handle states
//
//	DISCONNECTED ─Connect─▶ CONNECTING ─dial ok─▶ CONNECTED ─End─▶ CLOSING ─▶ CLOSED
//	                            │                                    ▲
//	                            └──────── dial failed / End ─────────┘
//
// A handle is single-use: once CLOSED it cannot be connected again.
package transport
