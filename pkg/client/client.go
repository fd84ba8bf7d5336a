package client

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/flow-io/flow-socket-go/pkg/event"
	"github.com/flow-io/flow-socket-go/pkg/log"
	"github.com/flow-io/flow-socket-go/pkg/transport"
)

// Default configuration.
const (
	DefaultHost   = "127.0.0.1"
	DefaultPort   = 7331
	DefaultStrict = true
)

// WarnAlreadyConnected is the warning emitted by a redundant Connect.
const WarnAlreadyConnected = "only one connection per client instance; end the current connection or create a new client"

// WriteCallback is notified once a write has been flushed to the socket, or
// has failed.
type WriteCallback = func(err error)

// Config configures a Client's collaborators.
type Config struct {
	// Factory creates transport handles. Defaults to a transport.Dialer
	// with default settings.
	Factory transport.Factory

	// Logger receives operational logging. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger captures lifecycle and data events (optional).
	ProtocolLogger log.Logger
}

// state is the client lifecycle state, as captured in protocol logs.
type state int

const (
	stateIdle state = iota
	stateConnecting
	stateConnected
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateConnecting:
		return "CONNECTING"
	case stateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Client is a single-connection TCP client.
//
// A Client is safe for concurrent use; transport signals arrive on their own
// goroutines.
type Client struct {
	emitter event.Emitter
	factory transport.Factory
	logger  *slog.Logger
	plog    log.Logger

	mu     sync.Mutex
	host   string
	port   int
	strict bool
	handle transport.Handle
	state  state
}

// New creates an idle client with the default configuration.
func New() *Client {
	return NewWithConfig(Config{})
}

// NewWithConfig creates an idle client using the given collaborators.
func NewWithConfig(config Config) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Factory == nil {
		config.Factory = transport.NewDialer(transport.Config{Logger: config.Logger})
	}

	return &Client{
		factory: config.Factory,
		logger:  config.Logger,
		plog:    config.ProtocolLogger,
		host:    DefaultHost,
		port:    DefaultPort,
		strict:  DefaultStrict,
	}
}

// Host returns the configured host.
func (c *Client) Host() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host
}

// SetHost sets the host used by the next Connect. v must be a string holding
// "localhost" or an IPv4/IPv6 literal.
func (c *Client) SetHost(v any) (*Client, error) {
	host, err := ValidateHost(v)
	if err != nil {
		return c, fmt.Errorf("SetHost: %w", err)
	}

	c.mu.Lock()
	c.host = host
	c.mu.Unlock()
	return c, nil
}

// Port returns the configured port.
func (c *Client) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

// SetPort sets the port used by the next Connect. v must be a finite number
// with an integral value that fits an int. The TCP port range is not checked
// here; an unusable port fails at connect time.
func (c *Client) SetPort(v any) (*Client, error) {
	port, err := portValue(v)
	if err != nil {
		return c, fmt.Errorf("SetPort: %w", err)
	}

	c.mu.Lock()
	c.port = port
	c.mu.Unlock()
	return c, nil
}

// Strict reports whether Write validates its arguments.
func (c *Client) Strict() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strict
}

// SetStrict enables or disables Write validation. v must be a bool.
func (c *Client) SetStrict(v any) (*Client, error) {
	strict, ok := v.(bool)
	if !ok {
		return c, fmt.Errorf("SetStrict: %w: got %T, want bool", ErrInvalidArgumentType, v)
	}

	c.mu.Lock()
	c.strict = strict
	c.mu.Unlock()
	return c, nil
}

// Status reports whether the client holds a connection, established or in
// progress.
func (c *Client) Status() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Connect starts connecting to the configured host and port and returns
// immediately. The outcome is reported by a connect or error event. If the
// client already holds a connection, Connect only emits a warning event.
func (c *Client) Connect() *Client {
	c.mu.Lock()
	if c.handle != nil {
		id := c.handle.ID()
		c.mu.Unlock()
		c.warn(id, WarnAlreadyConnected)
		return c
	}

	r := &relay{client: c}
	h := c.factory.NewHandle(r)
	r.handle = h
	r.remoteAddr = net.JoinHostPort(c.host, strconv.Itoa(c.port))
	c.handle = h
	c.state = stateConnecting
	host, port := c.host, c.port
	c.mu.Unlock()

	c.logger.Debug("connecting", "conn_id", h.ID(), "address", r.remoteAddr)
	c.captureState(h.ID(), stateIdle, stateConnecting, "")

	if err := h.Connect(host, port); err != nil {
		// The handle never started; report the failure the way an
		// asynchronous one would be.
		r.OnError(err)
		r.OnClose(true)
	}
	return c
}

// Write sends data on the connection. The optional callback is a
// func(error) notified once the data has been flushed to the socket.
//
// In strict mode Write fails with ErrNoConnection when idle, then with
// ErrInvalidArgumentType when data is not a string or the callback is not a
// func(error). Otherwise data is forwarded to the transport unchecked and a
// callback of another type is ignored.
func (c *Client) Write(data any, done ...any) (*Client, error) {
	c.mu.Lock()
	strict, h := c.strict, c.handle
	c.mu.Unlock()

	var callback WriteCallback
	if strict {
		if h == nil {
			return c, fmt.Errorf("Write: %w", ErrNoConnection)
		}
		if _, ok := data.(string); !ok {
			return c, fmt.Errorf("Write: %w: got %T, want string", ErrInvalidArgumentType, data)
		}
		if len(done) > 1 {
			return c, fmt.Errorf("Write: %w: got %d callbacks, want at most 1", ErrInvalidArgumentType, len(done))
		}
		if len(done) == 1 {
			cb, ok := asCallback(done[0])
			if !ok {
				return c, fmt.Errorf("Write: %w: callback is %T, want func(error)", ErrInvalidArgumentType, done[0])
			}
			callback = cb
		}
	} else {
		if len(done) > 0 {
			callback, _ = asCallback(done[0])
		}
		if h == nil {
			return c, fmt.Errorf("Write: %w", transport.ErrNotConnected)
		}
	}

	if err := h.Send(data, callback); err != nil {
		return c, fmt.Errorf("Write: %w", err)
	}

	if payload, ok := payloadBytes(data); ok {
		c.capture(log.Event{
			ConnectionID: h.ID(),
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryData,
			Data:         log.NewDataEvent(payload),
		})
	}
	return c, nil
}

// Stream returns the underlying transport handle for lower-level use, such
// as piping a reader into it with io.Copy. Writes through the handle bypass
// strict validation.
func (c *Client) Stream() (transport.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return nil, fmt.Errorf("Stream: %w", ErrNoConnection)
	}
	return c.handle, nil
}

// End closes the connection gracefully and returns the client to idle
// immediately; the close event follows once the socket is closed. End on an
// idle client does nothing.
func (c *Client) End() *Client {
	c.mu.Lock()
	h := c.handle
	if h == nil {
		c.mu.Unlock()
		c.logger.Debug("end without connection ignored")
		return c
	}
	old := c.state
	c.handle = nil
	c.state = stateIdle
	c.mu.Unlock()

	c.logger.Debug("ending connection", "conn_id", h.ID())
	c.captureState(h.ID(), old, stateIdle, "end")

	h.End()
	return c
}

// On registers l for events named name.
func (c *Client) On(name event.Name, l event.Listener) event.Subscription {
	return c.emitter.On(name, l)
}

// Once registers l for the next event named name only.
func (c *Client) Once(name event.Name, l event.Listener) event.Subscription {
	return c.emitter.Once(name, l)
}

// Off removes a listener. It reports whether one was removed.
func (c *Client) Off(sub event.Subscription) bool {
	return c.emitter.Off(sub)
}

// Emit delivers ev to the client's listeners and returns how many ran.
func (c *Client) Emit(ev event.Event) int {
	return c.emitter.Emit(ev)
}

// ListenerCount returns the number of listeners registered for name.
func (c *Client) ListenerCount(name event.Name) int {
	return c.emitter.ListenerCount(name)
}

func (c *Client) warn(connID, message string) {
	c.capture(log.Event{
		ConnectionID: connID,
		Layer:        log.LayerClient,
		Category:     log.CategoryWarning,
		Warning:      &log.WarningEvent{Message: message},
	})

	if c.emitter.Emit(event.Event{Name: event.Warning, ConnectionID: connID, Message: message}) == 0 {
		c.logger.Warn(message, "conn_id", connID)
	}
}

func (c *Client) capture(ev log.Event) {
	if c.plog == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	c.plog.Log(ev)
}

func (c *Client) captureState(connID string, from, to state, reason string) {
	c.capture(log.Event{
		ConnectionID: connID,
		Layer:        log.LayerClient,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

// relay forwards the signals of one handle to its client.
type relay struct {
	client     *Client
	handle     transport.Handle
	remoteAddr string
}

// currentLocked reports whether r's handle is still the client's handle.
// Signals from a handle the client has already let go of are forwarded as
// events but never touch client state. c.mu must be held.
func (r *relay) currentLocked() bool {
	return r.client.handle == r.handle
}

func (r *relay) OnConnect() {
	c := r.client
	id := r.handle.ID()

	c.mu.Lock()
	current := r.currentLocked()
	if current {
		c.state = stateConnected
	}
	c.mu.Unlock()

	if current {
		c.captureState(id, stateConnecting, stateConnected, "")
	}
	c.logger.Debug("connected", "conn_id", id, "address", r.remoteAddr)
	c.emitter.Emit(event.Event{Name: event.Connect, ConnectionID: id})
}

func (r *relay) OnData(data []byte) {
	c := r.client
	id := r.handle.ID()

	c.capture(log.Event{
		ConnectionID: id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryData,
		RemoteAddr:   r.remoteAddr,
		Data:         log.NewDataEvent(data),
	})
	c.emitter.Emit(event.Event{Name: event.Data, ConnectionID: id, Data: data})
}

func (r *relay) OnError(err error) {
	c := r.client
	id := r.handle.ID()

	c.capture(log.Event{
		ConnectionID: id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   r.remoteAddr,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
		},
	})

	if c.emitter.Emit(event.Event{Name: event.Error, ConnectionID: id, Err: err}) == 0 {
		c.logger.Warn("unhandled connection error", "conn_id", id, "address", r.remoteAddr, "error", err)
	}
}

func (r *relay) OnClose(hadError bool) {
	c := r.client
	id := r.handle.ID()

	// Release the handle before listeners run; a close listener may
	// connect again.
	c.mu.Lock()
	current := r.currentLocked()
	old := c.state
	if current {
		c.handle = nil
		c.state = stateIdle
	}
	c.mu.Unlock()

	if current {
		reason := "closed"
		if hadError {
			reason = "error"
		}
		c.captureState(id, old, stateIdle, reason)
	}
	c.logger.Debug("connection closed", "conn_id", id, "had_error", hadError)
	c.emitter.Emit(event.Event{Name: event.Close, ConnectionID: id, HadError: hadError})
}

// Compile-time interface satisfaction check.
var _ transport.Handler = (*relay)(nil)
