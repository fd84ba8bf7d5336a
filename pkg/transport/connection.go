package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Connection states.
type ConnectionState int

const (
	// StateDisconnected indicates a handle that has not connected yet.
	StateDisconnected ConnectionState = iota

	// StateConnecting indicates the dial is in progress.
	StateConnecting

	// StateConnected indicates an established connection.
	StateConnected

	// StateClosing indicates graceful or forced close in progress.
	StateClosing

	// StateClosed indicates the handle is done. It cannot be reused.
	StateClosed
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrUnsupportedPayload = errors.New("unsupported payload type")
)

// Defaults applied to zero Config fields.
const (
	DefaultConnectTimeout  = 30 * time.Second
	DefaultCloseTimeout    = 5 * time.Second
	DefaultKeepAlivePeriod = 30 * time.Second
	DefaultReadBufferSize  = 64 * 1024
)

// Config configures a TCP handle.
type Config struct {
	// ConnectTimeout bounds the dial (default: 30s).
	ConnectTimeout time.Duration

	// CloseTimeout bounds End: queued writes must drain and the peer must
	// close its side within it, otherwise the socket is closed forcibly
	// (default: 5s).
	CloseTimeout time.Duration

	// KeepAlive is the TCP keep-alive period (default: 30s).
	// A negative value disables keep-alive probes.
	KeepAlive time.Duration

	// Nagle enables Nagle's algorithm. Go disables it on TCP sockets by
	// default, which is what a line-oriented stream wants.
	Nagle bool

	// WriteTimeout bounds each socket write (0 = no timeout).
	WriteTimeout time.Duration

	// ReadBufferSize is the size of the read buffer (default: 64KB).
	ReadBufferSize int

	// Logger receives debug logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default handle configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		CloseTimeout:   DefaultCloseTimeout,
		KeepAlive:      DefaultKeepAlivePeriod,
		ReadBufferSize: DefaultReadBufferSize,
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = DefaultKeepAlivePeriod
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type writeRequest struct {
	data []byte
	// done runs on the callback goroutine; result is answered directly.
	done   func(error)
	result chan<- error
}

// Conn is a TCP Handle.
type Conn struct {
	config  Config
	handler Handler
	id      string
	logger  *slog.Logger

	state atomic.Int32

	// Guarded by mu. State transitions out of DISCONNECTED and CONNECTING
	// also happen under mu.
	mu          sync.Mutex
	conn        net.Conn
	cancel      context.CancelFunc
	aborted     bool
	ending      bool
	writeClosed bool
	peerEnded   bool
	queue       []writeRequest
	writing     bool
	abandoned   []writeRequest
	closeTimer  *time.Timer

	// Write callbacks run in order on their own goroutine, never on the
	// writer, so a callback may issue a blocking Write.
	callbacks     []func()
	callbacksOn   bool
	callbacksDone bool
	callbackWake  chan struct{}
	callbackExit  chan struct{}

	wake      chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	loops     sync.WaitGroup
}

// NewConn creates a new handle (not yet connected).
func NewConn(config Config, handler Handler) *Conn {
	config = config.withDefaults()

	c := &Conn{
		config:  config,
		handler: handler,
		id:      uuid.New().String(),
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),

		callbackWake: make(chan struct{}, 1),
		callbackExit: make(chan struct{}),
	}
	c.logger = config.Logger.With("conn_id", c.id)
	c.state.Store(int32(StateDisconnected))

	return c
}

// ID returns the unique connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current connection state.
func (c *Conn) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Connect starts dialing host:port in the background.
func (c *Conn) Connect(host string, port int) error {
	c.mu.Lock()
	if c.State() != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	c.cancel = cancel
	c.state.Store(int32(StateConnecting))
	c.callbacksOn = true
	c.mu.Unlock()

	go c.callbackLoop()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	c.logger.Debug("connecting", "address", address)

	go c.dial(ctx, cancel, address)
	return nil
}

func (c *Conn) dial(ctx context.Context, cancel context.CancelFunc, address string) {
	defer cancel()

	dialer := &net.Dialer{KeepAlive: c.config.KeepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", address)

	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		c.logger.Debug("connect aborted", "address", address)
		c.finish(nil)
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("connect failed", "address", address, "error", err)
		c.finish(err)
		return
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok && c.config.Nagle {
		if err := tcpConn.SetNoDelay(false); err != nil {
			c.logger.Debug("failed to enable Nagle's algorithm", "error", err)
		}
	}

	c.conn = conn
	c.loops.Add(2)
	c.state.Store(int32(StateConnected))
	c.mu.Unlock()

	c.logger.Debug("connected", "local_addr", conn.LocalAddr(), "remote_addr", conn.RemoteAddr())

	// The writer runs before OnConnect so that a blocking Write issued from
	// the connect callback can complete.
	go c.writeLoop(conn)
	c.handler.OnConnect()
	go c.readLoop(conn)
}

// Send queues data for writing. data must be a string or a []byte. done,
// if set, runs after the payload was flushed or failed.
func (c *Conn) Send(data any, done func(error)) error {
	payload, err := encodePayload(data)
	if err != nil {
		return err
	}
	return c.enqueue(writeRequest{data: payload, done: done})
}

func (c *Conn) enqueue(req writeRequest) error {
	c.mu.Lock()
	switch c.State() {
	case StateDisconnected:
		c.mu.Unlock()
		return ErrNotConnected
	case StateClosing, StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.queue = append(c.queue, req)
	c.mu.Unlock()

	c.signalWriter()
	return nil
}

// Write writes p and waits until it has been flushed to the socket.
func (c *Conn) Write(p []byte) (int, error) {
	payload, err := encodePayload(p)
	if err != nil {
		return 0, err
	}
	result := make(chan error, 1)
	if err := c.enqueue(writeRequest{data: payload, result: result}); err != nil {
		return 0, err
	}
	if err := <-result; err != nil {
		return 0, err
	}
	return len(p), nil
}

// End closes the connection gracefully: queued writes are flushed, the
// write side is shut down and the socket closes once the peer has finished.
// If that takes longer than CloseTimeout the socket is closed forcibly and
// unflushed writes fail. During the connecting phase End aborts the dial.
func (c *Conn) End() {
	c.mu.Lock()
	switch c.State() {
	case StateDisconnected:
		c.mu.Unlock()
		c.finish(nil)
	case StateConnecting:
		c.abortLocked()
		c.mu.Unlock()
	case StateConnected:
		c.ending = true
		c.state.Store(int32(StateClosing))
		c.closeTimer = time.AfterFunc(c.config.CloseTimeout, func() {
			c.logger.Debug("close timeout", "unflushed", c.queued())
			c.finish(nil)
		})
		c.mu.Unlock()
		c.signalWriter()
	default:
		c.mu.Unlock()
	}
}

// Destroy closes the connection immediately. Queued writes fail with
// ErrConnectionClosed.
func (c *Conn) Destroy() {
	c.mu.Lock()
	if c.State() == StateConnecting {
		c.abortLocked()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.finish(nil)
}

func (c *Conn) abortLocked() {
	c.aborted = true
	if c.cancel != nil {
		c.cancel()
	}
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.RemoteAddr()
	}
	return nil
}

func (c *Conn) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Conn) signalWriter() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// readLoop forwards received bytes until the peer closes or the socket fails.
func (c *Conn) readLoop(conn net.Conn) {
	defer c.loops.Done()

	buf := make([]byte, c.config.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.handler.OnData(data)
		}
		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			// Peer finished sending. Finish our side too; half-open
			// connections are not kept.
			c.mu.Lock()
			c.peerEnded = true
			writeClosed := c.writeClosed
			c.mu.Unlock()

			if writeClosed {
				c.finish(nil)
			} else {
				c.End()
			}
			return
		}

		select {
		case <-c.closeCh:
			// Closed locally; the read error is expected.
		default:
			c.finish(err)
		}
		return
	}
}

// writeLoop flushes queued writes in order.
func (c *Conn) writeLoop(conn net.Conn) {
	defer c.loops.Done()

	for {
		select {
		case <-c.closeCh:
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				ending := c.ending
				c.mu.Unlock()
				if ending {
					c.halfClose(conn)
					return
				}
				break
			}
			req := c.queue[0]
			c.queue = c.queue[1:]
			c.writing = true
			c.mu.Unlock()

			if c.config.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			}
			_, err := conn.Write(req.data)

			c.mu.Lock()
			c.writing = false
			c.resolveLocked(req, err)
			for _, r := range c.abandoned {
				c.resolveLocked(r, ErrConnectionClosed)
			}
			c.abandoned = nil
			c.mu.Unlock()

			if err != nil {
				select {
				case <-c.closeCh:
				default:
					c.finish(err)
				}
				return
			}
		}
	}
}

// halfClose shuts down the write side once the queue is drained.
func (c *Conn) halfClose(conn net.Conn) {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok || cw.CloseWrite() != nil {
		c.finish(nil)
		return
	}

	c.mu.Lock()
	c.writeClosed = true
	peerEnded := c.peerEnded
	c.mu.Unlock()

	if peerEnded {
		c.finish(nil)
	}
}

// finish tears the connection down once. err is the cause, nil for a clean
// close. Signals are delivered from a separate goroutine after the reader
// and writer have exited.
func (c *Conn) finish(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state.Store(int32(StateClosing))
		conn := c.conn
		if c.closeTimer != nil {
			c.closeTimer.Stop()
		}
		// Queued writes fail now. A write in flight keeps its place in
		// the callback order: the writer fails the rest after it.
		pending := c.queue
		c.queue = nil
		if c.writing {
			c.abandoned = pending
		} else {
			for _, req := range pending {
				c.resolveLocked(req, ErrConnectionClosed)
			}
		}
		c.mu.Unlock()

		close(c.closeCh)
		if conn != nil {
			conn.Close()
		}

		go c.complete(err)
	})
}

func (c *Conn) complete(err error) {
	c.loops.Wait()

	c.mu.Lock()
	for _, req := range append(c.abandoned, c.queue...) {
		c.resolveLocked(req, ErrConnectionClosed)
	}
	c.abandoned, c.queue = nil, nil
	c.callbacksDone = true
	started := c.callbacksOn
	c.mu.Unlock()

	// Every write callback runs before OnClose.
	if started {
		c.wakeCallbacks()
		<-c.callbackExit
	}

	c.state.Store(int32(StateClosed))

	if err != nil {
		c.logger.Debug("connection failed", "error", err)
		c.handler.OnError(err)
	}
	c.logger.Debug("connection closed", "had_error", err != nil)
	c.handler.OnClose(err != nil)
}

// resolveLocked reports the outcome of req. c.mu must be held.
func (c *Conn) resolveLocked(req writeRequest, err error) {
	if req.result != nil {
		req.result <- err
	}
	if req.done != nil {
		done := req.done
		c.callbacks = append(c.callbacks, func() { done(err) })
		c.wakeCallbacks()
	}
}

func (c *Conn) wakeCallbacks() {
	select {
	case c.callbackWake <- struct{}{}:
	default:
	}
}

// callbackLoop runs write callbacks in order until complete has drained
// them.
func (c *Conn) callbackLoop() {
	defer close(c.callbackExit)

	for {
		c.mu.Lock()
		for len(c.callbacks) == 0 && !c.callbacksDone {
			c.mu.Unlock()
			<-c.callbackWake
			c.mu.Lock()
		}
		if len(c.callbacks) == 0 {
			c.mu.Unlock()
			return
		}
		fn := c.callbacks[0]
		c.callbacks = c.callbacks[1:]
		c.mu.Unlock()

		fn()
	}
}
