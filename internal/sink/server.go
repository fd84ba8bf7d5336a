package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flow-io/flow-socket-go/pkg/log"
)

// DefaultAddress is the listen address used when Config.Address is empty.
const DefaultAddress = "127.0.0.1:7331"

// acceptedBacklog bounds the sessions buffered for NextSession.
const acceptedBacklog = 64

// ErrServerStopped is returned by waits on a stopped server.
var ErrServerStopped = errors.New("sink stopped")

// Config configures a sink server.
type Config struct {
	// Address to listen on (e.g. "127.0.0.1:0" for an ephemeral port).
	Address string

	// Logger receives operational logging. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger captures session events (optional).
	ProtocolLogger log.Logger

	// OnConnect is called when a session is accepted.
	OnConnect func(s *Session)

	// OnLine is called for each newline-terminated line, without the
	// terminator. A trailing partial line is reported when the session ends.
	OnLine func(s *Session, line string)

	// OnDisconnect is called when a session has ended.
	OnDisconnect func(s *Session)

	// OnError is called for accept and read errors. s is nil for accept
	// errors.
	OnError func(s *Session, err error)
}

// Server is a line sink TCP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	listener net.Listener

	sessions   map[*Session]struct{}
	sessionsMu sync.RWMutex
	accepted   chan *Session

	// Total bytes received across sessions, in arrival order.
	dataMu      sync.Mutex
	data        bytes.Buffer
	dataChanged chan struct{}

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a sink server.
func NewServer(config Config) *Server {
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		config:      config,
		logger:      config.Logger,
		sessions:    make(map[*Session]struct{}),
		accepted:    make(chan *Session, acceptedBacklog),
		dataChanged: make(chan struct{}),
	}
}

// Start listens on the configured address and begins accepting sessions.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("sink already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.logger.Debug("sink listening", "addr", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and every session, and waits for them to exit.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	s.cancel()
	s.listener.Close()

	s.sessionsMu.Lock()
	for sess := range s.sessions {
		sess.Close()
	}
	s.sessionsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Port returns the listen port, or 0 before Start.
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// SessionCount returns the number of active sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// Received returns a copy of all bytes received so far.
func (s *Server) Received() []byte {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return bytes.Clone(s.data.Bytes())
}

// WaitForData blocks until at least n bytes have been received in total and
// returns them. The server must have been started.
func (s *Server) WaitForData(ctx context.Context, n int) ([]byte, error) {
	for {
		s.dataMu.Lock()
		if s.data.Len() >= n {
			data := bytes.Clone(s.data.Bytes())
			s.dataMu.Unlock()
			return data, nil
		}
		changed := s.dataChanged
		s.dataMu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Received(), ctx.Err()
		case <-s.ctx.Done():
			return s.Received(), ErrServerStopped
		}
	}
}

// NextSession returns the next accepted session, in accept order.
func (s *Server) NextSession(ctx context.Context) (*Session, error) {
	select {
	case sess := <-s.accepted:
		return sess, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, ErrServerStopped
	}
}

func (s *Server) record(data []byte) {
	s.dataMu.Lock()
	s.data.Write(data)
	close(s.dataChanged)
	s.dataChanged = make(chan struct{})
	s.dataMu.Unlock()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.logger.Warn("accept failed", "error", err)
				if s.config.OnError != nil {
					s.config.OnError(nil, fmt.Errorf("accept: %w", err))
				}
				// Avoid spinning on persistent accept failures.
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	sess := &Session{
		id:         uuid.New().String(),
		conn:       conn,
		server:     s,
		remoteAddr: conn.RemoteAddr(),
		done:       make(chan struct{}),
	}
	sess.logger = s.logger.With("session_id", sess.id, "remote_addr", sess.remoteAddr.String())

	s.sessionsMu.Lock()
	if !s.running.Load() {
		s.sessionsMu.Unlock()
		conn.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.sessionsMu.Unlock()

	sess.logger.Debug("session started")
	sess.captureState("", "CONNECTED")

	select {
	case s.accepted <- sess:
	default:
		sess.logger.Debug("accept backlog full, session not queued")
	}

	if s.config.OnConnect != nil {
		s.config.OnConnect(sess)
	}

	sess.readLoop()
	sess.Close()

	s.sessionsMu.Lock()
	delete(s.sessions, sess)
	s.sessionsMu.Unlock()

	sess.captureState("CONNECTED", "DISCONNECTED")
	sess.logger.Debug("session ended", "bytes", len(sess.Received()))

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sess)
	}
	close(sess.done)
}

// Session is one accepted client connection.
type Session struct {
	id         string
	conn       net.Conn
	server     *Server
	remoteAddr net.Addr
	logger     *slog.Logger

	mu       sync.Mutex
	received bytes.Buffer

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the client address.
func (s *Session) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// Received returns a copy of the bytes received on this session.
func (s *Session) Received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.received.Bytes())
}

// Done is closed once the session has ended and OnDisconnect has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send writes data to the client.
func (s *Session) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write(data); err != nil {
		return err
	}
	s.capture(log.DirectionOut, data)
	return nil
}

// Close closes the session.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *Session) readLoop() {
	config := s.server.config
	buf := make([]byte, 32*1024)
	var partial strings.Builder

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			s.mu.Lock()
			s.received.Write(chunk)
			s.mu.Unlock()
			s.server.record(chunk)
			s.capture(log.DirectionIn, chunk)

			if config.OnLine != nil {
				partial.Write(chunk)
				pending := partial.String()
				for {
					i := strings.IndexByte(pending, '\n')
					if i < 0 {
						break
					}
					config.OnLine(s, strings.TrimSuffix(pending[:i], "\r"))
					pending = pending[i+1:]
				}
				partial.Reset()
				partial.WriteString(pending)
			}
		}
		if err == nil {
			continue
		}

		if config.OnLine != nil && partial.Len() > 0 {
			config.OnLine(s, partial.String())
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("read failed", "error", err)
			if config.OnError != nil {
				config.OnError(s, err)
			}
		}
		return
	}
}

func (s *Session) capture(direction log.Direction, data []byte) {
	if s.server.config.ProtocolLogger == nil {
		return
	}
	s.server.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryData,
		RemoteAddr:   s.remoteAddr.String(),
		Data:         log.NewDataEvent(data),
	})
}

func (s *Session) captureState(oldState, newState string) {
	if s.server.config.ProtocolLogger == nil {
		return
	}
	s.server.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   s.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState,
		},
	})
}
