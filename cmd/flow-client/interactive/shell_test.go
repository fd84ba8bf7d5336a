package interactive

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flow-io/flow-socket-go/internal/sink"
	"github.com/flow-io/flow-socket-go/pkg/client"
	"github.com/flow-io/flow-socket-go/pkg/event"
)

// syncBuffer is a bytes.Buffer safe for the client's event goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestShell(t *testing.T) (*Shell, *client.Client, *syncBuffer) {
	t.Helper()
	c := client.New()
	out := &syncBuffer{}
	s := newShell(c, out)
	t.Cleanup(s.Close)
	return s, c, out
}

func TestShellSettings(t *testing.T) {
	s, c, out := newTestShell(t)

	assert.True(t, s.Execute(".host 10.0.0.5"))
	assert.True(t, s.Execute(".port 9000"))
	assert.True(t, s.Execute(".strict off"))
	assert.True(t, s.Execute(".status"))

	assert.Equal(t, "10.0.0.5", c.Host())
	assert.Equal(t, 9000, c.Port())
	assert.False(t, c.Strict())
	assert.Contains(t, out.String(), "disconnected (10.0.0.5:9000, strict=false)")
}

func TestShellRejectsInvalidSettings(t *testing.T) {
	s, c, out := newTestShell(t)

	s.Execute(".host example.com")
	s.Execute(".port abc")
	s.Execute(".strict maybe")

	assert.Equal(t, client.DefaultHost, c.Host())
	assert.Equal(t, client.DefaultPort, c.Port())
	assert.True(t, c.Strict())
	assert.Equal(t, 3, strings.Count(out.String(), "Error:"))
}

func TestShellWriteWithoutConnection(t *testing.T) {
	s, _, out := newTestShell(t)

	s.Execute("hello")
	assert.Contains(t, out.String(), "write failed")
	assert.Contains(t, out.String(), client.ErrNoConnection.Error())
}

func TestShellUnknownCommand(t *testing.T) {
	s, _, out := newTestShell(t)

	assert.True(t, s.Execute(".bogus"))
	assert.True(t, s.Execute("   "))
	assert.Contains(t, out.String(), "Unknown command: .bogus")
}

func TestShellSession(t *testing.T) {
	srv := sink.NewServer(sink.Config{Address: "127.0.0.1:0"})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })

	s, c, out := newTestShell(t)
	connected := make(chan struct{}, 1)
	closed := make(chan struct{}, 1)
	c.On(event.Connect, func(event.Event) { connected <- struct{}{} })
	c.On(event.Close, func(event.Event) { closed <- struct{}{} })

	s.Execute(".port " + strings.TrimPrefix(srv.Addr().String(), "127.0.0.1:"))
	s.Execute(".connect")
	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	s.Execute("hello")
	s.Execute(".status")
	assert.False(t, s.Execute(".quit"))

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := srv.WaitForData(ctx, len("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))

	assert.Contains(t, out.String(), "connected to 127.0.0.1:")
	assert.Contains(t, out.String(), "connected (127.0.0.1:")
	assert.Contains(t, out.String(), "connection closed")
}
