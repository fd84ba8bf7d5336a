package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flow-io/flow-socket-go/internal/sink"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSinkConfigPrintsLines(t *testing.T) {
	*listen = "127.0.0.1:0"
	out := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := sink.NewServer(sinkConfig(logger, out))
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("first\r\nsecond\npartial"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, err := srv.NextSession(ctx)
	require.NoError(t, err)
	<-sess.Done()

	id := shortID(sess.ID())
	assert.Equal(t, "["+id+"] first\n["+id+"] second\n["+id+"] partial\n", out.String())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
}
