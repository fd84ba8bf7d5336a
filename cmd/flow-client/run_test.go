package main

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flow-io/flow-socket-go/internal/sink"
	"github.com/flow-io/flow-socket-go/pkg/client"
)

func startSink(t *testing.T) *sink.Server {
	t.Helper()
	srv := sink.NewServer(sink.Config{Address: "127.0.0.1:0"})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func clientFor(t *testing.T, port int) *client.Client {
	t.Helper()
	c := client.New()
	_, err := c.SetPort(port)
	require.NoError(t, err)
	return c
}

func TestDemoLine(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	line, err := demoLine(now, 0.5)
	require.NoError(t, err)
	assert.Equal(t, `{"value":[1700000000123,0.5]}`+"\n", line)
}

func TestRunDemo(t *testing.T) {
	srv := startSink(t)
	c := clientFor(t, srv.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, runDemo(ctx, c, 3, time.Millisecond))
	assert.False(t, c.Status())

	sess, err := srv.NextSession(ctx)
	require.NoError(t, err)
	<-sess.Done()

	lines := strings.Split(strings.TrimSuffix(string(sess.Received()), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var v struct {
			Value []float64 `json:"value"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &v))
		assert.Len(t, v.Value, 2)
	}
}

func TestRunPipe(t *testing.T) {
	srv := startSink(t)
	c := clientFor(t, srv.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	input := strings.Repeat("line\n", 50)
	require.NoError(t, runPipe(ctx, c, strings.NewReader(input)))

	got, err := srv.WaitForData(ctx, len(input))
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}

func TestRunDemoConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	c := clientFor(t, port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = runDemo(ctx, c, 1, time.Millisecond)
	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
}
