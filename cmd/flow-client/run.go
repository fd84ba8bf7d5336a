package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/flow-io/flow-socket-go/pkg/client"
	"github.com/flow-io/flow-socket-go/pkg/event"
)

// session tracks one connection attempt until its close event.
type session struct {
	closed chan struct{}

	mu      sync.Mutex
	lastErr error
	runErr  error
}

// fail records an error of the connected-side work.
func (s *session) fail(err error) {
	s.mu.Lock()
	s.runErr = err
	s.mu.Unlock()
}

// watch subscribes to c's lifecycle. onConnect runs in its own goroutine.
func watch(c *client.Client, onConnect func()) (*session, func()) {
	s := &session{closed: make(chan struct{})}

	subs := []event.Subscription{
		c.Once(event.Connect, func(event.Event) { go onConnect() }),
		c.On(event.Error, func(ev event.Event) {
			s.mu.Lock()
			s.lastErr = ev.Err
			s.mu.Unlock()
		}),
		c.Once(event.Close, func(event.Event) { close(s.closed) }),
	}

	return s, func() {
		for _, sub := range subs {
			c.Off(sub)
		}
	}
}

// wait blocks until the connection closed, ending it early on ctx
// cancellation. Work errors win over connection errors; a write that lost
// its connection reports the connection error instead.
func (s *session) wait(ctx context.Context, c *client.Client) error {
	select {
	case <-s.closed:
	case <-ctx.Done():
		c.End()
		<-s.closed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runErr != nil && !errors.Is(s.runErr, client.ErrNoConnection) {
		return s.runErr
	}
	return s.lastErr
}

// demoLine renders one demo value as a JSON line.
func demoLine(now time.Time, v float64) (string, error) {
	b, err := json.Marshal(map[string][]any{"value": {now.UnixMilli(), v}})
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// runDemo connects and writes count demo values, one per interval.
func runDemo(ctx context.Context, c *client.Client, count int, interval time.Duration) error {
	var s *session
	s, stop := watch(c, func() {
		defer c.End()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; i < count; i++ {
			line, err := demoLine(time.Now(), rand.Float64())
			if err != nil {
				s.fail(err)
				return
			}
			if _, err := c.Write(line); err != nil {
				s.fail(err)
				return
			}
			if i == count-1 {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	})
	defer stop()

	c.Connect()
	return s.wait(ctx, c)
}

// runPipe connects and copies r to the connection until EOF.
func runPipe(ctx context.Context, c *client.Client, r io.Reader) error {
	var s *session
	s, stop := watch(c, func() {
		defer c.End()

		stream, err := c.Stream()
		if err != nil {
			s.fail(err)
			return
		}
		if _, err := io.Copy(stream, r); err != nil {
			s.fail(fmt.Errorf("copy: %w", err))
		}
	})
	defer stop()

	c.Connect()
	return s.wait(ctx, c)
}
