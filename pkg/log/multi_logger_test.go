package log

import (
	"sync"
	"testing"
	"time"
)

// recordingLogger records events for testing.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	loggers := []*recordingLogger{{}, {}, {}}
	multi := NewMultiLogger(loggers[0], loggers[1], loggers[2])

	multi.Log(Event{Timestamp: time.Now(), ConnectionID: "conn-123"})

	for i, l := range loggers {
		if len(l.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(l.events))
			continue
		}
		if l.events[0].ConnectionID != "conn-123" {
			t.Errorf("logger %d: ConnectionID = %q, want %q", i, l.events[0].ConnectionID, "conn-123")
		}
	}
}

func TestMultiLoggerSkipsNil(t *testing.T) {
	rec := &recordingLogger{}
	multi := NewMultiLogger(nil, rec, NoopLogger{})

	multi.Log(Event{Timestamp: time.Now()})

	if len(rec.events) != 1 {
		t.Errorf("got %d events, want 1", len(rec.events))
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	NewMultiLogger().Log(Event{Timestamp: time.Now()})
}

func TestMultiLoggerFlattensNested(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	inner := NewMultiLogger(a, b)
	multi := NewMultiLogger(inner, nil)
	multi.Add(multi)

	if multi.Len() != 2 {
		t.Fatalf("Len = %d, want 2", multi.Len())
	}

	multi.Log(Event{Timestamp: time.Now()})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events delivered = %d, %d, want 1, 1", len(a.events), len(b.events))
	}
}

func TestMultiLoggerAdd(t *testing.T) {
	first, second := &recordingLogger{}, &recordingLogger{}
	multi := NewMultiLogger(first)

	multi.Log(Event{ConnectionID: "before"})
	multi.Add(second)
	multi.Add(NoopLogger{})
	multi.Log(Event{ConnectionID: "after"})

	if len(first.events) != 2 {
		t.Errorf("first logger got %d events, want 2", len(first.events))
	}
	if len(second.events) != 1 || second.events[0].ConnectionID != "after" {
		t.Errorf("second logger events = %v, want only the event logged after Add", second.events)
	}
	if multi.Len() != 2 {
		t.Errorf("Len = %d, want 2", multi.Len())
	}
}
