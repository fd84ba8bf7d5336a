package log

import "sync"

// MultiLogger fans events out to several loggers, in the order they were
// added.
type MultiLogger struct {
	mu      sync.RWMutex
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger over loggers. See Add for which
// loggers are kept.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		m.Add(l)
	}
	return m
}

// Add appends a logger. Nil loggers and NoopLogger are dropped, and a
// MultiLogger is flattened into its members so each event is delivered
// once per sink.
func (m *MultiLogger) Add(l Logger) {
	switch v := l.(type) {
	case nil, NoopLogger, *NoopLogger:
		return
	case *MultiLogger:
		if v == nil || v == m {
			return
		}
		v.mu.RLock()
		members := append([]Logger(nil), v.loggers...)
		v.mu.RUnlock()
		for _, member := range members {
			m.Add(member)
		}
		return
	}

	m.mu.Lock()
	m.loggers = append(m.loggers, l)
	m.mu.Unlock()
}

// Len returns the number of loggers events are sent to.
func (m *MultiLogger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.loggers)
}

// Log sends the event to every logger.
func (m *MultiLogger) Log(event Event) {
	m.mu.RLock()
	loggers := m.loggers
	m.mu.RUnlock()

	for _, l := range loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
