package log

import (
	"errors"
	"os"
	"sync"
)

// FileLogger appends events to a capture file.
// It is safe for concurrent use.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	encoder *Encoder
	dropped int
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644 if
// needed.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		path:    path,
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Path returns the capture file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Log appends an event. Events that cannot be written are counted as
// dropped; capture never reports errors back to the connection.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
	}
}

// Count returns the number of events written since the file was opened.
func (l *FileLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.encoder.Count()
}

// Dropped returns the number of events that failed to write.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close flushes the capture file to disk and closes it. Later Log calls
// are ignored and later Close calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Join(l.file.Sync(), l.file.Close())
}

var _ Logger = (*FileLogger)(nil)
