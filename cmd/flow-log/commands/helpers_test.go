package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flow-io/flow-socket-go/pkg/log"
)

const testConnID = "abc12345-6789-0123-4567-890abcdef012"

var testTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

// createTestLogFile writes events to a new capture file and returns its path.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.flog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

// sessionEvents is a typical capture of one client session.
func sessionEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: testTime, ConnectionID: testConnID, Layer: log.LayerClient, Category: log.CategoryState,
			RemoteAddr: "127.0.0.1:7331", StateChange: &log.StateChangeEvent{OldState: "IDLE", NewState: "CONNECTING"},
		},
		{
			Timestamp: testTime.Add(time.Millisecond), ConnectionID: testConnID, Layer: log.LayerClient, Category: log.CategoryState,
			RemoteAddr: "127.0.0.1:7331", StateChange: &log.StateChangeEvent{OldState: "CONNECTING", NewState: "CONNECTED"},
		},
		{
			Timestamp: testTime.Add(2 * time.Millisecond), ConnectionID: testConnID, Direction: log.DirectionOut,
			Layer: log.LayerTransport, Category: log.CategoryData, Data: log.NewDataEvent([]byte("beep\n")),
		},
		{
			Timestamp: testTime.Add(3 * time.Millisecond), ConnectionID: testConnID, Direction: log.DirectionIn,
			Layer: log.LayerTransport, Category: log.CategoryData, Data: log.NewDataEvent([]byte("ok\n")),
		},
		{
			Timestamp: testTime.Add(time.Second), ConnectionID: testConnID, Layer: log.LayerTransport, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "connection reset by peer", Context: "read"},
		},
		{
			Timestamp: testTime.Add(2 * time.Second), Layer: log.LayerClient, Category: log.CategoryWarning,
			Warning: &log.WarningEvent{Message: "only one connection per client instance"},
		},
	}
}
