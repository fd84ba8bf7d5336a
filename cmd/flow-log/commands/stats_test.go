package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/flow-io/flow-socket-go/pkg/log"
)

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}

	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", stats.TotalEvents)
	}
	if stats.BytesOut != 5 || stats.BytesIn != 3 {
		t.Errorf("bytes = %d in / %d out, want 3 / 5", stats.BytesIn, stats.BytesOut)
	}
	if stats.Errors != 1 || stats.Warnings != 1 {
		t.Errorf("errors/warnings = %d/%d, want 1/1", stats.Errors, stats.Warnings)
	}
	if stats.EventsByCategory[log.CategoryState] != 2 {
		t.Errorf("state events = %d, want 2", stats.EventsByCategory[log.CategoryState])
	}
	if len(stats.Connections) != 2 {
		t.Errorf("connections = %d, want 2", len(stats.Connections))
	}

	conn := stats.Connections[testConnID]
	if conn == nil {
		t.Fatal("missing connection stats")
	}
	if conn.RemoteAddr != "127.0.0.1:7331" {
		t.Errorf("RemoteAddr = %q", conn.RemoteAddr)
	}
	if conn.LastState != "CONNECTED" {
		t.Errorf("LastState = %q, want CONNECTED", conn.LastState)
	}
	if !stats.TimeRange.Start.Equal(testTime) || !stats.TimeRange.End.Equal(testTime.Add(2*time.Second)) {
		t.Errorf("unexpected time range %v - %v", stats.TimeRange.Start, stats.TimeRange.End)
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 6",
		"Bytes:        3 in, 5 out",
		"TRANSPORT:",
		"CLIENT:",
		"DATA:",
		"WARNING:",
		"Connections: 2",
		"[abc12345]",
		"Peer: 127.0.0.1:7331",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
