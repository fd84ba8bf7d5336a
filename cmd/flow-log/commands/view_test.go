package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/flow-io/flow-socket-go/pkg/log"
)

func TestFormatDataEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    testTime,
		ConnectionID: testConnID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryData,
		Data:         log.NewDataEvent([]byte("beep\n")),
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"OUT",
		"TRANSPORT Data",
		"Size: 5 bytes",
		`Data: "beep\n"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatBinaryDataAsHex(t *testing.T) {
	event := log.Event{
		Timestamp: testTime,
		Category:  log.CategoryData,
		Data:      &log.DataEvent{Size: 9000, Data: []byte{0xa1, 0x00, 0xff}, Truncated: true},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Data: a100ff (truncated)") {
		t.Errorf("expected hex payload, got: %s", output)
	}
	if !strings.Contains(output, "[conn:-]") {
		t.Errorf("expected placeholder connection ID, got: %s", output)
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    testTime,
		ConnectionID: testConnID,
		Layer:        log.LayerClient,
		Category:     log.CategoryState,
		RemoteAddr:   "127.0.0.1:7331",
		StateChange:  &log.StateChangeEvent{OldState: "CONNECTED", NewState: "IDLE", Reason: "end"},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{"CLIENT State", "Peer: 127.0.0.1:7331", "CONNECTED -> IDLE", "Reason: end"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatErrorAndWarningEvents(t *testing.T) {
	var buf bytes.Buffer
	events := sessionEvents()
	formatEvent(&buf, events[4])
	formatEvent(&buf, events[5])
	output := buf.String()

	for _, want := range []string{
		"TRANSPORT Error",
		"Message: connection reset by peer",
		"Context: read",
		"CLIENT Warning",
		"Message: only one connection per client instance",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestRunViewFiltersByCategory(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	cat := log.CategoryData
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Category: &cat}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if got := strings.Count(output, "TRANSPORT Data"); got != 2 {
		t.Errorf("expected 2 data events, got %d: %s", got, output)
	}
	if strings.Contains(output, "State") {
		t.Errorf("state events should be filtered out: %s", output)
	}
}

func TestRunViewFiltersByDirection(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	dir := log.DirectionIn
	cat := log.CategoryData
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Direction: &dir, Category: &cat}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"ok\n"`) || strings.Contains(output, "beep") {
		t.Errorf("expected only incoming data, got: %s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView("/nonexistent/capture.flog", ViewFilter{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseLayerFlag(t *testing.T) {
	tests := []struct {
		input   string
		want    log.Layer
		wantErr bool
	}{
		{"transport", log.LayerTransport, false},
		{"CLIENT", log.LayerClient, false},
		{"wire", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLayerFlag(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLayerFlag(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLayerFlag(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseDirectionFlag(t *testing.T) {
	tests := []struct {
		input   string
		want    log.Direction
		wantErr bool
	}{
		{"in", log.DirectionIn, false},
		{"OUT", log.DirectionOut, false},
		{"sideways", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDirectionFlag(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDirectionFlag(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseDirectionFlag(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseCategoryFlag(t *testing.T) {
	tests := []struct {
		input   string
		want    log.Category
		wantErr bool
	}{
		{"data", log.CategoryData, false},
		{"State", log.CategoryState, false},
		{"error", log.CategoryError, false},
		{"warning", log.CategoryWarning, false},
		{"message", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCategoryFlag(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategoryFlag(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCategoryFlag(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
