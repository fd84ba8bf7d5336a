// Package commands implements the flow-log CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/flow-io/flow-socket-go/pkg/log"
)

// TimestampFormat is the timestamp layout used by view and export.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

func (f ViewFilter) toFilter() log.Filter {
	return log.Filter{Layer: f.Layer, Direction: f.Direction, Category: f.Category}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(TimestampFormat)
	connID := shortenConnID(event.ConnectionID)
	if connID == "" {
		connID = "-"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, event.Direction.String(), event.Layer.String(), typeLabel(event))

	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Peer: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Data != nil:
		formatDataDetails(w, event.Data)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	case event.Warning != nil:
		fmt.Fprintf(w, "  Message: %s\n", event.Warning.Message)
	}

	fmt.Fprintln(w)
}

// typeLabel names the payload carried by the event.
func typeLabel(event log.Event) string {
	switch {
	case event.Data != nil:
		return "Data"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	case event.Warning != nil:
		return "Warning"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatDataDetails writes the payload as quoted text when it is printable
// UTF-8 and as hex otherwise.
func formatDataDetails(w io.Writer, data *log.DataEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", data.Size)
	if len(data.Data) > 0 {
		if isPrintable(data.Data) {
			fmt.Fprintf(w, "  Data: %q", string(data.Data))
		} else {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(data.Data))
		}
		if data.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func isPrintable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "client":
		return log.LayerClient, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport or client)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "data":
		return log.CategoryData, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "warning":
		return log.CategoryWarning, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be data, state, error, or warning)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.toFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
