package log

import (
	"time"
)

// MaxCapturedData is the number of payload bytes kept in a DataEvent.
// Larger payloads are truncated; Size still reports the full length.
const MaxCapturedData = 4096

// Event is a captured connection event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the transport handle (UUID). Empty for
	// events raised while the client has no handle.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Data        *DataEvent        `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
	Warning     *WarningEvent     `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the peer.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the peer.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where the event was captured.
type Layer uint8

const (
	// LayerTransport is the socket layer (raw bytes, transport errors).
	LayerTransport Layer = 0
	// LayerClient is the client lifecycle layer.
	LayerClient Layer = 1
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryData indicates payload bytes.
	CategoryData Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
	// CategoryWarning indicates a warning event.
	CategoryWarning Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryData:
		return "DATA"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// DataEvent captures bytes sent or received.
type DataEvent struct {
	// Size is the payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the payload (truncated to MaxCapturedData).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewDataEvent captures a copy of data, truncated to MaxCapturedData.
func NewDataEvent(data []byte) *DataEvent {
	ev := &DataEvent{Size: len(data)}
	n := len(data)
	if n > MaxCapturedData {
		n = MaxCapturedData
		ev.Truncated = true
	}
	ev.Data = append([]byte(nil), data[:n]...)
	return ev
}

// StateChangeEvent captures a client lifecycle transition.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// WarningEvent captures a warning raised to the caller.
type WarningEvent struct {
	// Message is the warning text.
	Message string `cbor:"1,keyasint"`
}
