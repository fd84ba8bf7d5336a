package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// A capture file is a plain concatenation of CBOR-encoded events with no
// header or framing.

// Events are shallow: one map holding at most one payload map.
const (
	maxEventNesting = 8
	maxEventPairs   = 64
)

var (
	captureEncMode cbor.EncMode
	captureDecMode cbor.DecMode
)

func init() {
	var err error

	captureEncMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: capture encoder mode: %v", err))
	}

	// Captures may come from other writers, so indefinite lengths are
	// accepted, but a damaged file must not make the reader allocate
	// without bound.
	captureDecMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthAllowed,
		MaxNestedLevels:   maxEventNesting,
		MaxMapPairs:       maxEventPairs,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: capture decoder mode: %v", err))
	}
}

// captureForm returns event as it is stored: payload bytes beyond
// MaxCapturedData are cut and flagged, whoever built the DataEvent.
func captureForm(event Event) Event {
	d := event.Data
	if d == nil || len(d.Data) <= MaxCapturedData {
		return event
	}
	trimmed := *d
	trimmed.Data = d.Data[:MaxCapturedData]
	trimmed.Truncated = true
	if trimmed.Size < len(d.Data) {
		trimmed.Size = len(d.Data)
	}
	event.Data = &trimmed
	return event
}

// EncodeEvent encodes an Event to CBOR.
func EncodeEvent(event Event) ([]byte, error) {
	return captureEncMode.Marshal(captureForm(event))
}

// DecodeEvent decodes a single CBOR event. Trailing bytes are an error.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := captureDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Encoder writes capture events to a stream.
type Encoder struct {
	enc   *cbor.Encoder
	count int
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: captureEncMode.NewEncoder(w)}
}

// Encode writes one event.
func (e *Encoder) Encode(event Event) error {
	if err := e.enc.Encode(captureForm(event)); err != nil {
		return err
	}
	e.count++
	return nil
}

// Count returns the number of events written.
func (e *Encoder) Count() int {
	return e.count
}

// Decoder reads capture events from a stream.
type Decoder struct {
	dec *cbor.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: captureDecMode.NewDecoder(r)}
}

// Decode reads the next event. It returns io.EOF at a clean end of stream
// and io.ErrUnexpectedEOF when the stream stops inside an event, which is
// what a capture cut off by a crash looks like.
func (d *Decoder) Decode() (Event, error) {
	var event Event
	if err := d.dec.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.dec.NumBytesRead()
}
