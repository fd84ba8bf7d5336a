package transport

import "fmt"

// encodePayload converts a Send payload to bytes. Byte slices are copied so
// the caller may reuse its buffer once Send returns.
func encodePayload(data any) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		b := make([]byte, len(v))
		copy(b, v)
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayload, data)
	}
}
