package client

import (
	"fmt"
	"math"
	"net"
)

// ValidateHost checks a host value the way SetHost does and returns it as a
// string.
func ValidateHost(v any) (string, error) {
	host, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: got %T, want string", ErrInvalidArgumentType, v)
	}
	if host != "localhost" && net.ParseIP(host) == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	return host, nil
}

// portValue converts a numeric value to a port number. Floats must be
// finite and integral, and every value must fit an int.
func portValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int64ToInt(n)
	case uint:
		return uint64ToInt(uint64(n))
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return uint64ToInt(uint64(n))
	case uint64:
		return uint64ToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	default:
		return 0, fmt.Errorf("%w: got %T, want number", ErrInvalidArgumentType, v)
	}
}

func int64ToInt(n int64) (int, error) {
	if n < math.MinInt || n > math.MaxInt {
		return 0, fmt.Errorf("%w: %d is out of int range", ErrInvalidArgumentType, n)
	}
	return int(n), nil
}

func uint64ToInt(n uint64) (int, error) {
	if n > math.MaxInt {
		return 0, fmt.Errorf("%w: %d is out of int range", ErrInvalidArgumentType, n)
	}
	return int(n), nil
}

func floatToInt(f float64) (int, error) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0, fmt.Errorf("%w: %v is not a finite number", ErrInvalidArgumentType, f)
	case f != math.Trunc(f):
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidArgumentType, f)
	case f < math.MinInt || f >= math.MaxInt:
		return 0, fmt.Errorf("%w: %v is out of int range", ErrInvalidArgumentType, f)
	}
	return int(f), nil
}

// asCallback returns v as a write callback if it is a non-nil func(error).
func asCallback(v any) (WriteCallback, bool) {
	cb, ok := v.(func(error))
	if !ok || cb == nil {
		return nil, false
	}
	return cb, true
}

// payloadBytes returns the bytes of a payload the transport can encode.
func payloadBytes(data any) ([]byte, bool) {
	switch d := data.(type) {
	case string:
		return []byte(d), true
	case []byte:
		return d, true
	default:
		return nil, false
	}
}
