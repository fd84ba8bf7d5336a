package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of flow sinks.
	ServiceType = "_flow._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultInstance is the instance name used when none is configured.
	DefaultInstance = "flow-sink"

	// DefaultPort is the default sink port.
	DefaultPort = 7331
)

// TXT record keys.
const (
	TXTKeyVersion = "v"    // TXT format version
	TXTKeyName    = "name" // Sink name (optional)

	// TXTVersion is the TXT format version written by this package.
	TXTVersion = "1"
)

// Limits.
const (
	// BrowseTimeout is the default timeout for FindFirst.
	BrowseTimeout = 10 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrNotFound            = errors.New("service not found")
	ErrNoAddress           = errors.New("service has no usable address")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 bytes")
	ErrAlreadyAdvertising  = errors.New("already advertising")
)

// Service is a discovered sink.
type Service struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Host is the advertised host name.
	Host string

	// Port is the advertised port.
	Port int

	// Addresses are the IP addresses of the sink, IPv4 first.
	Addresses []string

	// Name is the optional sink name from the TXT records.
	Name string

	// Text holds all TXT records.
	Text TXTRecordMap
}

// Endpoint returns an IP literal and port suitable for client.SetHost and
// client.SetPort. IPv4 addresses are preferred.
func (s *Service) Endpoint() (string, int, error) {
	var fallback string
	for _, addr := range s.Addresses {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			return addr, s.Port, nil
		}
		if fallback == "" {
			fallback = addr
		}
	}
	if fallback == "" {
		return "", 0, ErrNoAddress
	}
	return fallback, s.Port, nil
}

// Address returns the endpoint as host:port.
func (s *Service) Address() (string, error) {
	host, port, err := s.Endpoint()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
