// Package config loads flow client settings from YAML files.
//
// A configuration file looks like:
//
//	host: 127.0.0.1
//	port: 7331
//	strict: true
//	connect_timeout: 10s
//	close_timeout: 5s
//	keep_alive: 30s
//	nagle: false
//	protocol_log: /tmp/client.flog
//	log_level: info
//
// Omitted keys keep their defaults. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flow-io/flow-socket-go/pkg/client"
	"github.com/flow-io/flow-socket-go/pkg/log"
	"github.com/flow-io/flow-socket-go/pkg/transport"
)

// Config holds client and transport settings.
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Strict bool   `yaml:"strict"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CloseTimeout   time.Duration `yaml:"close_timeout"`
	// KeepAlive is the TCP keep-alive period; negative disables probes.
	KeepAlive    time.Duration `yaml:"keep_alive"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Nagle        bool          `yaml:"nagle"`

	// ProtocolLog is the capture file path; empty disables capture.
	ProtocolLog string `yaml:"protocol_log"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Host:           client.DefaultHost,
		Port:           client.DefaultPort,
		Strict:         client.DefaultStrict,
		ConnectTimeout: transport.DefaultConnectTimeout,
		CloseTimeout:   transport.DefaultCloseTimeout,
		KeepAlive:      transport.DefaultKeepAlivePeriod,
		LogLevel:       "info",
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration. Hosts follow client.ValidateHost.
func (c Config) Validate() error {
	if _, err := client.ValidateHost(c.Host); err != nil {
		return fmt.Errorf("invalid config: host: %w", err)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("invalid config: connect_timeout must not be negative")
	}
	if c.CloseTimeout < 0 {
		return fmt.Errorf("invalid config: close_timeout must not be negative")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid config: write_timeout must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// TransportConfig returns the transport settings.
func (c Config) TransportConfig(logger *slog.Logger) transport.Config {
	return transport.Config{
		ConnectTimeout: c.ConnectTimeout,
		CloseTimeout:   c.CloseTimeout,
		KeepAlive:      c.KeepAlive,
		WriteTimeout:   c.WriteTimeout,
		Nagle:          c.Nagle,
		Logger:         logger,
	}
}

// ClientConfig returns client collaborators built from the configuration.
func (c Config) ClientConfig(logger *slog.Logger, plog log.Logger) client.Config {
	return client.Config{
		Factory:        transport.NewDialer(c.TransportConfig(logger)),
		Logger:         logger,
		ProtocolLogger: plog,
	}
}

// Apply copies host, port and strict mode onto cl through its setters.
func (c Config) Apply(cl *client.Client) error {
	if _, err := cl.SetHost(c.Host); err != nil {
		return err
	}
	if _, err := cl.SetPort(c.Port); err != nil {
		return err
	}
	if _, err := cl.SetStrict(c.Strict); err != nil {
		return err
	}
	return nil
}
