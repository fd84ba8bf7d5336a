// Command flow-client connects to a flow sink and writes data to it.
//
// Modes:
//
//   - default: connect, write -count JSON lines {"value":[<unix ms>,<rand>]}
//     one per -interval, then end the connection
//   - -pipe: copy stdin to the connection, then end it
//   - -interactive: readline shell (see .help)
//
// Usage:
//
//	flow-client [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-host string          Sink host (IP literal or localhost)
//	-port int             Sink port
//	-strict               Strict write validation (default true)
//	-discover             Find the sink via mDNS
//	-interface string     Network interface for mDNS
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  File path for protocol event capture (CBOR format)
//
// Examples:
//
//	# Send ten demo values to a local sink
//	flow-client -port 7331
//
//	# Forward a file
//	flow-client -pipe < values.jsonl
//
//	# Discover a sink and open a shell
//	flow-client -discover -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flow-io/flow-socket-go/cmd/flow-client/interactive"
	"github.com/flow-io/flow-socket-go/pkg/client"
	"github.com/flow-io/flow-socket-go/pkg/config"
	"github.com/flow-io/flow-socket-go/pkg/discovery"
	flowlog "github.com/flow-io/flow-socket-go/pkg/log"
)

var (
	configFile  = flag.String("config", "", "YAML configuration file")
	host        = flag.String("host", client.DefaultHost, "Sink host (IP literal or localhost)")
	port        = flag.Int("port", client.DefaultPort, "Sink port")
	strict      = flag.Bool("strict", client.DefaultStrict, "Strict write validation")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event capture (CBOR format)")
	discover    = flag.Bool("discover", false, "Find the sink via mDNS")
	iface       = flag.String("interface", "", "Network interface for mDNS (default: all)")
	interact    = flag.Bool("interactive", false, "Enable interactive shell")
	pipe        = flag.Bool("pipe", false, "Copy stdin to the connection")
	count       = flag.Int("count", 10, "Number of demo values to send")
	interval    = flag.Duration("interval", time.Second, "Delay between demo values")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *discover {
		if err := resolveSink(ctx, &cfg); err != nil {
			logger.Error("discovery failed", "error", err)
			os.Exit(1)
		}
	}

	var plog flowlog.Logger
	if cfg.ProtocolLog != "" {
		fileLogger, err := flowlog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			logger.Error("failed to create protocol logger", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := fileLogger.Close(); err != nil {
				logger.Warn("protocol capture close failed", "path", fileLogger.Path(), "error", err)
			}
			logger.Debug("protocol capture closed", "path", fileLogger.Path(),
				"events", fileLogger.Count(), "dropped", fileLogger.Dropped())
		}()
		capture := flowlog.NewMultiLogger(fileLogger)
		if level <= slog.LevelDebug {
			capture.Add(flowlog.NewSlogAdapter(logger))
		}
		plog = capture
		logger.Info("protocol capture enabled", "path", fileLogger.Path())
	}

	c := client.NewWithConfig(cfg.ClientConfig(logger, plog))
	if err := cfg.Apply(c); err != nil {
		logger.Error("invalid settings", "error", err)
		os.Exit(1)
	}

	switch {
	case *interact:
		err = runInteractive(ctx, cancel, c, level)
	case *pipe:
		err = runPipe(ctx, c, os.Stdin)
	default:
		err = runDemo(ctx, c, *count, *interval)
	}
	if err != nil {
		logger.Error("client failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads -config and overlays the flags given on the command line.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return cfg, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "strict":
			cfg.Strict = *strict
		case "log-level":
			cfg.LogLevel = *logLevel
		case "protocol-log":
			cfg.ProtocolLog = *protocolLog
		}
	})

	return cfg, cfg.Validate()
}

func resolveSink(ctx context.Context, cfg *config.Config) error {
	slog.Info("browsing for sinks", "service", discovery.ServiceType)

	svc, err := discovery.NewBrowser(discovery.BrowserConfig{Interface: *iface}).FindFirst(ctx)
	if err != nil {
		return err
	}
	h, p, err := svc.Endpoint()
	if err != nil {
		return err
	}

	slog.Info("found sink", "instance", svc.Instance, "host", h, "port", p)
	cfg.Host, cfg.Port = h, p
	return nil
}

func runInteractive(ctx context.Context, cancel context.CancelFunc, c *client.Client, level slog.Level) error {
	shell, err := interactive.New(c)
	if err != nil {
		return err
	}

	// Route log output through readline to keep the prompt intact.
	slog.SetDefault(slog.New(slog.NewTextHandler(shell.Stdout(), &slog.HandlerOptions{Level: level})))

	shell.Run(ctx, cancel)
	c.End()
	return nil
}
