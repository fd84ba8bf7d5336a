// Command flow-sink accepts flow client connections and prints every
// received line.
//
// Usage:
//
//	flow-sink [flags]
//
// Flags:
//
//	-listen string        Listen address (default "127.0.0.1:7331")
//	-advertise            Advertise the sink via mDNS
//	-instance string      mDNS instance name (default "flow-sink")
//	-name string          Human-readable sink name for TXT records
//	-interface string     Network interface for mDNS
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  File path for protocol event capture (CBOR format)
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flow-io/flow-socket-go/internal/sink"
	"github.com/flow-io/flow-socket-go/pkg/discovery"
	flowlog "github.com/flow-io/flow-socket-go/pkg/log"
)

var (
	listen      = flag.String("listen", sink.DefaultAddress, "Listen address")
	advertise   = flag.Bool("advertise", false, "Advertise the sink via mDNS")
	instance    = flag.String("instance", discovery.DefaultInstance, "mDNS instance name")
	name        = flag.String("name", "", "Human-readable sink name for TXT records")
	iface       = flag.String("interface", "", "Network interface for mDNS (default: all)")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event capture (CBOR format)")
)

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	config := sinkConfig(logger, os.Stdout)

	if *protocolLog != "" {
		fileLogger, err := flowlog.NewFileLogger(*protocolLog)
		if err != nil {
			logger.Error("failed to create protocol logger", "error", err)
			os.Exit(1)
		}
		defer fileLogger.Close()
		config.ProtocolLogger = fileLogger
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := sink.NewServer(config)
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start sink", "error", err)
		os.Exit(1)
	}
	logger.Info("sink listening", "addr", srv.Addr().String())

	if *advertise {
		adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Instance:  *instance,
			Port:      srv.Port(),
			Name:      *name,
			Interface: *iface,
			Logger:    logger,
		})
		if err == nil {
			err = adv.Start()
		}
		if err != nil {
			logger.Error("failed to advertise", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	<-ctx.Done()

	logger.Info("shutting down")
	if err := srv.Stop(); err != nil {
		logger.Warn("stop failed", "error", err)
	}
}

// sinkConfig wires session callbacks that print lines to out.
func sinkConfig(logger *slog.Logger, out io.Writer) sink.Config {
	return sink.Config{
		Address: *listen,
		Logger:  logger,
		OnConnect: func(s *sink.Session) {
			logger.Info("client connected", "session", shortID(s.ID()), "remote", s.RemoteAddr().String())
		},
		OnLine: func(s *sink.Session, line string) {
			fmt.Fprintf(out, "[%s] %s\n", shortID(s.ID()), line)
		},
		OnDisconnect: func(s *sink.Session) {
			logger.Info("client disconnected", "session", shortID(s.ID()), "bytes", len(s.Received()))
		},
		OnError: func(s *sink.Session, err error) {
			if s == nil {
				logger.Warn("accept failed", "error", err)
				return
			}
			logger.Warn("session error", "session", shortID(s.ID()), "error", err)
		},
	}
}

func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
