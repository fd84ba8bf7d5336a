// Package interactive provides the interactive command-line interface
// for flow-client.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/flow-io/flow-socket-go/pkg/client"
	"github.com/flow-io/flow-socket-go/pkg/event"
)

// Shell handles interactive mode for flow-client. Lines starting with a dot
// are commands; every other line is written to the connection with a
// trailing newline.
type Shell struct {
	client *client.Client
	out    io.Writer
	rl     *readline.Instance
	subs   []event.Subscription
}

// New creates a readline-backed shell for c.
func New(c *client.Client) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "flow> ",
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(c, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(c *client.Client, out io.Writer) *Shell {
	s := &Shell{client: c, out: out}
	s.subs = []event.Subscription{
		c.On(event.Connect, func(ev event.Event) {
			fmt.Fprintf(s.out, "connected to %s:%d\n", c.Host(), c.Port())
		}),
		c.On(event.Data, func(ev event.Event) {
			fmt.Fprintf(s.out, "< %s", ev.Data)
			if len(ev.Data) > 0 && ev.Data[len(ev.Data)-1] != '\n' {
				fmt.Fprintln(s.out)
			}
		}),
		c.On(event.Error, func(ev event.Event) {
			fmt.Fprintf(s.out, "error: %v\n", ev.Err)
		}),
		c.On(event.Warning, func(ev event.Event) {
			fmt.Fprintf(s.out, "warning: %s\n", ev.Message)
		}),
		c.On(event.Close, func(ev event.Event) {
			if ev.HadError {
				fmt.Fprintln(s.out, "connection closed (error)")
				return
			}
			fmt.Fprintln(s.out, "connection closed")
		}),
	}
	return s
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Close detaches the shell from the client.
func (s *Shell) Close() {
	for _, sub := range s.subs {
		s.client.Off(sub)
	}
	s.subs = nil
	if s.rl != nil {
		s.rl.Close()
	}
}

// Run starts the interactive command loop. It returns after .quit, EOF or
// ctx cancellation, calling cancel on the way out.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Execute(line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute handles one input line. It returns false when the shell should
// exit.
func (s *Shell) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	if !strings.HasPrefix(input, ".") {
		s.write(line)
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case ".help", ".?":
		s.printHelp()
	case ".connect":
		s.client.Connect()
	case ".end":
		s.client.End()
	case ".status":
		s.cmdStatus()
	case ".host":
		s.cmdHost(args)
	case ".port":
		s.cmdPort(args)
	case ".strict":
		s.cmdStrict(args)
	case ".quit", ".exit":
		s.client.End()
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type '.help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) write(line string) {
	if _, err := s.client.Write(line + "\n"); err != nil {
		fmt.Fprintf(s.out, "write failed: %v\n", err)
	}
}

func (s *Shell) cmdStatus() {
	state := "disconnected"
	if s.client.Status() {
		state = "connected"
	}
	fmt.Fprintf(s.out, "%s (%s:%d, strict=%t)\n", state, s.client.Host(), s.client.Port(), s.client.Strict())
}

func (s *Shell) cmdHost(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, s.client.Host())
		return
	}
	if _, err := s.client.SetHost(args[0]); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "host = %s\n", s.client.Host())
}

func (s *Shell) cmdPort(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, s.client.Port())
		return
	}

	// Unparsable input goes through as a string so the client reports it.
	var value any = args[0]
	if n, err := strconv.Atoi(args[0]); err == nil {
		value = n
	}
	if _, err := s.client.SetPort(value); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "port = %d\n", s.client.Port())
}

func (s *Shell) cmdStrict(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, s.client.Strict())
		return
	}

	var value any = args[0]
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		value = true
	case "off", "false", "0":
		value = false
	}
	if _, err := s.client.SetStrict(value); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "strict = %t\n", s.client.Strict())
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Flow Client Commands:
  .connect         - Open the connection
  .end             - Close the connection
  .status          - Show connection state and settings
  .host [ip]       - Show or set the host (IP literal or localhost)
  .port [n]        - Show or set the port
  .strict [on|off] - Show or set strict write validation
  .help            - Show this help
  .quit            - End the connection and exit

Any other line is sent with a trailing newline.`)
}
