package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spoonos-ai/spoonbot/internal/bus"
)

const (
	cliChannelName = "cli"
	cliSenderID    = "local"
	cliChatID      = "default"
)

// CLIChannel is an interactive terminal session. It reads lines from stdin,
// publishes them to the bus, and prints agent replies to stdout.
type CLIChannel struct {
	BaseChannel
	in     io.Reader
	out    io.Writer
	prompt string
	cancel context.CancelFunc
	onExit func()
}

func NewCLIChannel(b *bus.MessageBus) *CLIChannel {
	return &CLIChannel{
		BaseChannel: NewBaseChannel(cliChannelName, b, nil),
		in:          os.Stdin,
		out:         os.Stdout,
		prompt:      "You: ",
	}
}

// SetIO replaces the terminal streams (for testing).
func (c *CLIChannel) SetIO(in io.Reader, out io.Writer) {
	c.in = in
	c.out = out
}

// SetOnExit registers a callback fired when the user ends the session with
// an exit command or EOF. The app uses it to shut the whole process down.
func (c *CLIChannel) SetOnExit(fn func()) {
	c.onExit = fn
}

func (c *CLIChannel) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	go c.readLoop(ctx)

	log.Printf("[cli] interactive session started")
	return nil
}

func (c *CLIChannel) readLoop(ctx context.Context) {
	fmt.Fprintln(c.out, "spoonbot ready. Type 'exit' to quit.")

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit", "/exit", "/quit":
			fmt.Fprintln(c.out, "Goodbye!")
			c.fireExit()
			return
		case "clear", "/clear":
			fmt.Fprint(c.out, "\033[2J\033[H")
			continue
		}

		c.bus.Inbound <- bus.NewInboundMessage(cliChannelName, cliSenderID, cliChatID, line)
	}

	// EOF on stdin ends the session the same way an exit command does.
	c.fireExit()
}

func (c *CLIChannel) fireExit() {
	if c.onExit != nil {
		c.onExit()
	}
}

func (c *CLIChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	log.Printf("[cli] stopped")
	return nil
}

func (c *CLIChannel) Send(msg bus.OutboundMessage) error {
	fmt.Fprintf(c.out, "\nspoonbot: %s\n\n", msg.Content)
	return nil
}
