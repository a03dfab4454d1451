package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const clearLine = "\r\033[K"

// ConsoleOptions configures a Console sink.
type ConsoleOptions struct {
	// ShowEphemeral prints ephemeral events as regular lines when the output
	// is not a terminal. On a terminal they always use the status line.
	ShowEphemeral bool
	// TimeFormat defaults to "15:04:05.000".
	TimeFormat string
	// ForceTTY treats out as a terminal regardless of detection.
	ForceTTY bool
}

// Console renders records as human readable lines.
//
// On a terminal, ephemeral events are drawn on a single transient status
// line that the next event overwrites, so progress output does not pile up.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	fd      int
	tty     bool
	opts    ConsoleOptions
	pending bool // a status line is currently drawn
}

// NewConsole creates a console renderer writing to out.
func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04:05.000"
	}
	c := &Console{out: out, fd: -1, opts: opts, tty: opts.ForceTTY}
	if f, ok := out.(*os.File); ok {
		c.fd = int(f.Fd())
		if term.IsTerminal(c.fd) {
			c.tty = true
		}
	}
	return c
}

func (c *Console) Name() string { return "console" }

// Write renders one event.
func (c *Console) Write(event *Event) error {
	line := FormatEvent(event, c.opts.TimeFormat)

	c.mu.Lock()
	defer c.mu.Unlock()

	if event.Ephemeral {
		if c.tty {
			_, err := fmt.Fprint(c.out, clearLine+c.truncate(firstLine(line)))
			c.pending = true
			return err
		}
		if !c.opts.ShowEphemeral {
			return nil
		}
	}

	if c.pending {
		if _, err := fmt.Fprint(c.out, clearLine); err != nil {
			return err
		}
		c.pending = false
	}
	_, err := fmt.Fprintln(c.out, line)
	return err
}

// Close clears a pending status line.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		c.pending = false
		_, err := fmt.Fprint(c.out, clearLine)
		return err
	}
	return nil
}

func (c *Console) truncate(s string) string {
	if c.fd < 0 {
		return s
	}
	width, _, err := term.GetSize(c.fd)
	if err != nil || width <= 1 || len(s) < width {
		return s
	}
	return s[:width-1]
}

// FormatEvent renders event as "<time> <SEVERITY> [urn] (#stream) message".
func FormatEvent(event *Event, timeFormat string) string {
	var b strings.Builder
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Local().Format(timeFormat))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-7s", event.Severity)
	if event.URN != "" {
		fmt.Fprintf(&b, " [%s]", event.URN)
	}
	if event.StreamID != 0 {
		fmt.Fprintf(&b, " #%d", event.StreamID)
	}
	b.WriteByte(' ')
	b.WriteString(event.Message)
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
