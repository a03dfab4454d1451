// Package plugin launches plugin processes under an engine. A plugin finds
// the engine through ENGINELOG_ADDR and may call Log directly; anything it
// prints is forwarded too, one event per line.
package plugin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/engine"
	"github.com/jingkaihe/enginelog/pkg/logging"
	"github.com/jingkaihe/enginelog/pkg/sdk"
)

// Options describes a plugin launch.
type Options struct {
	// Args is the command and its arguments.
	Args []string
	// Name labels forwarded lines. Defaults to the base name of Args[0].
	Name string
	Dir  string
	// Env is added to the host environment.
	Env []string

	// Network, Addr and Codec describe the engine endpoint exported to the
	// plugin. Addr may be empty when the plugin only prints.
	Network string
	Addr    string
	Codec   string

	// URN is attached to every forwarded line.
	URN string
	// TTY runs the plugin on a pseudo-terminal. Stdout and stderr are then
	// indistinguishable and are forwarded as one INFO stream.
	TTY bool

	Logger *slog.Logger
}

// Process is a running plugin.
type Process struct {
	name   string
	cmd    *exec.Cmd
	engine engine.Engine
	source *logging.Source
	urn    string
	logger *slog.Logger

	pumps sync.WaitGroup
	ptmx  *os.File
}

// Start launches the plugin and begins forwarding its output to e.
// Cancelling ctx kills the plugin.
func Start(ctx context.Context, e engine.Engine, opts Options) (*Process, error) {
	if len(opts.Args) == 0 {
		return nil, ErrEmptyCommand
	}
	name := opts.Name
	if name == "" {
		name = filepath.Base(opts.Args[0])
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.CommandContext(ctx, opts.Args[0], opts.Args[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	if opts.Addr != "" {
		cmd.Env = append(cmd.Env,
			sdk.EnvAddr+"="+opts.Addr,
			sdk.EnvNetwork+"="+opts.Network,
			sdk.EnvCodec+"="+opts.Codec,
		)
	}

	p := &Process{
		name:   name,
		cmd:    cmd,
		engine: e,
		urn:    opts.URN,
		logger: logger.With("plugin", name),
	}

	if opts.TTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return nil, errx.Wrap(ErrStart, err)
		}
		p.ptmx = ptmx
		p.setSource()
		p.forward(ptmx, "tty", api.SeverityInfo)
		return p, nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errx.Wrap(ErrPipe, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errx.Wrap(ErrPipe, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errx.Wrap(ErrStart, err)
	}
	p.setSource()
	p.forward(stdout, "stdout", api.SeverityInfo)
	p.forward(stderr, "stderr", api.SeverityError)
	return p, nil
}

// Run starts the plugin and waits for it to exit.
func Run(ctx context.Context, e engine.Engine, opts Options) error {
	p, err := Start(ctx, e, opts)
	if err != nil {
		return err
	}
	return p.Wait()
}

func (p *Process) setSource() {
	p.source = &logging.Source{Transport: "plugin", Plugin: p.name, PID: p.cmd.Process.Pid}
}

// Name returns the label used for forwarded lines.
func (p *Process) Name() string { return p.name }

// PID returns the plugin's process ID.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Wait waits for the plugin to exit and for all of its output to be
// forwarded. A non-zero exit wraps ErrExit.
func (p *Process) Wait() error {
	var err error
	if p.ptmx != nil {
		// the pty master only reports EOF once the child is gone
		err = p.cmd.Wait()
		p.pumps.Wait()
		p.ptmx.Close()
	} else {
		// StdoutPipe requires reading to finish before Wait
		p.pumps.Wait()
		err = p.cmd.Wait()
	}
	if err != nil {
		return errx.With(ErrExit, " %s: %w", p.name, err)
	}
	return nil
}

// Signal sends sig to the plugin.
func (p *Process) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// forward submits each line of r as one event. Lines of one stream share
// a stream ID and are submitted one at a time, so they stay in order.
func (p *Process) forward(r io.Reader, label string, severity api.Severity) {
	streamID := sdk.NewStreamID()
	prefix := fmt.Sprintf("plugin[%s].%s: ", p.name, label)
	ctx := engine.WithSource(context.Background(), p.source)

	p.pumps.Add(1)
	go func() {
		defer p.pumps.Done()
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				line = strings.TrimRight(line, "\r\n")
				ev := api.LogEvent{Severity: severity, Message: prefix + line, URN: p.urn, StreamID: streamID}
				if logErr := p.engine.Log(ctx, ev.Request()); logErr != nil {
					p.logger.Warn("forward plugin output failed", "stream", label, "error", logErr)
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !isPTYClosed(err) {
					p.logger.Debug("plugin output ended", "stream", label, "error", err)
				}
				return
			}
		}
	}()
}

// isPTYClosed reports the EIO Linux returns from a pty master whose child
// has exited.
func isPTYClosed(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}
