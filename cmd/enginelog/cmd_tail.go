package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

var tailCmd = &cobra.Command{
	Use:   "tail <file.jsonl>",
	Short: "Follow a JSONL event file and render it",
	Example: `  enginelog tail /var/log/engine.jsonl
  enginelog tail -n --filter 'urn == "urn:pkg:foo"' engine.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolP("follow", "f", true, "Keep reading as the file grows (follows rotation)")
	tailCmd.Flags().BoolP("new", "n", false, "Start at the end of the file")
	tailCmd.Flags().String("min-severity", "", "Only render events at or above this severity")
	tailCmd.Flags().String("filter", "", "Only render events matching this expression")
	tailCmd.Flags().Bool("show-ephemeral", true, "Render ephemeral events")

	for _, name := range []string{"follow", "new", "min-severity", "filter", "show-ephemeral"} {
		viper.BindPFlag("tail."+name, tailCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(tailCmd)
}

// tailFilter selects the events tail renders.
type tailFilter struct {
	min  api.Severity
	expr *logging.Filter
}

func newTailFilter(minSeverity, expr string) (*tailFilter, error) {
	f := &tailFilter{}
	if minSeverity != "" {
		sev, err := api.ParseSeverity(minSeverity)
		if err != nil {
			return nil, err
		}
		f.min = sev
	}
	if expr != "" {
		compiled, err := logging.CompileFilter(expr)
		if err != nil {
			return nil, err
		}
		f.expr = compiled
	}
	return f, nil
}

func (f *tailFilter) match(event *logging.Event) bool {
	if f.min != "" && event.Severity.Rank() < f.min.Rank() {
		return false
	}
	if f.expr == nil {
		return true
	}
	ok, err := f.expr.Match(event)
	return err == nil && ok
}

func runTail(cmd *cobra.Command, args []string) error {
	filter, err := newTailFilter(viper.GetString("tail.min-severity"), viper.GetString("tail.filter"))
	if err != nil {
		return err
	}

	cfg := tail.Config{
		Follow:    viper.GetBool("tail.follow"),
		ReOpen:    viper.GetBool("tail.follow"),
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	}
	if viper.GetBool("tail.new") {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(args[0], cfg)
	if err != nil {
		return errx.Wrap(ErrTailFile, err)
	}
	defer t.Cleanup()

	ctx, cancel := contextWithSignal(cmd.Context())
	defer cancel()
	go func() {
		<-ctx.Done()
		t.Stop()
	}()

	console := logging.NewConsole(cmd.OutOrStdout(), logging.ConsoleOptions{
		ShowEphemeral: viper.GetBool("tail.show-ephemeral"),
	})
	defer console.Close()

	renderLines(ctx, t.Lines, console, filter)
	if err := t.Err(); err != nil && ctx.Err() == nil {
		return errx.Wrap(ErrTailFile, err)
	}
	return nil
}

// renderLines decodes JSONL records from lines and writes the matching ones
// to sink until lines is closed or ctx is done. Undecodable lines are
// skipped.
func renderLines(ctx context.Context, lines <-chan *tail.Line, sink logging.Sink, filter *tailFilter) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line.Err != nil {
				slog.Warn("tail read failed", "error", line.Err)
				continue
			}
			var event logging.Event
			if err := json.Unmarshal([]byte(line.Text), &event); err != nil {
				slog.Debug("skipping malformed line", "line", line.Num, "error", err)
				continue
			}
			if !filter.match(&event) {
				continue
			}
			if err := sink.Write(&event); err != nil {
				slog.Warn("render event failed", "error", err)
			}
		}
	}
}
