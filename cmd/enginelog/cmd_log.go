package main

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/sdk"
)

var logCmd = &cobra.Command{
	Use:   "log [flags] <message...>",
	Short: "Send a log event to a running engine",
	Long: `Send a log event to a running engine. The engine address defaults to
$ENGINELOG_ADDR, which the engine sets for the plugins it launches.

With --stdin every line read from standard input becomes one event; the
lines share a stream ID and are recorded in order.`,
	Example: `  enginelog log --severity error --urn urn:pkg:foo build failed
  make 2>&1 | enginelog log --stdin --severity info --urn urn:pkg:foo`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().String("addr", "", "Engine address (default $ENGINELOG_ADDR)")
	logCmd.Flags().String("network", "", "Engine network (default $ENGINELOG_NETWORK or guessed from --addr)")
	logCmd.Flags().String("codec", "", "RPC framing (default $ENGINELOG_CODEC or json)")
	logCmd.Flags().StringP("severity", "s", "info", "Severity (debug, info, warning, error)")
	logCmd.Flags().String("urn", "", "Resource the event is about (global when empty)")
	logCmd.Flags().Int64("stream-id", 0, "Correlation stream ID (--stdin picks one when unset)")
	logCmd.Flags().Bool("ephemeral", false, "Mark the event as transient status")
	logCmd.Flags().Bool("stdin", false, "Send each line of stdin as one event")
	logCmd.Flags().Duration("timeout", 10*time.Second, "Give up after this long")

	for _, name := range []string{"addr", "network", "codec", "severity", "urn", "timeout"} {
		viper.BindPFlag("log."+name, logCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	severity, err := api.ParseSeverity(viper.GetString("log.severity"))
	if err != nil {
		return err
	}
	streamID, _ := cmd.Flags().GetInt64("stream-id")
	if streamID < 0 {
		return errx.With(ErrBadStream, ": %d", streamID)
	}
	ephemeral, _ := cmd.Flags().GetBool("ephemeral")
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	if !fromStdin && len(args) == 0 {
		return ErrNoMessage
	}

	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()
	// with --stdin the pipe decides how long this runs
	if timeout := viper.GetDuration("log.timeout"); !fromStdin && timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := sdk.NewClient(ctx, clientConfig())
	if err != nil {
		return errx.Wrap(ErrConnect, err)
	}
	defer client.Close()

	if fromStdin {
		return sendLines(ctx, client, cmd.InOrStdin(), sdk.StreamOptions{
			Severity:  severity,
			URN:       viper.GetString("log.urn"),
			StreamID:  streamID,
			Ephemeral: ephemeral,
		})
	}

	err = client.Log(ctx, api.LogEvent{
		Severity:  severity,
		Message:   strings.Join(args, " "),
		URN:       viper.GetString("log.urn"),
		StreamID:  streamID,
		Ephemeral: ephemeral,
	})
	if err != nil {
		return errx.Wrap(ErrSendLog, err)
	}
	return nil
}

// clientConfig overlays the log flags on the environment defaults.
func clientConfig() sdk.Config {
	cfg := sdk.DefaultConfig()
	if addr := viper.GetString("log.addr"); addr != "" {
		cfg.Addr = addr
		cfg.Network = ""
	}
	if network := viper.GetString("log.network"); network != "" {
		cfg.Network = network
	}
	if codec := viper.GetString("log.codec"); codec != "" {
		cfg.Codec = codec
	}
	return cfg
}

func sendLines(ctx context.Context, client *sdk.Client, in io.Reader, opts sdk.StreamOptions) error {
	w := client.NewStreamWriter(ctx, opts)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if _, err := io.WriteString(w, scanner.Text()+"\n"); err != nil {
			return errx.Wrap(ErrSendLog, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return errx.Wrap(ErrReadStdin, err)
	}
	return w.Close()
}
