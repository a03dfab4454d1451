package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/plugin"
	"github.com/jingkaihe/enginelog/pkg/rpc"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a plugin under the engine",
	Long: `Start an engine on a private unix socket and run a plugin against it.

The plugin finds the engine through ENGINELOG_ADDR and ENGINELOG_NETWORK.
Its stdout lines are logged as INFO and its stderr lines as ERROR. A single
argument is split like a shell command line. The plugin's exit status
becomes the exit status of enginelog.`,
	Example: `  enginelog run -- ./build-plugin --target linux
  enginelog run --name builder --urn urn:pkg:foo 'make -C src all'
  enginelog run --tty --jsonl run.jsonl -- ./interactive-plugin`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlugin,
}

func init() {
	runCmd.Flags().String("name", "", "Plugin name used in forwarded lines (default: command base name)")
	runCmd.Flags().String("urn", "", "URN attached to forwarded output")
	runCmd.Flags().Bool("tty", false, "Run the plugin on a pseudo-terminal")
	runCmd.Flags().String("codec", rpc.CodecJSON, "RPC framing offered to the plugin (json, cbor)")
	runCmd.Flags().StringP("workdir", "w", "", "Working directory of the plugin")
	runCmd.Flags().StringArrayP("env", "e", nil, "Extra environment variable for the plugin (KEY=VALUE)")
	addSinkFlags(runCmd, "run", true)
	addEngineFlags(runCmd, "run")

	for _, name := range []string{"name", "urn", "tty", "codec", "workdir", "env"} {
		viper.BindPFlag("run."+name, runCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(runCmd)
}

// pluginArgs treats a lone argument as a command line.
func pluginArgs(args []string) ([]string, error) {
	if len(args) == 1 {
		return plugin.ParseCommand(args[0])
	}
	if len(args) == 0 || args[0] == "" {
		return nil, ErrPluginCommand
	}
	return args, nil
}

func runPlugin(cmd *cobra.Command, args []string) error {
	argv, err := pluginArgs(args)
	if err != nil {
		return err
	}
	codecName := viper.GetString("run.codec")
	codec, err := rpc.CodecByName(codecName)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "enginelog-run-")
	if err != nil {
		return errx.Wrap(ErrSocketDir, err)
	}
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "engine.sock")

	logger := slog.Default()
	sinks, err := buildSinks(sinkConfigFrom("run"), cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	svc := startEngine("run", sinks, nil)

	ln, err := rpc.Listen("unix", sock)
	if err != nil {
		_ = closeEngine(svc, "run")
		return errx.Wrap(ErrListen, err)
	}

	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)

	server := rpc.NewServer(svc, rpc.ServerOptions{Codec: codec, Logger: logger})
	g.Go(func() error {
		if err := server.Serve(serverCtx, ln); err != nil {
			return errx.Wrap(ErrServeRPC, err)
		}
		return nil
	})

	var pluginErr error
	g.Go(func() error {
		defer stopServer()
		logger.Debug("starting plugin", "command", plugin.QuoteCommand(argv), "socket", sock)
		pluginErr = plugin.Run(gctx, svc, plugin.Options{
			Args:    argv,
			Name:    viper.GetString("run.name"),
			Dir:     viper.GetString("run.workdir"),
			Env:     viper.GetStringSlice("run.env"),
			Network: "unix",
			Addr:    sock,
			Codec:   codecName,
			URN:     viper.GetString("run.urn"),
			TTY:     viper.GetBool("run.tty"),
			Logger:  logger,
		})
		return nil
	})

	serveErr := g.Wait()
	stopServer()
	closeErr := closeEngine(svc, "run")
	switch {
	case pluginErr != nil:
		return pluginErr
	case serveErr != nil:
		return serveErr
	default:
		return closeErr
	}
}
