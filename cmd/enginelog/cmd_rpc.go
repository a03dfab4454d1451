package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/rpc"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Serve the engine over stdin/stdout (for programmatic access)",
	Long: `Serve the engine over stdin/stdout using newline-delimited JSON-RPC.
Stdout carries only protocol responses; the console sink renders on stderr.`,
	Args: cobra.NoArgs,
	RunE: runRPC,
}

func init() {
	addSinkFlags(rpcCmd, "rpc", true)
	addEngineFlags(rpcCmd, "rpc")

	rootCmd.AddCommand(rpcCmd)
}

func runRPC(cmd *cobra.Command, args []string) error {
	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()

	sinks, err := buildSinks(sinkConfigFrom("rpc"), cmd.ErrOrStderr(), slog.Default())
	if err != nil {
		return err
	}
	svc := startEngine("rpc", sinks, nil)

	runErr := rpc.RunRPC(ctx, svc)
	closeErr := closeEngine(svc, "rpc")
	if runErr != nil {
		return errx.Wrap(ErrServeRPC, runErr)
	}
	return closeErr
}
