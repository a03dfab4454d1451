package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/httpapi"
	"github.com/jingkaihe/enginelog/pkg/logging"
	"github.com/jingkaihe/enginelog/pkg/rpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and accept log events",
	Long: `Run the engine. Log events are accepted over JSON-RPC on --listen and,
when --http is set, over HTTP (POST /v1/log). Accepted events are dispatched
to the configured sinks.`,
	Example: `  enginelog serve --listen /run/enginelog.sock --jsonl /var/log/engine.jsonl
  enginelog serve --network tcp --listen 127.0.0.1:7070 --http 127.0.0.1:7071 --db engine.db
  enginelog serve --filter 'level >= WARNING' --kafka-brokers kafka:9092`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", defaultSocketPath(), "RPC listen address (socket path or host:port)")
	serveCmd.Flags().String("network", "unix", "RPC network (unix, tcp)")
	serveCmd.Flags().String("codec", rpc.CodecJSON, "RPC framing (json, cbor)")
	serveCmd.Flags().String("http", "", "HTTP listen address (disabled when empty)")
	addSinkFlags(serveCmd, "serve", true)
	addEngineFlags(serveCmd, "serve")

	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("serve.network", serveCmd.Flags().Lookup("network"))
	viper.BindPFlag("serve.codec", serveCmd.Flags().Lookup("codec"))
	viper.BindPFlag("serve.http", serveCmd.Flags().Lookup("http"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	codec, err := rpc.CodecByName(viper.GetString("serve.codec"))
	if err != nil {
		return err
	}

	logger := slog.Default()
	sinks, err := buildSinks(sinkConfigFrom("serve"), cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	var broadcaster *logging.Broadcaster
	httpAddr := viper.GetString("serve.http")
	if httpAddr != "" {
		broadcaster = logging.NewBroadcaster()
		sinks = append(sinks, broadcaster)
	}

	reg := newRegistry()
	svc := startEngine("serve", sinks, reg)

	network, addr := viper.GetString("serve.network"), viper.GetString("serve.listen")
	ln, err := rpc.Listen(network, addr)
	if err != nil {
		_ = closeEngine(svc, "serve")
		return errx.Wrap(ErrListen, err)
	}

	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	server := rpc.NewServer(svc, rpc.ServerOptions{Codec: codec, Logger: logger})
	g.Go(func() error {
		logger.Info("rpc listening", "network", network, "addr", addr, "codec", viper.GetString("serve.codec"))
		if err := server.Serve(gctx, ln); err != nil {
			return errx.Wrap(ErrServeRPC, err)
		}
		return nil
	})

	if httpAddr != "" {
		httpServer := &http.Server{
			Addr: httpAddr,
			Handler: httpapi.NewRouter(httpapi.Options{
				Engine:      svc,
				Broadcaster: broadcaster,
				Gatherer:    reg,
				Ready:       svc.Accepting,
				Logger:      logger,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http listening", "addr", httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errx.Wrap(ErrServeHTTP, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			// the live feed holds hijacked connections Shutdown does not wait for
			broadcaster.Close()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	serveErr := g.Wait()
	closeErr := closeEngine(svc, "serve")
	if serveErr != nil {
		return serveErr
	}
	return closeErr
}
