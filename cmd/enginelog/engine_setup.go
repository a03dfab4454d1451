package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/engine"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// addEngineFlags registers dispatcher tuning flags bound under prefix.
func addEngineFlags(cmd *cobra.Command, prefix string) {
	f := cmd.Flags()
	f.String("engine-id", "", "Engine ID stamped on every event (default: generated)")
	f.Int("shards", engine.DefaultShards, "Dispatch queues; events of one stream always share a queue")
	f.Int("queue-size", engine.DefaultQueueSize, "Capacity of each dispatch queue")
	f.Duration("enqueue-timeout", 0, "Fail Log calls with Unavailable when a queue stays full this long (0 waits)")
	f.Duration("shutdown-timeout", 0, "Bound on delivering queued events at shutdown (0 waits)")

	for _, name := range []string{"engine-id", "shards", "queue-size", "enqueue-timeout", "shutdown-timeout"} {
		viper.BindPFlag(prefix+"."+name, f.Lookup(name))
	}
}

func engineOptionsFrom(prefix string, reg prometheus.Registerer) engine.Options {
	return engine.Options{
		EngineID:       viper.GetString(prefix + ".engine-id"),
		Shards:         viper.GetInt(prefix + ".shards"),
		QueueSize:      viper.GetInt(prefix + ".queue-size"),
		EnqueueTimeout: viper.GetDuration(prefix + ".enqueue-timeout"),
		Registerer:     reg,
	}
}

// newRegistry returns a registry with the process collectors registered.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// closeEngine drains svc within the configured shutdown timeout.
func closeEngine(svc *engine.Service, prefix string) error {
	ctx, cancel := drainContext(viper.GetDuration(prefix + ".shutdown-timeout"))
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		return errx.Wrap(ErrCloseEngine, err)
	}
	return nil
}

func startEngine(prefix string, sinks []logging.Sink, reg prometheus.Registerer) *engine.Service {
	opts := engineOptionsFrom(prefix, reg)
	opts.Logger = slog.Default()
	svc := engine.New(opts, sinks...)
	slog.Info("engine started", "engine_id", svc.ID(), "sinks", len(sinks))
	return svc
}

