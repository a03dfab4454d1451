package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/diagstore"
	"github.com/jingkaihe/enginelog/pkg/forward"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// sinkConfig selects the engine-side consumers of the diagnostic stream.
type sinkConfig struct {
	Console         bool
	ShowEphemeral   bool
	JSONL           string
	JSONLMaxSizeMB  int
	JSONLMaxBackups int
	DB              string
	Filter          string
	KafkaBrokers    []string
	KafkaTopic      string
	OpenSearchURLs  []string
	OpenSearchIndex string
}

var sinkFlagNames = []string{
	"console", "show-ephemeral", "jsonl", "jsonl-max-size-mb", "jsonl-max-backups",
	"db", "filter", "kafka-brokers", "kafka-topic", "opensearch-url", "opensearch-index",
}

// addSinkFlags registers the sink flags on cmd and binds them under
// "<prefix>.<flag>".
func addSinkFlags(cmd *cobra.Command, prefix string, console bool) {
	f := cmd.Flags()
	f.Bool("console", console, "Render events on stderr")
	f.Bool("show-ephemeral", false, "Print ephemeral events when stderr is not a terminal")
	f.String("jsonl", "", "Append events to this JSONL file")
	f.Int("jsonl-max-size-mb", 0, "Rotate the JSONL file after this many megabytes (0 disables rotation)")
	f.Int("jsonl-max-backups", 5, "Rotated JSONL files to keep")
	f.String("db", "", "Persist non-ephemeral events to this SQLite database")
	f.String("filter", "", `Only deliver events matching this expression (e.g. 'level >= WARNING')`)
	f.StringSlice("kafka-brokers", nil, "Forward events to these Kafka brokers")
	f.String("kafka-topic", "enginelog", "Kafka topic for forwarded events")
	f.StringSlice("opensearch-url", nil, "Index events into this OpenSearch cluster")
	f.String("opensearch-index", forward.DefaultIndexPrefix, "OpenSearch daily index prefix")

	for _, name := range sinkFlagNames {
		viper.BindPFlag(prefix+"."+name, f.Lookup(name))
	}
}

func sinkConfigFrom(prefix string) sinkConfig {
	return sinkConfig{
		Console:         viper.GetBool(prefix + ".console"),
		ShowEphemeral:   viper.GetBool(prefix + ".show-ephemeral"),
		JSONL:           viper.GetString(prefix + ".jsonl"),
		JSONLMaxSizeMB:  viper.GetInt(prefix + ".jsonl-max-size-mb"),
		JSONLMaxBackups: viper.GetInt(prefix + ".jsonl-max-backups"),
		DB:              viper.GetString(prefix + ".db"),
		Filter:          viper.GetString(prefix + ".filter"),
		KafkaBrokers:    viper.GetStringSlice(prefix + ".kafka-brokers"),
		KafkaTopic:      viper.GetString(prefix + ".kafka-topic"),
		OpenSearchURLs:  viper.GetStringSlice(prefix + ".opensearch-url"),
		OpenSearchIndex: viper.GetString(prefix + ".opensearch-index"),
	}
}

// buildSinks opens every configured sink. On failure the sinks opened so
// far are closed again.
func buildSinks(cfg sinkConfig, console io.Writer, logger *slog.Logger) (sinks []logging.Sink, err error) {
	defer func() {
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			sinks = nil
		}
	}()

	if cfg.Console {
		sinks = append(sinks, logging.NewConsole(console, logging.ConsoleOptions{ShowEphemeral: cfg.ShowEphemeral}))
	}
	if cfg.JSONL != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JSONL), 0755); err != nil {
			return sinks, errx.Wrap(ErrCreateSink, err)
		}
		var w *logging.JSONLWriter
		if cfg.JSONLMaxSizeMB > 0 {
			w, err = logging.NewRotatingJSONLWriter(cfg.JSONL, logging.RotateOptions{
				MaxSizeMB:  cfg.JSONLMaxSizeMB,
				MaxBackups: cfg.JSONLMaxBackups,
				Compress:   true,
			})
		} else {
			w, err = logging.NewJSONLWriter(cfg.JSONL)
		}
		if err != nil {
			return sinks, errx.Wrap(ErrCreateSink, err)
		}
		sinks = append(sinks, w)
	}
	if cfg.DB != "" {
		store, err := diagstore.Open(cfg.DB)
		if err != nil {
			return sinks, errx.Wrap(ErrCreateSink, err)
		}
		sinks = append(sinks, store)
	}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := forward.NewKafkaSink(forward.KafkaOptions{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Logger:  logger,
		})
		if err != nil {
			return sinks, errx.Wrap(ErrCreateSink, err)
		}
		sinks = append(sinks, k)
	}
	if len(cfg.OpenSearchURLs) > 0 {
		o, err := forward.NewOpenSearchSink(forward.OpenSearchOptions{
			Addresses:   cfg.OpenSearchURLs,
			IndexPrefix: cfg.OpenSearchIndex,
		})
		if err != nil {
			return sinks, errx.Wrap(ErrCreateSink, err)
		}
		sinks = append(sinks, o)
	}

	if cfg.Filter != "" {
		filter, err := logging.CompileFilter(cfg.Filter)
		if err != nil {
			return sinks, errx.Wrap(ErrCreateSink, err)
		}
		for i, s := range sinks {
			sinks[i] = logging.NewFilterSink(filter, s)
		}
	}
	return sinks, nil
}
