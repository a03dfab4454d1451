package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/diagstore"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query events persisted by the SQLite sink",
	Example: `  enginelog query --db engine.db --urn urn:pkg:foo
  enginelog query --db engine.db --min-severity warning --since 1h -o yaml`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("db", "", "SQLite database written by 'serve --db' (required)")
	queryCmd.Flags().String("engine-id", "", "Only events of this engine")
	queryCmd.Flags().String("urn", "", "Only events about this URN")
	queryCmd.Flags().Int64("stream-id", 0, "Only events of this stream")
	queryCmd.Flags().String("min-severity", "", "Only events at or above this severity")
	queryCmd.Flags().Duration("since", 0, "Only events newer than this")
	queryCmd.Flags().Int("limit", 100, "Most recent events to show (0 for all)")
	queryCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")

	for _, name := range []string{"db", "output", "limit"} {
		viper.BindPFlag("query."+name, queryCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("query.db")
	if dbPath == "" {
		dbPath = viper.GetString("serve.db")
	}
	if dbPath == "" {
		return errx.With(ErrOpenStore, ": --db is required")
	}

	opts := diagstore.QueryOptions{Limit: viper.GetInt("query.limit")}
	opts.EngineID, _ = cmd.Flags().GetString("engine-id")
	opts.URN, _ = cmd.Flags().GetString("urn")
	opts.StreamID, _ = cmd.Flags().GetInt64("stream-id")
	if s, _ := cmd.Flags().GetString("min-severity"); s != "" {
		sev, err := api.ParseSeverity(s)
		if err != nil {
			return err
		}
		opts.MinSeverity = sev
	}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		opts.Since = time.Now().Add(-since)
	}

	store, err := diagstore.Open(dbPath)
	if err != nil {
		return errx.Wrap(ErrOpenStore, err)
	}
	defer store.Close()

	events, err := store.Query(context.Background(), opts)
	if err != nil {
		return errx.Wrap(ErrQueryStore, err)
	}
	return writeEvents(cmd.OutOrStdout(), events, viper.GetString("query.output"))
}
