package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/enginelog/internal/errx"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "enginelog",
	Short: "Engine log service: collect log events from plugins and workers",
	Long: `enginelog runs an engine that accepts log events over JSON-RPC and HTTP
and dispatches them, in per-stream order, to console, file, SQLite and
forwarding sinks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		logger, err := newLogger(cmd.ErrOrStderr(), viper.GetString("log-level"), viper.GetString("log-format"))
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.config/enginelog/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Process log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Process log format (text, json)")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig loads the config file and environment. A missing default
// config file is not an error.
func initConfig() error {
	viper.SetEnvPrefix("ENGINELOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return errx.Wrap(ErrReadConfig, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.AddConfigPath(filepath.Join(home, ".config", "enginelog"))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return errx.Wrap(ErrReadConfig, err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
