package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/enginelog/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "enginelog %s\n", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
