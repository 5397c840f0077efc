package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X ...cmd.Version=...".
var Version = "0.2.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ylex version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ylex %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
