package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the gateway version, overridable at build time with
// -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "helios %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
