package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "helios",
	Short: "Helios - reverse-proxy gateway for AI inference providers",
	Long: `Helios is a reverse-proxy gateway for AI inference providers. Clients
speak a single OpenAI-compatible wire contract; the gateway selects a backend
provider per request, rewrites the request into that provider's dialect,
streams the response back, and emits a structured telemetry record for every
exchange.

Supported providers: OpenAI, Anthropic, GROQ, Fireworks, Together, and
AWS Bedrock (SigV4-signed, Converse API).`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
