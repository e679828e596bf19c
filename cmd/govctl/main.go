package main

import (
	"os"

	"github.com/spf13/cobra"
)

// govctl is the operator tool for the governance engine: it derives action
// keys and selectors, packs call payloads and checks genesis documents
// before they are deployed.
var rootCmd = &cobra.Command{
	Use:          "govctl",
	Short:        "Operator tooling for the consortium governance engine",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
