package main

import (
	"fmt"

	"consortium/contexts/governance/governance-engine/adapters/dispatch"
	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(selectorCmd)
	rootCmd.AddCommand(actionKeyCmd)
}

var selectorCmd = &cobra.Command{
	Use:   "selector <signature>",
	Short: "Print the 4-byte selector of a canonical signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := dispatch.ParseSignature(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", entities.SelectorOf(method.Sig), method.Sig)
		return nil
	},
}

var actionKeyCmd = &cobra.Command{
	Use:   "action-key <name>",
	Short: "Print the registry key of an action name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := entities.ActionKeyOf(args[0])
		protected := ""
		if entities.IsProtected(key) {
			protected = " (protected)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", key.Hex(), protected)
		return nil
	},
}
