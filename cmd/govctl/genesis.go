package main

import (
	"fmt"
	"sort"

	"consortium/contexts/governance/governance-engine/adapters/genesis"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var genesisSelf string

func init() {
	genesisCheckCmd.Flags().StringVar(&genesisSelf, "self", "0x0000000000000000000000000000000000001000", "engine address the document is resolved against")
	genesisCmd.AddCommand(genesisCheckCmd)
	rootCmd.AddCommand(genesisCmd)
}

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Inspect genesis documents",
}

var genesisCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a genesis document and print its action table",
	Long:  "Validate a genesis document and print its action table. Without a file the embedded development document is checked.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(genesisSelf) {
			return fmt.Errorf("--self: invalid address %q", genesisSelf)
		}

		var (
			doc genesis.Document
			err error
		)
		if len(args) == 1 {
			doc, err = genesis.Load(args[0])
		} else {
			doc, err = genesis.Default()
		}
		if err != nil {
			return err
		}
		g, err := genesis.Resolve(doc, common.HexToAddress(genesisSelf))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "members: %d\n", len(g.Members))
		for _, member := range g.Members {
			fmt.Fprintf(out, "  %s\n", member.Hex())
		}
		fmt.Fprintf(out, "subsystems: %d\n", len(g.Subsystems))
		for _, sub := range g.Subsystems {
			fmt.Fprintf(out, "  %-16s %s\n", sub.Name, sub.Address.Hex())
		}

		names := make([]string, 0, len(g.Actions))
		byName := make(map[string]int, len(g.Actions))
		for i, action := range g.Actions {
			name := g.Names[action.Key]
			names = append(names, name)
			byName[name] = i
		}
		sort.Strings(names)
		fmt.Fprintf(out, "actions: %d\n", len(g.Actions))
		for _, name := range names {
			action := g.Actions[byName[name]]
			fmt.Fprintf(out, "  %-28s %3d%% timeout=%s success=%s\n",
				name, action.RequiredPercentage, action.TimeOut, action.SuccessFunction)
		}
		return nil
	},
}
