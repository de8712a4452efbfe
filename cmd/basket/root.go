package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"basket-dashboard/internal/config"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "basket",
		Short: "Market basket analysis with the Apriori algorithm",
		Long: `basket mines frequent itemsets and association rules from a retail
transaction spreadsheet (.xlsx, .csv or .tsv) whose first column lists the
items of each transaction separated by commas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (defaults and environment apply without it)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log pipeline stages to stderr")

	cmd.AddCommand(newMineCmd(opts), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "basket %s\n", config.Version)
			return err
		},
	}
}
