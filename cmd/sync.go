package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one remote author sync pass against every active peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.syncer(conf).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "nodes: %d  failed: %d  authors: %d  confirmed follows: %d\n",
			report.Nodes, report.Failed, report.Authors, report.Confirmed)
		return nil
	},
}
