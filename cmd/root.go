package cmd

import (
	"fmt"
	"os"

	"github.com/deemkeen/nodelink/util"
	"github.com/spf13/cobra"
)

var (
	conf *util.AppConfig

	rootCmd = &cobra.Command{
		Use:          util.Name,
		Short:        "A federated social network node",
		Long:         `nodelink hosts authors, relays follows and posts to peer nodes over HTTP Basic Auth and keeps shadow copies of remote authors in sync.`,
		Version:      util.GetVersion(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := util.ReadConf()
			if err != nil {
				return err
			}
			if err := util.SetLogLevel(c.Conf.LogLevel); err != nil {
				return fmt.Errorf("log level %q: %w", c.Conf.LogLevel, err)
			}
			conf = c
			return nil
		},
	}
)

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, syncCmd, nodeCmd, authorCmd)
}
