package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() (*cobra.Command, *commandContext) {
	var dataFlag string
	var envFileFlag string

	ctx := newCommandContext(&dataFlag, &envFileFlag)

	rootCmd := &cobra.Command{
		Use:           "sheetctl",
		Short:         "Administer a Conti song sheet library",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataFlag, "data", "", "Data directory (default: METADATA_PATH or ~/Conti/data)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Path to .env file")

	rootCmd.AddCommand(newSheetsCommand(ctx))
	rootCmd.AddCommand(newUsersCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))

	return rootCmd, ctx
}
