package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hub version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "eventhub %s\n", eventhub.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
