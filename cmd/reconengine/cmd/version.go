package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the reconengine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reconengine %s\n", getVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
