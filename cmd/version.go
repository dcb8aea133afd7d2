package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the carver version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("carver %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
