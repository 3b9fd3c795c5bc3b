package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cogdedup version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cogdedup %s\n", Version)
	},
}
