// Package cli provides the cogdedup command-line front end, laid out
// the way the teacher's ui/cli package wires one cobra root command to
// a set of Run funcs over a forge.Repository (ui/cli/root.go), except
// every command here opens an *engine.Engine instead of a forge
// repository.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cogdedup",
	Short: "Cognitive Deduplication Engine for agent memory and event traces",
	Long: `cogdedup deduplicates and compresses the growing corpus of text an
autonomous agent accumulates: tool outputs, reasoning traces, memory
records, and their own audit log, using content-defined chunking,
reference/delta/predictive-dictionary compression, and tiered storage.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(similarityCmd)
	rootCmd.AddCommand(versionCmd)
}

func checkRoot(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("not a cogdedup root (no directory found at %s)", dir)
	}
	return nil
}
