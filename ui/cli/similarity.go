package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cogdedup/internal/config"
	"cogdedup/internal/engine"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity <data-id-a> <data-id-b>",
	Short: "Report the structural (chunk-overlap) similarity of two previously encoded data ids",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		root, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := checkRoot(filepath.Join(root, ".cogdedup")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v (run 'cogdedup init' first)\n", err)
			os.Exit(1)
		}

		cfg, err := config.NewManager(root).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		e, err := engine.Open(root, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		sim := e.StructuralSimilarity(args[0], args[1])
		fmt.Printf("%.4f\n", sim)
	},
}
