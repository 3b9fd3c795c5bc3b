package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"cogdedup/internal/config"
	"cogdedup/internal/engine"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run the cold-archival sweep over the current root's store",
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

		n, err := e.Maintain(time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running maintenance: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Archived %d chunk(s) to cold tier\n", n)
	},
}
